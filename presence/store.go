package presence

import (
	"context"
	"time"
)

// Store persists presence sessions.
type Store interface {
	// CreateSession inserts a waiting session. It fails with
	// ErrDuplicateCode when the code is taken.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(ctx context.Context, code string) (*Session, error)

	// JoinSession assigns guest with a single conditional write guarded by
	// "guest is empty and status is waiting". When the guard fails it
	// reports why: ErrSessionNotFound, ErrSessionEnded or ErrSessionFull.
	JoinSession(ctx context.Context, code, guest string, now time.Time) (*Session, error)

	// EndSession moves a non-ended session to ended. Ending an ended
	// session is a no-op that returns the stored record; ended reports
	// whether this call performed the transition.
	EndSession(ctx context.Context, code string, now time.Time) (s *Session, ended bool, err error)

	// ActiveSessionForUser returns the most recent non-ended session in
	// which user is host or guest, or ErrSessionNotFound.
	ActiveSessionForUser(ctx context.Context, user string) (*Session, error)
}
