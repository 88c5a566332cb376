package rapport

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/rapport/presence"
)

// ──────────────────────────────────────────────────
// Presence Pairing
// ──────────────────────────────────────────────────

// CreateSession opens a waiting session hosted by host and returns it with
// a fresh public code.
func (e *Engine) CreateSession(ctx context.Context, host, modeID string) (*presence.Session, error) {
	if host == "" {
		return nil, ValidationError{Field: "host", Message: "must not be empty"}
	}

	for attempt := 1; attempt <= e.codeAttempts; attempt++ {
		code, err := e.codeGen(e.codeLength)
		if err != nil {
			return nil, fmt.Errorf("rapport: generate code: %w", err)
		}

		s := &presence.Session{
			Code:      code,
			HostUser:  host,
			ModeID:    modeID,
			Status:    presence.StatusWaiting,
			CreatedAt: e.now(),
		}
		err = e.store.CreateSession(ctx, s)
		if errors.Is(err, ErrDuplicateCode) {
			e.logger.Debug("presence code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.logger.Debug("session created", "code", code, "host", host, "mode", modeID)
		e.plugins.EmitSessionCreated(ctx, s)
		return s, nil
	}

	return nil, ErrCodeExhausted
}

// JoinSession fills the guest slot of a waiting session. Exactly one of
// any number of concurrent joiners succeeds; the rest see ErrSessionFull.
func (e *Engine) JoinSession(ctx context.Context, code, guest string) (*presence.Session, error) {
	if guest == "" {
		return nil, ValidationError{Field: "guest", Message: "must not be empty"}
	}

	s, err := e.store.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	switch {
	case s.Status == presence.StatusEnded:
		return nil, ErrSessionEnded
	case s.HostUser == guest:
		return nil, ErrSelfJoin
	}

	joined, err := e.store.JoinSession(ctx, code, guest, e.now())
	if err != nil {
		return nil, err
	}

	e.logger.Debug("session joined", "code", code, "guest", guest)
	e.plugins.EmitSessionJoined(ctx, joined)
	return joined, nil
}

// EndSession ends the session on behalf of one of its parties. Ending an
// ended session returns it unchanged.
func (e *Engine) EndSession(ctx context.Context, code, caller string) (*presence.Session, error) {
	s, err := e.store.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !s.IsParty(caller) {
		return nil, ErrForbidden
	}

	ended, changed, err := e.store.EndSession(ctx, code, e.now())
	if err != nil {
		return nil, err
	}
	if changed {
		e.logger.Debug("session ended", "code", code, "by", caller)
		e.plugins.EmitSessionEnded(ctx, ended)
	}
	return ended, nil
}

// GetSession returns the full session record.
func (e *Engine) GetSession(ctx context.Context, code string) (*presence.Session, error) {
	return e.store.GetSession(ctx, code)
}

// SessionStatus is the poller view of a session. An unknown code is not an
// error; it reports Exists = false.
func (e *Engine) SessionStatus(ctx context.Context, code string) (presence.Summary, error) {
	s, err := e.store.GetSession(ctx, code)
	if errors.Is(err, ErrSessionNotFound) {
		return presence.Summarize(nil), nil
	}
	if err != nil {
		return presence.Summary{}, err
	}
	return presence.Summarize(s), nil
}

// GetActiveSessionForUser returns the user's most recent non-ended
// session, or nil when there is none.
func (e *Engine) GetActiveSessionForUser(ctx context.Context, user string) (*presence.Session, error) {
	s, err := e.store.ActiveSessionForUser(ctx, user)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	return s, err
}
