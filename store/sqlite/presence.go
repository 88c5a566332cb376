package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/presence"
)

const sessionColumns = `code, host_user, guest_user, mode_id, status, created_at, joined_at, ended_at`

func scanSession(row rowScanner) (*presence.Session, error) {
	var (
		sess              presence.Session
		guest             sql.NullString
		status            string
		createdAt         int64
		joinedAt, endedAt sql.NullInt64
	)
	if err := row.Scan(&sess.Code, &sess.HostUser, &guest, &sess.ModeID, &status, &createdAt, &joinedAt, &endedAt); err != nil {
		return nil, err
	}
	sess.GuestUser = ptrString(guest)
	sess.Status = presence.Status(status)
	sess.CreatedAt = fromMillis(createdAt)
	sess.JoinedAt = ptrMillis(joinedAt)
	sess.EndedAt = ptrMillis(endedAt)
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *presence.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rapport_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Code, sess.HostUser, nullString(sess.GuestUser), sess.ModeID, string(sess.Status),
		toMillis(sess.CreatedAt), nullMillis(sess.JoinedAt), nullMillis(sess.EndedAt))
	if isUniqueViolation(err) {
		return rapport.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("rapport/sqlite: create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code string) (*presence.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM rapport_sessions WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rapport.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: get session: %w", err)
	}
	return sess, nil
}

func (s *Store) JoinSession(ctx context.Context, code, guest string, now time.Time) (*presence.Session, error) {
	r, err := s.db.ExecContext(ctx,
		`UPDATE rapport_sessions SET guest_user = ?, status = ?, joined_at = ?
		 WHERE code = ? AND guest_user IS NULL AND status = ?`,
		guest, string(presence.StatusActive), toMillis(now), code, string(presence.StatusWaiting))
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: join session: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: join session: %w", err)
	}

	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return sess, nil
	}
	return nil, joinFailure(sess)
}

// joinFailure explains why the guarded join did not apply to sess.
func joinFailure(sess *presence.Session) error {
	if sess.Status == presence.StatusEnded {
		return rapport.ErrSessionEnded
	}
	return rapport.ErrSessionFull
}

func (s *Store) EndSession(ctx context.Context, code string, now time.Time) (*presence.Session, bool, error) {
	r, err := s.db.ExecContext(ctx,
		`UPDATE rapport_sessions SET status = ?, ended_at = ? WHERE code = ? AND status <> ?`,
		string(presence.StatusEnded), toMillis(now), code, string(presence.StatusEnded))
	if err != nil {
		return nil, false, fmt.Errorf("rapport/sqlite: end session: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rapport/sqlite: end session: %w", err)
	}
	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return sess, n == 1, nil
}

func (s *Store) ActiveSessionForUser(ctx context.Context, user string) (*presence.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM rapport_sessions
		 WHERE status <> ? AND (host_user = ? OR guest_user = ?)
		 ORDER BY created_at DESC LIMIT 1`,
		string(presence.StatusEnded), user, user))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rapport.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: active session: %w", err)
	}
	return sess, nil
}
