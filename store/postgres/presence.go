package postgres

import (
	"context"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/presence"
)

func (s *Store) CreateSession(ctx context.Context, sess *presence.Session) error {
	_, err := s.pg.Exec(ctx,
		`INSERT INTO rapport_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.Code, sess.HostUser, sess.GuestUser, sess.ModeID, string(sess.Status),
		sess.CreatedAt, sess.JoinedAt, sess.EndedAt)
	if isUniqueViolation(err) {
		return rapport.ErrDuplicateCode
	}
	if err != nil {
		return wrap("create session", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code string) (*presence.Session, error) {
	sess, err := scanSession(s.pg.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM rapport_sessions WHERE code = $1`, code))
	if isNoRows(err) {
		return nil, rapport.ErrSessionNotFound
	}
	if err != nil {
		return nil, wrap("get session", err)
	}
	return sess, nil
}

func (s *Store) JoinSession(ctx context.Context, code, guest string, now time.Time) (*presence.Session, error) {
	sess, err := scanSession(s.pg.QueryRow(ctx,
		`UPDATE rapport_sessions SET guest_user = $1, status = $2, joined_at = $3
		 WHERE code = $4 AND guest_user IS NULL AND status = $5
		 RETURNING `+sessionColumns,
		guest, string(presence.StatusActive), now, code, string(presence.StatusWaiting)))
	if err == nil {
		return sess, nil
	}
	if !isNoRows(err) {
		return nil, wrap("join session", err)
	}

	current, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if current.Status == presence.StatusEnded {
		return nil, rapport.ErrSessionEnded
	}
	return nil, rapport.ErrSessionFull
}

func (s *Store) EndSession(ctx context.Context, code string, now time.Time) (*presence.Session, bool, error) {
	tag, err := s.pg.Exec(ctx,
		`UPDATE rapport_sessions SET status = $1, ended_at = $2 WHERE code = $3 AND status <> $1`,
		string(presence.StatusEnded), now, code)
	if err != nil {
		return nil, false, wrap("end session", err)
	}
	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return sess, affected(tag) == 1, nil
}

func (s *Store) ActiveSessionForUser(ctx context.Context, user string) (*presence.Session, error) {
	sess, err := scanSession(s.pg.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM rapport_sessions
		 WHERE status <> $1 AND (host_user = $2 OR guest_user = $2)
		 ORDER BY created_at DESC LIMIT 1`,
		string(presence.StatusEnded), user))
	if isNoRows(err) {
		return nil, rapport.ErrSessionNotFound
	}
	if err != nil {
		return nil, wrap("active session", err)
	}
	return sess, nil
}
