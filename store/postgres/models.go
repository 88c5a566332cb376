package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/grove/driver"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// Column lists and row scanners for each table. The column order of a
// list and its scanner must agree.

const edgeColumns = `id, from_user, to_user, status, created_at, updated_at, matched_at, chat_unlocked`

func scanEdge(row driver.Row) (*interest.Edge, error) {
	var (
		e      interest.Edge
		status string
	)
	if err := row.Scan(&e.ID, &e.FromUser, &e.ToUser, &status, &e.CreatedAt, &e.UpdatedAt, &e.MatchedAt, &e.ChatUnlocked); err != nil {
		return nil, err
	}
	e.Status = interest.Status(status)
	return &e, nil
}

const sessionColumns = `code, host_user, guest_user, mode_id, status, created_at, joined_at, ended_at`

func scanSession(row driver.Row) (*presence.Session, error) {
	var (
		s      presence.Session
		status string
	)
	if err := row.Scan(&s.Code, &s.HostUser, &s.GuestUser, &s.ModeID, &status, &s.CreatedAt, &s.JoinedAt, &s.EndedAt); err != nil {
		return nil, err
	}
	s.Status = presence.Status(status)
	return &s, nil
}

const grantColumns = `id, owner_user, kind, scope_key, expires_at, plan, multiplier, created_at`

func scanGrant(row driver.Row) (*entitlement.Grant, error) {
	var (
		g          entitlement.Grant
		kind, plan string
	)
	if err := row.Scan(&g.ID, &g.OwnerUser, &kind, &g.ScopeKey, &g.ExpiresAt, &plan, &g.Multiplier, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.Kind = entitlement.Kind(kind)
	g.Plan = entitlement.Plan(plan)
	return &g, nil
}

const roundColumns = `id, match_id, question, user1, user2, answer1, answer2, score, completed, created_at, updated_at, completed_at`

func scanRound(row driver.Row) (*vibelock.Round, error) {
	var (
		r        vibelock.Round
		question []byte
	)
	if err := row.Scan(&r.ID, &r.MatchID, &question, &r.User1, &r.User2, &r.Answer1, &r.Answer2,
		&r.Score, &r.Completed, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(question, &r.Question); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return &r, nil
}

func collect[T any](rows driver.Rows, scan func(driver.Row) (*T, error)) ([]*T, error) {
	defer rows.Close() //nolint:errcheck // Err reports iteration failures
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
