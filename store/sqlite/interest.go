package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
)

const edgeColumns = `id, from_user, to_user, status, created_at, updated_at, matched_at, chat_unlocked`

func scanEdge(row rowScanner) (*interest.Edge, error) {
	var (
		e                    interest.Edge
		status               string
		createdAt, updatedAt int64
		matchedAt            sql.NullInt64
		unlocked             int
	)
	if err := row.Scan(&e.ID, &e.FromUser, &e.ToUser, &status, &createdAt, &updatedAt, &matchedAt, &unlocked); err != nil {
		return nil, err
	}
	e.Status = interest.Status(status)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	e.MatchedAt = ptrMillis(matchedAt)
	e.ChatUnlocked = unlocked != 0
	return &e, nil
}

func getEdgeByPair(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, from, to string) (*interest.Edge, error) {
	e, err := scanEdge(q.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE from_user = ? AND to_user = ?`, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rapport.ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: get edge: %w", err)
	}
	return e, nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, e *interest.Edge) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO rapport_edges (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.FromUser, e.ToUser, string(e.Status),
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt), nullMillis(e.MatchedAt), boolInt(e.ChatUnlocked),
	)
	if isUniqueViolation(err) {
		return rapport.ErrDuplicateInterest
	}
	if err != nil {
		return fmt.Errorf("rapport/sqlite: insert edge: %w", err)
	}
	return nil
}

func (s *Store) RecordInterest(ctx context.Context, from, to string, now time.Time) (*interest.Result, error) {
	var res *interest.Result
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := getEdgeByPair(ctx, tx, from, to)
		switch {
		case err == nil:
			return rapport.ErrDuplicateInterest
		case !errors.Is(err, rapport.ErrEdgeNotFound):
			return err
		}

		edge := &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  from,
			ToUser:    to,
			Status:    interest.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		res = &interest.Result{Edge: edge}

		rev, err := getEdgeByPair(ctx, tx, to, from)
		if err != nil && !errors.Is(err, rapport.ErrEdgeNotFound) {
			return err
		}
		if rev != nil && rev.Status == interest.StatusPending {
			r, err := tx.ExecContext(ctx,
				`UPDATE rapport_edges SET status = ?, matched_at = ?, updated_at = ?
				 WHERE id = ? AND status = ?`,
				string(interest.StatusMatched), toMillis(now), toMillis(now),
				rev.ID.String(), string(interest.StatusPending))
			if err != nil {
				return fmt.Errorf("rapport/sqlite: promote edge: %w", err)
			}
			if n, _ := r.RowsAffected(); n == 1 {
				matchedAt := now
				edge.Status = interest.StatusMatched
				edge.MatchedAt = &matchedAt
				res.IsNewMatch = true
				res.MatchID = rev.ID
			}
		}
		return insertEdge(ctx, tx, edge)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetEdge(ctx context.Context, edgeID id.EdgeID) (*interest.Edge, error) {
	e, err := scanEdge(s.db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE id = ?`, edgeID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rapport.ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: get edge: %w", err)
	}
	return e, nil
}

func (s *Store) GetEdgeByPair(ctx context.Context, from, to string) (*interest.Edge, error) {
	return getEdgeByPair(ctx, s.db, from, to)
}

func (s *Store) ListMatches(ctx context.Context, user string) ([]*interest.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE from_user = ? AND status = ?
		 ORDER BY matched_at DESC`, user, string(interest.StatusMatched))
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: list matches: %w", err)
	}
	defer rows.Close()

	var out []*interest.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("rapport/sqlite: scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Respond(ctx context.Context, edgeID id.EdgeID, accept bool, now time.Time) (*interest.Edge, error) {
	var out *interest.Edge
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanEdge(tx.QueryRowContext(ctx,
			`SELECT `+edgeColumns+` FROM rapport_edges WHERE id = ?`, edgeID.String()))
		if errors.Is(err, sql.ErrNoRows) {
			return rapport.ErrEdgeNotFound
		}
		if err != nil {
			return fmt.Errorf("rapport/sqlite: get edge: %w", err)
		}

		next := interest.StatusDeclined
		var matchedAt sql.NullInt64
		if accept {
			next = interest.StatusMatched
			matchedAt = sql.NullInt64{Int64: toMillis(now), Valid: true}
		}
		r, err := tx.ExecContext(ctx,
			`UPDATE rapport_edges SET status = ?, matched_at = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			string(next), matchedAt, toMillis(now), e.ID.String(), string(interest.StatusPending))
		if err != nil {
			return fmt.Errorf("rapport/sqlite: respond: %w", err)
		}
		if n, _ := r.RowsAffected(); n != 1 {
			return rapport.ErrEdgeNotPending
		}

		e.Status = next
		e.UpdatedAt = now
		e.MatchedAt = ptrMillis(matchedAt)
		out = e
		if !accept {
			return nil
		}

		r, err = tx.ExecContext(ctx,
			`UPDATE rapport_edges SET status = ?, matched_at = ?, updated_at = ?
			 WHERE from_user = ? AND to_user = ?`,
			string(interest.StatusMatched), toMillis(now), toMillis(now), e.ToUser, e.FromUser)
		if err != nil {
			return fmt.Errorf("rapport/sqlite: promote reverse edge: %w", err)
		}
		if n, _ := r.RowsAffected(); n == 1 {
			return nil
		}
		return insertEdge(ctx, tx, &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  e.ToUser,
			ToUser:    e.FromUser,
			Status:    interest.StatusMatched,
			CreatedAt: now,
			UpdatedAt: now,
			MatchedAt: e.MatchedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Unmatch(ctx context.Context, a, b string, now time.Time) (int, error) {
	r, err := s.db.ExecContext(ctx,
		`UPDATE rapport_edges SET status = ?, updated_at = ?
		 WHERE status = ? AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))`,
		string(interest.StatusUnmatched), toMillis(now), string(interest.StatusMatched), a, b, b, a)
	if err != nil {
		return 0, fmt.Errorf("rapport/sqlite: unmatch: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rapport/sqlite: unmatch: %w", err)
	}
	return int(n), nil
}

func (s *Store) SetChatUnlocked(ctx context.Context, a, b string, now time.Time) error {
	r, err := s.db.ExecContext(ctx,
		`UPDATE rapport_edges SET chat_unlocked = 1, updated_at = ?
		 WHERE (from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)`,
		toMillis(now), a, b, b, a)
	if err != nil {
		return fmt.Errorf("rapport/sqlite: set chat unlocked: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return rapport.ErrEdgeNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
