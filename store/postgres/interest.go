package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/grove/driver"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
)

func getEdgeByPair(ctx context.Context, q querier, from, to string) (*interest.Edge, error) {
	e, err := scanEdge(q.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE from_user = $1 AND to_user = $2`, from, to))
	if isNoRows(err) {
		return nil, rapport.ErrEdgeNotFound
	}
	if err != nil {
		return nil, wrap("get edge", err)
	}
	return e, nil
}

func insertEdge(ctx context.Context, q querier, e *interest.Edge) error {
	_, err := q.Exec(ctx,
		`INSERT INTO rapport_edges (`+edgeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID.String(), e.FromUser, e.ToUser, string(e.Status), e.CreatedAt, e.UpdatedAt, e.MatchedAt, e.ChatUnlocked)
	if isUniqueViolation(err) {
		return rapport.ErrDuplicateInterest
	}
	if err != nil {
		return wrap("insert edge", err)
	}
	return nil
}

func (s *Store) RecordInterest(ctx context.Context, from, to string, now time.Time) (*interest.Result, error) {
	var res *interest.Result
	err := s.withTx(ctx, func(tx driver.Tx) error {
		if err := lockKey(ctx, tx, "edge:"+interest.PairKey(from, to)); err != nil {
			return err
		}

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

		var revID id.EdgeID
		err = tx.QueryRow(ctx,
			`UPDATE rapport_edges SET status = $1, matched_at = $2, updated_at = $2
			 WHERE from_user = $3 AND to_user = $4 AND status = $5
			 RETURNING id`,
			string(interest.StatusMatched), now, to, from, string(interest.StatusPending)).Scan(&revID)
		switch {
		case err == nil:
			matchedAt := now
			edge.Status = interest.StatusMatched
			edge.MatchedAt = &matchedAt
			res.IsNewMatch = true
			res.MatchID = revID
		case !isNoRows(err):
			return wrap("promote edge", err)
		}
		return insertEdge(ctx, tx, edge)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetEdge(ctx context.Context, edgeID id.EdgeID) (*interest.Edge, error) {
	e, err := scanEdge(s.pg.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE id = $1`, edgeID.String()))
	if isNoRows(err) {
		return nil, rapport.ErrEdgeNotFound
	}
	if err != nil {
		return nil, wrap("get edge", err)
	}
	return e, nil
}

func (s *Store) GetEdgeByPair(ctx context.Context, from, to string) (*interest.Edge, error) {
	return getEdgeByPair(ctx, s.pg, from, to)
}

func (s *Store) ListMatches(ctx context.Context, user string) ([]*interest.Edge, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT `+edgeColumns+` FROM rapport_edges WHERE from_user = $1 AND status = $2
		 ORDER BY matched_at DESC`, user, string(interest.StatusMatched))
	if err != nil {
		return nil, wrap("list matches", err)
	}
	edges, err := collect(rows, scanEdge)
	if err != nil {
		return nil, wrap("list matches", err)
	}
	return edges, nil
}

func (s *Store) Respond(ctx context.Context, edgeID id.EdgeID, accept bool, now time.Time) (*interest.Edge, error) {
	var out *interest.Edge
	err := s.withTx(ctx, func(tx driver.Tx) error {
		e, err := scanEdge(tx.QueryRow(ctx,
			`SELECT `+edgeColumns+` FROM rapport_edges WHERE id = $1`, edgeID.String()))
		if isNoRows(err) {
			return rapport.ErrEdgeNotFound
		}
		if err != nil {
			return wrap("get edge", err)
		}
		if err := lockKey(ctx, tx, "edge:"+interest.PairKey(e.FromUser, e.ToUser)); err != nil {
			return err
		}

		next := interest.StatusDeclined
		var matchedAt *time.Time
		if accept {
			next = interest.StatusMatched
			t := now
			matchedAt = &t
		}
		tag, err := tx.Exec(ctx,
			`UPDATE rapport_edges SET status = $1, matched_at = $2, updated_at = $3
			 WHERE id = $4 AND status = $5`,
			string(next), matchedAt, now, e.ID.String(), string(interest.StatusPending))
		if err != nil {
			return wrap("respond", err)
		}
		if affected(tag) != 1 {
			return rapport.ErrEdgeNotPending
		}

		e.Status = next
		e.MatchedAt = matchedAt
		e.UpdatedAt = now
		out = e
		if !accept {
			return nil
		}

		tag, err = tx.Exec(ctx,
			`UPDATE rapport_edges SET status = $1, matched_at = $2, updated_at = $2
			 WHERE from_user = $3 AND to_user = $4`,
			string(interest.StatusMatched), now, e.ToUser, e.FromUser)
		if err != nil {
			return wrap("promote reverse edge", err)
		}
		if affected(tag) == 1 {
			return nil
		}
		return insertEdge(ctx, tx, &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  e.ToUser,
			ToUser:    e.FromUser,
			Status:    interest.StatusMatched,
			CreatedAt: now,
			UpdatedAt: now,
			MatchedAt: matchedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Unmatch(ctx context.Context, a, b string, now time.Time) (int, error) {
	tag, err := s.pg.Exec(ctx,
		`UPDATE rapport_edges SET status = $1, updated_at = $2
		 WHERE status = $3 AND ((from_user = $4 AND to_user = $5) OR (from_user = $5 AND to_user = $4))`,
		string(interest.StatusUnmatched), now, string(interest.StatusMatched), a, b)
	if err != nil {
		return 0, wrap("unmatch", err)
	}
	return int(affected(tag)), nil
}

func (s *Store) SetChatUnlocked(ctx context.Context, a, b string, now time.Time) error {
	tag, err := s.pg.Exec(ctx,
		`UPDATE rapport_edges SET chat_unlocked = TRUE, updated_at = $1
		 WHERE (from_user = $2 AND to_user = $3) OR (from_user = $3 AND to_user = $2)`,
		now, a, b)
	if err != nil {
		return wrap("set chat unlocked", err)
	}
	if affected(tag) == 0 {
		return rapport.ErrEdgeNotFound
	}
	return nil
}
