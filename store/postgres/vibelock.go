package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/vibelock"
)

func (s *Store) OpenRound(ctx context.Context, r *vibelock.Round) (*vibelock.Round, bool, error) {
	question, err := json.Marshal(r.Question)
	if err != nil {
		return nil, false, fmt.Errorf("rapport/postgres: encode question: %w", err)
	}

	// The partial unique index on open rounds makes the insert lose
	// cleanly to a concurrent creator; the loser reads the winner's row.
	tag, err := s.pg.Exec(ctx,
		`INSERT INTO rapport_rounds (`+roundColumns+`)
		 VALUES ($1, $2, $3, $4, $5, NULL, NULL, NULL, FALSE, $6, $6, NULL)
		 ON CONFLICT (match_id) WHERE NOT completed DO NOTHING`,
		r.ID.String(), r.MatchID.String(), question, r.User1, r.User2, r.CreatedAt)
	if err != nil {
		return nil, false, wrap("insert round", err)
	}
	if affected(tag) == 1 {
		return r, true, nil
	}

	existing, err := scanRound(s.pg.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rapport_rounds WHERE match_id = $1 AND NOT completed`,
		r.MatchID.String()))
	if isNoRows(err) {
		// The open round completed between the insert and this read.
		return s.OpenRound(ctx, r)
	}
	if err != nil {
		return nil, false, wrap("find open round", err)
	}
	return existing, false, nil
}

func (s *Store) GetRound(ctx context.Context, roundID id.RoundID) (*vibelock.Round, error) {
	r, err := scanRound(s.pg.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rapport_rounds WHERE id = $1`, roundID.String()))
	if isNoRows(err) {
		return nil, rapport.ErrRoundNotFound
	}
	if err != nil {
		return nil, wrap("get round", err)
	}
	return r, nil
}

func (s *Store) SetAnswer(ctx context.Context, roundID id.RoundID, slot int, answer string, now time.Time) (*vibelock.Round, bool, error) {
	var column string
	switch slot {
	case 1:
		column = "answer1"
	case 2:
		column = "answer2"
	default:
		return nil, false, rapport.ErrNotParticipant
	}

	r, err := scanRound(s.pg.QueryRow(ctx,
		`UPDATE rapport_rounds SET `+column+` = $1, updated_at = $2
		 WHERE id = $3 AND NOT completed
		 RETURNING `+roundColumns,
		answer, now, roundID.String()))
	if err == nil {
		return r, true, nil
	}
	if !isNoRows(err) {
		return nil, false, wrap("set answer", err)
	}

	current, err := s.GetRound(ctx, roundID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error) {
	tag, err := s.pg.Exec(ctx,
		`UPDATE rapport_rounds SET score = $1, completed = TRUE, completed_at = $2, updated_at = $2
		 WHERE id = $3 AND NOT completed AND answer1 = $4 AND answer2 = $5`,
		score, now, roundID.String(), answer1, answer2)
	if err != nil {
		return false, wrap("complete round", err)
	}
	return affected(tag) == 1, nil
}
