package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/vibelock"
)

const roundColumns = `id, match_id, question, user1, user2, answer1, answer2, score, completed, created_at, updated_at, completed_at`

func scanRound(row rowScanner) (*vibelock.Round, error) {
	var (
		r                    vibelock.Round
		question             string
		a1, a2               sql.NullString
		score                sql.NullInt64
		completed            int
		createdAt, updatedAt int64
		completedAt          sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.MatchID, &question, &r.User1, &r.User2, &a1, &a2, &score, &completed, &createdAt, &updatedAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(question), &r.Question); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	r.Answer1 = ptrString(a1)
	r.Answer2 = ptrString(a2)
	if score.Valid {
		sc := int(score.Int64)
		r.Score = &sc
	}
	r.Completed = completed != 0
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	r.CompletedAt = ptrMillis(completedAt)
	return &r, nil
}

func (s *Store) OpenRound(ctx context.Context, r *vibelock.Round) (*vibelock.Round, bool, error) {
	var (
		out     *vibelock.Round
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanRound(tx.QueryRowContext(ctx,
			`SELECT `+roundColumns+` FROM rapport_rounds WHERE match_id = ? AND completed = 0`,
			r.MatchID.String()))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rapport/sqlite: find open round: %w", err)
		}

		question, err := json.Marshal(r.Question)
		if err != nil {
			return fmt.Errorf("rapport/sqlite: encode question: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rapport_rounds (`+roundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), r.MatchID.String(), string(question), r.User1, r.User2,
			nullString(r.Answer1), nullString(r.Answer2), sql.NullInt64{}, 0,
			toMillis(r.CreatedAt), toMillis(r.UpdatedAt), sql.NullInt64{}); err != nil {
			return fmt.Errorf("rapport/sqlite: insert round: %w", err)
		}
		out, created = r, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Store) GetRound(ctx context.Context, roundID id.RoundID) (*vibelock.Round, error) {
	r, err := scanRound(s.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rapport_rounds WHERE id = ?`, roundID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rapport.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: get round: %w", err)
	}
	return r, nil
}

func (s *Store) SetAnswer(ctx context.Context, roundID id.RoundID, slot int, answer string, now time.Time) (*vibelock.Round, bool, error) {
	column, err := answerColumn(slot)
	if err != nil {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rapport_rounds SET `+column+` = ?, updated_at = ? WHERE id = ? AND completed = 0`,
		answer, toMillis(now), roundID.String())
	if err != nil {
		return nil, false, fmt.Errorf("rapport/sqlite: set answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rapport/sqlite: set answer: %w", err)
	}
	r, err := s.GetRound(ctx, roundID)
	if err != nil {
		return nil, false, err
	}
	return r, n == 1, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rapport_rounds SET score = ?, completed = 1, completed_at = ?, updated_at = ?
		 WHERE id = ? AND completed = 0 AND answer1 = ? AND answer2 = ?`,
		score, toMillis(now), toMillis(now), roundID.String(), answer1, answer2)
	if err != nil {
		return false, fmt.Errorf("rapport/sqlite: complete round: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rapport/sqlite: complete round: %w", err)
	}
	return n == 1, nil
}

func answerColumn(slot int) (string, error) {
	switch slot {
	case 1:
		return "answer1", nil
	case 2:
		return "answer2", nil
	default:
		return "", rapport.ErrNotParticipant
	}
}
