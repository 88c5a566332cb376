package rapport

import (
	"context"
	"errors"

	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/vibelock"
)

// settleAttempts bounds how often SubmitAnswer re-reads a round whose
// answers moved under it before giving up on completing it itself.
const settleAttempts = 3

// ──────────────────────────────────────────────────
// VibeLock
// ──────────────────────────────────────────────────

// StartRound returns the open round of a match, creating one with a freshly
// drawn question when none is open. matchID may be either edge of the
// match; both resolve to the same round.
func (e *Engine) StartRound(ctx context.Context, matchID id.EdgeID, caller string) (*vibelock.Round, error) {
	edge, err := e.matchedEdge(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !edge.Involves(caller) {
		return nil, ErrForbidden
	}

	canonical, err := e.canonicalEdge(ctx, edge)
	if err != nil {
		return nil, err
	}

	now := e.now()
	r, created, err := e.store.OpenRound(ctx, &vibelock.Round{
		ID:        id.NewRoundID(),
		MatchID:   canonical.ID,
		Question:  vibelock.Pick(e.rand, e.questions),
		User1:     canonical.FromUser,
		User2:     canonical.ToUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if created {
		e.logger.Debug("vibelock round opened",
			"round", r.ID.String(),
			"match", r.MatchID.String(),
			"question", r.Question.ID,
		)
	}
	return r, nil
}

// SubmitAnswer records caller's answer. The submission that fills the
// second slot scores and completes the round; when two submissions race,
// exactly one completion wins and both callers see its score.
//
// If the store fails after the answer was written, the round is left with
// both answers and no score. Resubmitting the same answer or polling it
// with GetRound completes it.
func (e *Engine) SubmitAnswer(ctx context.Context, roundID id.RoundID, caller, answer string) (*vibelock.Round, error) {
	r, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	slot := r.Slot(caller)
	if slot == 0 {
		return nil, ErrNotParticipant
	}
	if !r.Question.Accepts(answer) {
		return nil, ErrInvalidAnswer
	}
	if r.Completed {
		return e.resubmitted(ctx, r, slot, answer)
	}

	r, written, err := e.store.SetAnswer(ctx, roundID, slot, answer, e.now())
	if err != nil {
		return nil, err
	}
	if !written {
		return e.resubmitted(ctx, r, slot, answer)
	}

	return e.settle(ctx, r)
}

// GetRound returns the round for polling. Only its two participants may
// read it. A round holding both answers but no score is completed here.
func (e *Engine) GetRound(ctx context.Context, roundID id.RoundID, caller string) (*vibelock.Round, error) {
	r, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.Slot(caller) == 0 {
		return nil, ErrNotParticipant
	}
	return e.settle(ctx, r)
}

// resubmitted handles an answer to a completed round: repeating one's own
// answer is harmless, changing it is a conflict.
func (e *Engine) resubmitted(ctx context.Context, r *vibelock.Round, slot int, answer string) (*vibelock.Round, error) {
	prev := r.Answer(slot)
	if prev == nil || *prev != answer {
		return nil, ErrRoundCompleted
	}
	if r.Unlocked() {
		// Idempotent; repairs the flag if the winning call failed after
		// completing the round.
		if err := e.store.SetChatUnlocked(ctx, r.User1, r.User2, e.now()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (e *Engine) settle(ctx context.Context, r *vibelock.Round) (*vibelock.Round, error) {
	for range settleAttempts {
		if r.Completed || !r.BothAnswered() {
			return r, nil
		}

		a1, a2 := *r.Answer1, *r.Answer2
		score := vibelock.Score(e.rand, a1, a2)
		won, err := e.store.CompleteRound(ctx, r.ID, a1, a2, score, e.now())
		if err != nil {
			return nil, err
		}

		r, err = e.store.GetRound(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if won {
			return r, e.roundCompleted(ctx, r)
		}
	}
	return r, nil
}

func (e *Engine) roundCompleted(ctx context.Context, r *vibelock.Round) error {
	e.logger.Debug("vibelock round completed",
		"round", r.ID.String(),
		"match", r.MatchID.String(),
		"score", *r.Score,
	)
	e.plugins.EmitRoundCompleted(ctx, r)

	if !r.Unlocked() {
		return nil
	}
	if err := e.store.SetChatUnlocked(ctx, r.User1, r.User2, e.now()); err != nil {
		return err
	}
	e.plugins.EmitChatUnlocked(ctx, r.MatchID, r.User1, r.User2)
	return nil
}

func (e *Engine) matchedEdge(ctx context.Context, matchID id.EdgeID) (*interest.Edge, error) {
	edge, err := e.store.GetEdge(ctx, matchID)
	if errors.Is(err, ErrEdgeNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	if edge.Status != interest.StatusMatched {
		return nil, ErrMatchNotFound
	}
	return edge, nil
}

// canonicalEdge picks the edge of the pair authored by the lexically
// smaller user, so both parties key their round on the same match ID.
func (e *Engine) canonicalEdge(ctx context.Context, edge *interest.Edge) (*interest.Edge, error) {
	if edge.FromUser < edge.ToUser {
		return edge, nil
	}
	reverse, err := e.store.GetEdgeByPair(ctx, edge.ToUser, edge.FromUser)
	if errors.Is(err, ErrEdgeNotFound) {
		return edge, nil
	}
	if err != nil {
		return nil, err
	}
	return reverse, nil
}
