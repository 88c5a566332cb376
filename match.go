package rapport

import (
	"context"
	"errors"

	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
)

// ──────────────────────────────────────────────────
// Match State Machine
// ──────────────────────────────────────────────────

// RecordInterest records that from is interested in to. When to already
// has a pending edge towards from, both edges become matched in the same
// atomic store call and the result reports a new match whose ID is the
// reverse edge's ID.
func (e *Engine) RecordInterest(ctx context.Context, from, to string) (*interest.Result, error) {
	if from == "" {
		return nil, ValidationError{Field: "from", Message: "must not be empty"}
	}
	if to == "" {
		return nil, ValidationError{Field: "to", Message: "must not be empty"}
	}
	if from == to {
		return nil, ErrSelfInterest
	}

	blocked, err := e.safety.IsBlocked(ctx, from, to)
	if err != nil {
		return nil, Unavailable("safety check", err)
	}
	if blocked {
		return nil, ErrBlocked
	}

	res, err := e.store.RecordInterest(ctx, from, to, e.now())
	if err != nil {
		return nil, err
	}

	e.logger.Debug("interest recorded",
		"from", from,
		"to", to,
		"status", res.Edge.Status,
		"new_match", res.IsNewMatch,
	)

	e.plugins.EmitInterestRecorded(ctx, res.Edge)
	if res.IsNewMatch {
		e.plugins.EmitMatchCreated(ctx, res.MatchID, to, from)
	}
	return res, nil
}

// RespondToInterest lets the recipient of a pending edge accept or decline
// it. Accepting forms the match, whose ID is the responded edge's ID.
func (e *Engine) RespondToInterest(ctx context.Context, edgeID id.EdgeID, caller string, accept bool) (*interest.Edge, error) {
	edge, err := e.store.GetEdge(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	if edge.ToUser != caller {
		return nil, ErrForbidden
	}
	if edge.Status != interest.StatusPending {
		return nil, ErrEdgeNotPending
	}

	updated, err := e.store.Respond(ctx, edgeID, accept, e.now())
	if err != nil {
		return nil, err
	}

	e.logger.Debug("interest answered",
		"edge", edgeID.String(),
		"status", updated.Status,
	)

	if accept {
		e.plugins.EmitMatchCreated(ctx, updated.ID, updated.FromUser, updated.ToUser)
	} else {
		e.plugins.EmitInterestDeclined(ctx, updated)
	}
	return updated, nil
}

// Unmatch dissolves the match identified by matchID. Either party may call
// it; both directed edges move to unmatched.
func (e *Engine) Unmatch(ctx context.Context, matchID id.EdgeID, caller string) error {
	edge, err := e.store.GetEdge(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrEdgeNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if !edge.Involves(caller) {
		return ErrForbidden
	}

	n, err := e.store.Unmatch(ctx, edge.FromUser, edge.ToUser, e.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotMatched
	}

	e.logger.Debug("match dissolved", "match", matchID.String(), "by", caller)
	e.plugins.EmitUnmatched(ctx, edge.FromUser, edge.ToUser)
	return nil
}

// ForceUnmatch dissolves any match between a and b without a caller check.
// It is the path taken when one user blocks the other and reports whether
// a match existed.
func (e *Engine) ForceUnmatch(ctx context.Context, a, b string) (bool, error) {
	n, err := e.store.Unmatch(ctx, a, b, e.now())
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	e.logger.Debug("match dissolved", "a", a, "b", b, "forced", true)
	e.plugins.EmitUnmatched(ctx, a, b)
	return true, nil
}

// GetMatch returns the matched edge authored by a towards b, or
// ErrMatchNotFound.
func (e *Engine) GetMatch(ctx context.Context, a, b string) (*interest.Edge, error) {
	edge, err := e.store.GetEdgeByPair(ctx, a, b)
	if err != nil {
		if errors.Is(err, ErrEdgeNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if edge.Status != interest.StatusMatched {
		return nil, ErrMatchNotFound
	}
	return edge, nil
}

// GetEdge returns an edge by ID.
func (e *Engine) GetEdge(ctx context.Context, edgeID id.EdgeID) (*interest.Edge, error) {
	return e.store.GetEdge(ctx, edgeID)
}

// ListMatches returns the user's current matches, one edge per peer.
func (e *Engine) ListMatches(ctx context.Context, user string) ([]*interest.Edge, error) {
	return e.store.ListMatches(ctx, user)
}
