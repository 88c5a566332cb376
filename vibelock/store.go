package vibelock

import (
	"context"
	"time"

	"github.com/xraph/rapport/id"
)

// Store persists rounds.
type Store interface {
	// OpenRound returns the match's non-completed round, inserting r when
	// there is none. Concurrent callers for the same match observe a
	// single round. The bool reports whether r was inserted.
	OpenRound(ctx context.Context, r *Round) (*Round, bool, error)

	// GetRound returns the round or ErrRoundNotFound.
	GetRound(ctx context.Context, roundID id.RoundID) (*Round, error)

	// SetAnswer overwrites the answer in slot (1 or 2) guarded on
	// completed = false and returns the round after the write. When the
	// round is already completed nothing is written and the stored round
	// is returned with written = false.
	SetAnswer(ctx context.Context, roundID id.RoundID, slot int, answer string, now time.Time) (r *Round, written bool, err error)

	// CompleteRound sets score and completed = true guarded on
	// completed = false and the exact answers that were scored. It reports
	// whether this call performed the transition.
	CompleteRound(ctx context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error)
}
