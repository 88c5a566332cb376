// Package vibelock runs the two-party synchronized question round that can
// unlock chat between matched users.
package vibelock

import (
	"time"

	"github.com/xraph/rapport/id"
)

// Round is one question put to both parties of a match. Completed is true
// exactly when both answers are present, and Score is written once, by the
// write that completes the round.
type Round struct {
	ID       id.RoundID `json:"id"`
	MatchID  id.EdgeID  `json:"match_id"`
	Question Question   `json:"question"`

	User1   string  `json:"user1"`
	User2   string  `json:"user2"`
	Answer1 *string `json:"answer1,omitempty"`
	Answer2 *string `json:"answer2,omitempty"`

	Score       *int       `json:"score,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Slot returns 1 or 2 for the caller's answer slot, or 0 when the caller
// is not a participant.
func (r *Round) Slot(user string) int {
	switch user {
	case r.User1:
		return 1
	case r.User2:
		return 2
	default:
		return 0
	}
}

// Answer returns the answer stored in slot (1 or 2).
func (r *Round) Answer(slot int) *string {
	if slot == 1 {
		return r.Answer1
	}
	if slot == 2 {
		return r.Answer2
	}
	return nil
}

// BothAnswered reports whether both slots are filled.
func (r *Round) BothAnswered() bool {
	return r.Answer1 != nil && r.Answer2 != nil
}

// Unlocked reports whether the round completed at or above the threshold.
func (r *Round) Unlocked() bool {
	return r.Completed && r.Score != nil && *r.Score >= UnlockThreshold
}
