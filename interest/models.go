// Package interest models directed "like" edges between two users and the
// mutual match they form.
package interest

import (
	"time"

	"github.com/xraph/rapport/id"
)

// Status is the lifecycle state of a single directed edge.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusDeclined  Status = "declined"
	StatusUnmatched Status = "unmatched"
)

// Terminal reports whether no further transition leaves this status.
// A matched edge can still move to unmatched, so only declined and
// unmatched are final.
func (s Status) Terminal() bool {
	return s == StatusDeclined || s == StatusUnmatched
}

// Edge is one user's interest in another. At most one edge exists per
// ordered (FromUser, ToUser) pair.
type Edge struct {
	ID        id.EdgeID  `json:"id"`
	FromUser  string     `json:"from_user"`
	ToUser    string     `json:"to_user"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MatchedAt *time.Time `json:"matched_at,omitempty"`

	// ChatUnlocked is set by a VibeLock round that scored above the unlock
	// threshold. It is independent of Status.
	ChatUnlocked bool `json:"chat_unlocked"`
}

// Involves reports whether user is one of the edge's two parties.
func (e *Edge) Involves(user string) bool {
	return e.FromUser == user || e.ToUser == user
}

// Peer returns the other party of the edge.
func (e *Edge) Peer(user string) string {
	if e.FromUser == user {
		return e.ToUser
	}
	return e.FromUser
}

// Result is returned by RecordInterest.
type Result struct {
	Edge *Edge `json:"edge"`

	// IsNewMatch is true when this call completed a mutual match.
	IsNewMatch bool `json:"is_new_match"`

	// MatchID is the ID of the reverse edge that was pending when the
	// match formed. Nil unless IsNewMatch.
	MatchID id.EdgeID `json:"match_id,omitempty"`
}

// PairKey returns the unordered de-duplication key for two users.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
