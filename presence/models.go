// Package presence pairs two anonymous participants into one live session
// addressed by a short shareable code.
package presence

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// DefaultCodeLength is the length of generated session codes.
const DefaultCodeLength = 8

// Session is a two-party pairing. Code doubles as the primary key.
type Session struct {
	Code      string     `json:"code"`
	HostUser  string     `json:"host_user"`
	GuestUser *string    `json:"guest_user,omitempty"`
	ModeID    string     `json:"mode_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// HasGuest reports whether the guest slot is filled.
func (s *Session) HasGuest() bool { return s.GuestUser != nil }

// IsParty reports whether user is the host or the guest.
func (s *Session) IsParty(user string) bool {
	if s.HostUser == user {
		return true
	}
	return s.GuestUser != nil && *s.GuestUser == user
}

// Summary is the public view of a session returned to unauthenticated
// pollers. It never exposes user IDs.
type Summary struct {
	Exists  bool         `json:"exists"`
	Session *SummaryBody `json:"session,omitempty"`
}

// SummaryBody carries the fields a poller may see.
type SummaryBody struct {
	Status   Status `json:"status"`
	HasGuest bool   `json:"has_guest"`
	ModeID   string `json:"mode_id"`
}

// Summarize builds the public view of s. A nil session yields Exists=false.
func Summarize(s *Session) Summary {
	if s == nil {
		return Summary{}
	}
	return Summary{
		Exists: true,
		Session: &SummaryBody{
			Status:   s.Status,
			HasGuest: s.HasGuest(),
			ModeID:   s.ModeID,
		},
	}
}

// NewCode returns a random base58 code of the given length. The alphabet
// omits 0, O, I and l so codes survive being read aloud.
func NewCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("presence: read random: %w", err)
	}
	code := base58.Encode(buf)
	for len(code) < length {
		extra := make([]byte, length)
		if _, err := rand.Read(extra); err != nil {
			return "", fmt.Errorf("presence: read random: %w", err)
		}
		code += base58.Encode(extra)
	}
	return code[:length], nil
}
