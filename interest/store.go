package interest

import (
	"context"
	"time"

	"github.com/xraph/rapport/id"
)

// Store persists interest edges. Every mutating method is a single atomic
// unit on the backend: implementations must never express these as a read
// followed by an unconditional write.
type Store interface {
	// RecordInterest inserts the (from, to) edge. It serializes on the
	// unordered pair: when the reverse edge is pending, the reverse edge is
	// promoted to matched and the forward edge inserted as matched with the
	// same timestamp, in one transaction. Fails with ErrDuplicateInterest
	// when (from, to) already exists in any status.
	RecordInterest(ctx context.Context, from, to string, now time.Time) (*Result, error)

	// GetEdge returns the edge with the given ID or ErrEdgeNotFound.
	GetEdge(ctx context.Context, edgeID id.EdgeID) (*Edge, error)

	// GetEdgeByPair returns the directed (from, to) edge or ErrEdgeNotFound.
	GetEdgeByPair(ctx context.Context, from, to string) (*Edge, error)

	// ListMatches returns the edges authored by user that are matched.
	ListMatches(ctx context.Context, user string) ([]*Edge, error)

	// Respond transitions a pending edge to matched or declined. On accept
	// the reverse edge is inserted or promoted to matched with the same
	// timestamp. Fails with ErrEdgeNotPending when the edge is not pending.
	Respond(ctx context.Context, edgeID id.EdgeID, accept bool, now time.Time) (*Edge, error)

	// Unmatch moves both edges of the pair from matched to unmatched and
	// returns the number of edges changed.
	Unmatch(ctx context.Context, a, b string, now time.Time) (int, error)

	// SetChatUnlocked raises the chat-unlock flag on both edges of the pair.
	SetChatUnlocked(ctx context.Context, a, b string, now time.Time) error
}
