package entitlement

import (
	"context"
	"time"
)

// Store persists grants and consumable balances. The Ledger side of the
// engine is the only writer.
type Store interface {
	// CreateGrant inserts a grant unconditionally (power-ups, timed access).
	CreateGrant(ctx context.Context, g *Grant) error

	// CreateExclusiveGrant inserts g only if the owner holds no grant of
	// the same kind that is active at now; otherwise ErrAlreadyActive.
	// The check and the insert are one atomic unit.
	CreateExclusiveGrant(ctx context.Context, g *Grant, now time.Time) error

	// EnsureGrant inserts g unless a grant with the same owner, kind and
	// scope already exists. It returns the stored grant and whether it was
	// created by this call.
	EnsureGrant(ctx context.Context, g *Grant) (*Grant, bool, error)

	// FindActiveGrant returns the active grant matching (kind, scope) that
	// expires last, or ErrGrantNotFound.
	FindActiveGrant(ctx context.Context, owner string, kind Kind, scope string, now time.Time) (*Grant, error)

	// ListActiveGrants returns every grant of owner active at now.
	ListActiveGrants(ctx context.Context, owner string, now time.Time) ([]*Grant, error)

	// AddBalance atomically adds n to the counter (creating it at zero) and
	// returns the new balance.
	AddBalance(ctx context.Context, owner, counter string, n int64, now time.Time) (int64, error)

	// ConsumeBalance atomically decrements the counter by one if it is
	// positive. It reports false, without mutating, otherwise.
	ConsumeBalance(ctx context.Context, owner, counter string, now time.Time) (bool, error)

	// GetBalance returns the counter value (zero when absent).
	GetBalance(ctx context.Context, owner, counter string) (int64, error)
}
