// Package store defines the unified persistence contract of the matching
// core. Backends live in the sub-packages and are selected explicitly by
// the caller (see package storefactory); none is initialized implicitly.
package store

import (
	"context"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// Store is the unified storage interface for all record kinds. Each
// entity package owns its narrow sub-interface; the method names do not
// collide, so they are embedded directly.
type Store interface {
	interest.Store
	presence.Store
	entitlement.Store
	vibelock.Store

	// Migrate creates or upgrades the backend schema. Safe to repeat.
	Migrate(ctx context.Context) error
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
