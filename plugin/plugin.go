// Package plugin provides the hook system of the matching core. Plugins
// observe engine events (matches, sessions, grants, rounds) and are how
// notifications, audit trails and metrics attach to the engine.
//
// A plugin implements Plugin plus any subset of the hook interfaces below.
// Hooks are fire-and-forget: an error or timeout is logged and never
// affects the operation that emitted the event.
package plugin

import (
	"context"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Match hooks
// ──────────────────────────────────────────────────

// OnInterestRecorded is called after a new edge is stored, whether or not
// it completed a match.
type OnInterestRecorded interface {
	Plugin
	OnInterestRecorded(ctx context.Context, edge *interest.Edge) error
}

// OnMatchCreated is called once per newly formed mutual match.
type OnMatchCreated interface {
	Plugin
	OnMatchCreated(ctx context.Context, matchID id.EdgeID, a, b string) error
}

// OnInterestDeclined is called when a pending edge is declined.
type OnInterestDeclined interface {
	Plugin
	OnInterestDeclined(ctx context.Context, edge *interest.Edge) error
}

// OnUnmatched is called when a matched pair is dissolved.
type OnUnmatched interface {
	Plugin
	OnUnmatched(ctx context.Context, a, b string) error
}

// ──────────────────────────────────────────────────
// Presence hooks
// ──────────────────────────────────────────────────

// OnSessionCreated is called after a presence session is opened.
type OnSessionCreated interface {
	Plugin
	OnSessionCreated(ctx context.Context, s *presence.Session) error
}

// OnSessionJoined is called after a guest joins a session.
type OnSessionJoined interface {
	Plugin
	OnSessionJoined(ctx context.Context, s *presence.Session) error
}

// OnSessionEnded is called the first time a session ends.
type OnSessionEnded interface {
	Plugin
	OnSessionEnded(ctx context.Context, s *presence.Session) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnGrantCreated is called for every newly stored grant.
type OnGrantCreated interface {
	Plugin
	OnGrantCreated(ctx context.Context, g *entitlement.Grant) error
}

// OnSubscriptionCreated is called when a subscription grant is stored.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, g *entitlement.Grant) error
}

// OnBalanceChanged is called after a consumable counter moves.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, owner, counter string, delta int64) error
}

// OnPurchaseCompleted is called after a purchase has been applied.
type OnPurchaseCompleted interface {
	Plugin
	OnPurchaseCompleted(ctx context.Context, p *entitlement.Purchase) error
}

// OnAccessChecked is called after every CanMessage resolution.
type OnAccessChecked interface {
	Plugin
	OnAccessChecked(ctx context.Context, user, target string, allowed bool) error
}

// ──────────────────────────────────────────────────
// VibeLock hooks
// ──────────────────────────────────────────────────

// OnRoundCompleted is called once per round, by the request that
// completed it.
type OnRoundCompleted interface {
	Plugin
	OnRoundCompleted(ctx context.Context, r *vibelock.Round) error
}

// OnChatUnlocked is called when a round unlocks chat for a match.
type OnChatUnlocked interface {
	Plugin
	OnChatUnlocked(ctx context.Context, matchID id.EdgeID, a, b string) error
}
