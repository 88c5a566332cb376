// Package entitlement models every independent grant a user can hold and
// the pure rules that decide whether a grant is active.
//
// All grant kinds share one tagged-variant record, Grant. Kind-specific
// behavior (scoping, expiry, consumption) is expressed as functions keyed
// by Kind in rules.go rather than as one query per kind.
package entitlement

import (
	"time"

	"github.com/xraph/rapport/id"
)

// Kind discriminates the grant variants.
type Kind string

const (
	// KindSubscription is a recurring VIP subscription. Unscoped.
	KindSubscription Kind = "subscription"
	// KindChatUnlock is a permanent unlock scoped to one target user.
	KindChatUnlock Kind = "chat_unlock"
	// KindTimedAccess is a time-boxed pass scoped to an access feature.
	KindTimedAccess Kind = "timed_access"
	// KindPowerUp is an optionally-expiring multiplier scoped to its type.
	KindPowerUp Kind = "power_up"
	// KindConsumable is a spendable counter. It is not stored as grants;
	// see Balance.
	KindConsumable Kind = "consumable"
)

// Plan is the billing period of a subscription.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// Well-known scope keys and counters.
const (
	FeatureUnlimitedMessaging = "unlimited_messaging"
	CounterSuperLike          = "super_like"
)

// Premium tiers reported by the access resolver.
const (
	TierVIP       = "vip"
	TierTimeBoxed = "timeBoxed"
)

// Grant is a single entitlement row.
type Grant struct {
	ID        id.GrantID `json:"id"`
	OwnerUser string     `json:"owner_user"`
	Kind      Kind       `json:"kind"`

	// ScopeKey disambiguates scoped kinds: the target user for chat
	// unlocks, the feature for timed access, the type for power-ups.
	ScopeKey string `json:"scope_key,omitempty"`

	// ExpiresAt nil means the grant never expires by time.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Plan       Plan    `json:"plan,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Balance is the counter behind the consumable kind. Mutations are always
// relative (balance = balance + n), never a write of an absolute value.
type Balance struct {
	OwnerUser string    `json:"owner_user"`
	Counter   string    `json:"counter"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PremiumStatus is the single-tier answer of the access resolver.
type PremiumStatus struct {
	IsPremium bool       `json:"is_premium"`
	Tier      *string    `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Purchase is a completed-purchase event from the payment collaborator.
// Payment authenticity is verified upstream; only the fields relevant to
// Kind are read.
type Purchase struct {
	UserID string `json:"user_id"`
	Kind   Kind   `json:"kind"`

	// Reference is an opaque upstream payment reference, carried through
	// to hooks for reconciliation.
	Reference string `json:"reference,omitempty"`

	Plan       Plan          `json:"plan,omitempty"`       // subscription
	Target     string        `json:"target,omitempty"`     // chat_unlock
	Feature    string        `json:"feature,omitempty"`    // timed_access
	Tonight    bool          `json:"tonight,omitempty"`    // timed_access
	Duration   time.Duration `json:"duration,omitempty"`   // timed_access, power_up
	PowerUp    string        `json:"power_up,omitempty"`   // power_up
	Multiplier float64       `json:"multiplier,omitempty"` // power_up
	Count      int64         `json:"count,omitempty"`      // consumable
}
