package rapport

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
)

// ──────────────────────────────────────────────────
// Entitlement Ledger
// ──────────────────────────────────────────────────

// Subscribe starts a VIP subscription. At most one subscription may be
// active per user; a second purchase while one is active fails with
// ErrAlreadyActive.
func (e *Engine) Subscribe(ctx context.Context, user string, plan entitlement.Plan) (*entitlement.Grant, error) {
	if user == "" {
		return nil, ValidationError{Field: "user", Message: "must not be empty"}
	}
	now := e.now()
	expires, err := entitlement.SubscriptionExpiry(plan, now)
	if err != nil {
		return nil, ErrUnknownPlan
	}

	g := &entitlement.Grant{
		ID:        id.NewGrantID(),
		OwnerUser: user,
		Kind:      entitlement.KindSubscription,
		ExpiresAt: &expires,
		Plan:      plan,
		CreatedAt: now,
	}
	if err := e.store.CreateExclusiveGrant(ctx, g, now); err != nil {
		return nil, err
	}

	e.logger.Debug("subscription created", "user", user, "plan", plan, "expires_at", expires)
	e.plugins.EmitGrantCreated(ctx, g)
	e.plugins.EmitSubscriptionCreated(ctx, g)
	return g, nil
}

// UnlockChat permanently unlocks messaging from owner to target. Repeated
// unlocks return the existing grant.
func (e *Engine) UnlockChat(ctx context.Context, owner, target string) (*entitlement.Grant, error) {
	if owner == "" || target == "" {
		return nil, ValidationError{Field: "target", Message: "owner and target are required"}
	}
	g, created, err := e.store.EnsureGrant(ctx, &entitlement.Grant{
		ID:        id.NewGrantID(),
		OwnerUser: owner,
		Kind:      entitlement.KindChatUnlock,
		ScopeKey:  target,
		CreatedAt: e.now(),
	})
	if err != nil {
		return nil, err
	}
	if created {
		e.logger.Debug("chat unlocked", "owner", owner, "target", target)
		e.plugins.EmitGrantCreated(ctx, g)
	}
	return g, nil
}

// GrantTimedAccess grants feature to user for d.
func (e *Engine) GrantTimedAccess(ctx context.Context, user, feature string, d time.Duration) (*entitlement.Grant, error) {
	if d <= 0 {
		return nil, ValidationError{Field: "duration", Message: "must be positive"}
	}
	now := e.now()
	return e.grantTimed(ctx, user, feature, now.Add(d), now)
}

// GrantTonightAccess grants feature to user until the next 06:00 in the
// engine's location.
func (e *Engine) GrantTonightAccess(ctx context.Context, user, feature string) (*entitlement.Grant, error) {
	now := e.now()
	return e.grantTimed(ctx, user, feature, entitlement.TonightExpiry(now, e.loc), now)
}

func (e *Engine) grantTimed(ctx context.Context, user, feature string, expires, now time.Time) (*entitlement.Grant, error) {
	if user == "" {
		return nil, ValidationError{Field: "user", Message: "must not be empty"}
	}
	if feature == "" {
		feature = entitlement.FeatureUnlimitedMessaging
	}
	g := &entitlement.Grant{
		ID:        id.NewGrantID(),
		OwnerUser: user,
		Kind:      entitlement.KindTimedAccess,
		ScopeKey:  feature,
		ExpiresAt: &expires,
		CreatedAt: now,
	}
	if err := e.store.CreateGrant(ctx, g); err != nil {
		return nil, err
	}
	e.logger.Debug("timed access granted", "user", user, "feature", feature, "expires_at", expires)
	e.plugins.EmitGrantCreated(ctx, g)
	return g, nil
}

// GrantPowerUp grants a power-up. A non-positive d means no expiry and a
// non-positive multiplier means 1. Every call creates a new grant.
func (e *Engine) GrantPowerUp(ctx context.Context, user, powerUp string, multiplier float64, d time.Duration) (*entitlement.Grant, error) {
	if user == "" {
		return nil, ValidationError{Field: "user", Message: "must not be empty"}
	}
	if powerUp == "" {
		return nil, ValidationError{Field: "power_up", Message: "must not be empty"}
	}
	now := e.now()
	g := &entitlement.Grant{
		ID:         id.NewGrantID(),
		OwnerUser:  user,
		Kind:       entitlement.KindPowerUp,
		ScopeKey:   powerUp,
		ExpiresAt:  entitlement.FixedExpiry(now, d),
		Multiplier: entitlement.NormalizeMultiplier(multiplier),
		CreatedAt:  now,
	}
	if err := e.store.CreateGrant(ctx, g); err != nil {
		return nil, err
	}
	e.logger.Debug("power-up granted", "user", user, "type", powerUp, "multiplier", g.Multiplier)
	e.plugins.EmitGrantCreated(ctx, g)
	return g, nil
}

// AddSuperLikes credits n super-likes and returns the new balance.
func (e *Engine) AddSuperLikes(ctx context.Context, user string, n int64) (int64, error) {
	if user == "" {
		return 0, ValidationError{Field: "user", Message: "must not be empty"}
	}
	if n <= 0 {
		return 0, ValidationError{Field: "count", Message: "must be positive"}
	}
	balance, err := e.store.AddBalance(ctx, user, entitlement.CounterSuperLike, n, e.now())
	if err != nil {
		return 0, err
	}
	e.plugins.EmitBalanceChanged(ctx, user, entitlement.CounterSuperLike, n)
	return balance, nil
}

// UseSuperLike spends one super-like. It returns false, without mutating
// anything, when the balance is zero.
func (e *Engine) UseSuperLike(ctx context.Context, user string) (bool, error) {
	ok, err := e.store.ConsumeBalance(ctx, user, entitlement.CounterSuperLike, e.now())
	if err != nil {
		return false, err
	}
	if ok {
		e.plugins.EmitBalanceChanged(ctx, user, entitlement.CounterSuperLike, -1)
	}
	return ok, nil
}

// SuperLikeBalance returns the user's super-like count.
func (e *Engine) SuperLikeBalance(ctx context.Context, user string) (int64, error) {
	return e.store.GetBalance(ctx, user, entitlement.CounterSuperLike)
}

// IsActive reports whether user holds an active grant of kind for scope.
// For the consumable kind scope names the counter and the answer is
// balance > 0.
func (e *Engine) IsActive(ctx context.Context, user string, kind entitlement.Kind, scope string) (bool, error) {
	if !kind.Valid() {
		return false, ErrUnknownKind
	}
	if kind == entitlement.KindConsumable {
		if scope == "" {
			scope = entitlement.CounterSuperLike
		}
		n, err := e.store.GetBalance(ctx, user, scope)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}

	_, err := e.store.FindActiveGrant(ctx, user, kind, scope, e.now())
	if errors.Is(err, ErrGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveGrants returns every grant the user holds that is active now.
func (e *Engine) ActiveGrants(ctx context.Context, user string) ([]*entitlement.Grant, error) {
	return e.store.ListActiveGrants(ctx, user, e.now())
}

// ActivePowerUps returns the user's active power-up grants.
func (e *Engine) ActivePowerUps(ctx context.Context, user string) ([]*entitlement.Grant, error) {
	grants, err := e.store.ListActiveGrants(ctx, user, e.now())
	if err != nil {
		return nil, err
	}
	out := make([]*entitlement.Grant, 0, len(grants))
	for _, g := range grants {
		if g.Kind == entitlement.KindPowerUp {
			out = append(out, g)
		}
	}
	return out, nil
}

// BoostMultiplier is the product of the multipliers of every active
// power-up, 1 when there are none.
func (e *Engine) BoostMultiplier(ctx context.Context, user string) (float64, error) {
	powerUps, err := e.ActivePowerUps(ctx, user)
	if err != nil {
		return 0, err
	}
	m := 1.0
	for _, g := range powerUps {
		m *= entitlement.NormalizeMultiplier(g.Multiplier)
	}
	return m, nil
}
