package rapport

import (
	"context"
	"errors"

	"github.com/xraph/rapport/entitlement"
)

// ──────────────────────────────────────────────────
// Access Resolver
// ──────────────────────────────────────────────────

// CanMessage reports whether user may message target. It consults, in
// order, an active subscription, a chat unlock for target and a timed
// pass for unlimited messaging, stopping at the first hit.
func (e *Engine) CanMessage(ctx context.Context, user, target string) (bool, error) {
	now := e.now()
	sources := []struct {
		kind  entitlement.Kind
		scope string
	}{
		{entitlement.KindSubscription, ""},
		{entitlement.KindChatUnlock, target},
		{entitlement.KindTimedAccess, entitlement.FeatureUnlimitedMessaging},
	}

	allowed := false
	for _, src := range sources {
		_, err := e.store.FindActiveGrant(ctx, user, src.kind, src.scope, now)
		if errors.Is(err, ErrGrantNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		allowed = true
		break
	}

	e.plugins.EmitAccessChecked(ctx, user, target, allowed)
	return allowed, nil
}

// PremiumStatus reports the user's single premium tier. A subscription
// wins over a timed pass.
func (e *Engine) PremiumStatus(ctx context.Context, user string) (*entitlement.PremiumStatus, error) {
	now := e.now()

	sub, err := e.store.FindActiveGrant(ctx, user, entitlement.KindSubscription, "", now)
	switch {
	case err == nil:
		return premium(entitlement.TierVIP, sub), nil
	case !errors.Is(err, ErrGrantNotFound):
		return nil, err
	}

	pass, err := e.store.FindActiveGrant(ctx, user, entitlement.KindTimedAccess, entitlement.FeatureUnlimitedMessaging, now)
	switch {
	case err == nil:
		return premium(entitlement.TierTimeBoxed, pass), nil
	case !errors.Is(err, ErrGrantNotFound):
		return nil, err
	}

	return &entitlement.PremiumStatus{}, nil
}

func premium(tier string, g *entitlement.Grant) *entitlement.PremiumStatus {
	st := &entitlement.PremiumStatus{IsPremium: true, Tier: &tier}
	if g.ExpiresAt != nil {
		exp := *g.ExpiresAt
		st.ExpiresAt = &exp
	}
	return st
}
