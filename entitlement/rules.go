package entitlement

import (
	"fmt"
	"time"
)

// TonightCutoffHour is the local hour at which "tonight" passes expire.
const TonightCutoffHour = 6

// Scoped reports whether grants of this kind must match a scope key.
func (k Kind) Scoped() bool {
	switch k {
	case KindChatUnlock, KindTimedAccess, KindPowerUp:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSubscription, KindChatUnlock, KindTimedAccess, KindPowerUp, KindConsumable:
		return true
	default:
		return false
	}
}

// ActiveAt reports whether g is valid at now. A grant is active strictly
// before its expiry and inactive from the expiry instant onwards.
func (g *Grant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// Matches reports whether g answers a query for (kind, scope).
func (g *Grant) Matches(kind Kind, scope string) bool {
	if g.Kind != kind {
		return false
	}
	return !kind.Scoped() || g.ScopeKey == scope
}

// SubscriptionExpiry returns the end of a subscription bought at now.
func SubscriptionExpiry(plan Plan, now time.Time) (time.Time, error) {
	switch plan {
	case PlanMonthly:
		return now.AddDate(0, 1, 0), nil
	case PlanYearly:
		return now.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("entitlement: unknown plan %q", plan)
	}
}

// TonightExpiry returns the next 06:00 in loc strictly after now. Before
// 06:00 that is today; at or after 06:00 it is tomorrow.
func TonightExpiry(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), TonightCutoffHour, 0, 0, 0, loc)
	if !cutoff.After(local) {
		cutoff = time.Date(local.Year(), local.Month(), local.Day()+1, TonightCutoffHour, 0, 0, 0, loc)
	}
	return cutoff
}

// FixedExpiry returns now+d, or nil when d <= 0 (no time expiry).
func FixedExpiry(now time.Time, d time.Duration) *time.Time {
	if d <= 0 {
		return nil
	}
	t := now.Add(d)
	return &t
}

// Latest returns the active grant in grants matching (kind, scope) that
// expires last. A grant without expiry outranks any expiring one.
func Latest(grants []*Grant, kind Kind, scope string, now time.Time) *Grant {
	var best *Grant
	for _, g := range grants {
		if !g.Matches(kind, scope) || !g.ActiveAt(now) {
			continue
		}
		switch {
		case best == nil:
			best = g
		case best.ExpiresAt == nil:
		case g.ExpiresAt == nil || g.ExpiresAt.After(*best.ExpiresAt):
			best = g
		}
	}
	return best
}

// NormalizeMultiplier maps an unset multiplier to 1.
func NormalizeMultiplier(m float64) float64 {
	if m <= 0 {
		return 1
	}
	return m
}
