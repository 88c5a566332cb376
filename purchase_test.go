package rapport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
)

func TestApplyPurchase(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		purchase entitlement.Purchase
		check    func(t *testing.T, f *fixture)
	}{
		{
			name:     "subscription",
			purchase: entitlement.Purchase{UserID: "u", Kind: entitlement.KindSubscription, Plan: entitlement.PlanYearly},
			check: func(t *testing.T, f *fixture) {
				st, err := f.engine.PremiumStatus(ctx, "u")
				if err != nil || !st.IsPremium || *st.Tier != entitlement.TierVIP {
					t.Errorf("premium = %+v, %v", st, err)
				}
			},
		},
		{
			name:     "chat unlock",
			purchase: entitlement.Purchase{UserID: "u", Kind: entitlement.KindChatUnlock, Target: "v"},
			check: func(t *testing.T, f *fixture) {
				ok, err := f.engine.CanMessage(ctx, "u", "v")
				if err != nil || !ok {
					t.Errorf("CanMessage = %v, %v", ok, err)
				}
			},
		},
		{
			name:     "tonight pass",
			purchase: entitlement.Purchase{UserID: "u", Kind: entitlement.KindTimedAccess, Tonight: true},
			check: func(t *testing.T, f *fixture) {
				f.clock.Set(time.Date(2026, 3, 11, 5, 59, 0, 0, time.UTC))
				ok, err := f.engine.CanMessage(ctx, "u", "v")
				if err != nil || !ok {
					t.Errorf("before 06:00: CanMessage = %v, %v", ok, err)
				}
				f.clock.Set(time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC))
				ok, err = f.engine.CanMessage(ctx, "u", "v")
				if err != nil || ok {
					t.Errorf("at 06:00: CanMessage = %v, %v", ok, err)
				}
			},
		},
		{
			name:     "power-up",
			purchase: entitlement.Purchase{UserID: "u", Kind: entitlement.KindPowerUp, PowerUp: "boost", Multiplier: 3, Duration: time.Hour},
			check: func(t *testing.T, f *fixture) {
				m, err := f.engine.BoostMultiplier(ctx, "u")
				if err != nil || m != 3 {
					t.Errorf("multiplier = %v, %v", m, err)
				}
			},
		},
		{
			name:     "super-likes",
			purchase: entitlement.Purchase{UserID: "u", Kind: entitlement.KindConsumable, Count: 5},
			check: func(t *testing.T, f *fixture) {
				n, err := f.engine.SuperLikeBalance(ctx, "u")
				if err != nil || n != 5 {
					t.Errorf("balance = %d, %v", n, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := tt.purchase
			if err := f.engine.ApplyPurchase(ctx, &p); err != nil {
				t.Fatal(err)
			}
			tt.check(t, f)
			if got := f.events.snapshot().purchases; len(got) != 1 || got[0].Kind != p.Kind {
				t.Errorf("purchase events = %+v", got)
			}
		})
	}
}

func TestApplyPurchaseRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		purchase *entitlement.Purchase
		want     error
	}{
		{"nil", nil, rapport.ErrInvalidInput},
		{"no user", &entitlement.Purchase{Kind: entitlement.KindConsumable, Count: 1}, rapport.ErrInvalidInput},
		{"unknown kind", &entitlement.Purchase{UserID: "u", Kind: "gift"}, rapport.ErrUnknownKind},
		{"unknown plan", &entitlement.Purchase{UserID: "u", Kind: entitlement.KindSubscription, Plan: "weekly"}, rapport.ErrUnknownPlan},
		{"unlock self", &entitlement.Purchase{UserID: "u", Kind: entitlement.KindChatUnlock, Target: "u"}, rapport.ErrInvalidInput},
		{"timed without duration", &entitlement.Purchase{UserID: "u", Kind: entitlement.KindTimedAccess}, rapport.ErrInvalidInput},
		{"zero super-likes", &entitlement.Purchase{UserID: "u", Kind: entitlement.KindConsumable}, rapport.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.engine.ApplyPurchase(ctx, tt.purchase)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := f.events.snapshot().purchases; len(got) != 0 {
				t.Errorf("rejected purchase emitted %d events", len(got))
			}
		})
	}
}

func TestApplyPurchaseSecondSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &entitlement.Purchase{UserID: "u", Kind: entitlement.KindSubscription, Plan: entitlement.PlanMonthly}

	if err := f.engine.ApplyPurchase(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.ApplyPurchase(ctx, p); !errors.Is(err, rapport.ErrAlreadyActive) {
		t.Errorf("err = %v, want ErrAlreadyActive", err)
	}
}

func TestValidatePurchaseCollectsAll(t *testing.T) {
	err := rapport.ValidatePurchase(&entitlement.Purchase{Kind: entitlement.KindPowerUp, Multiplier: -1})

	var multi rapport.MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("err = %T, want MultiError", err)
	}
	if len(multi.Errors) != 3 {
		t.Errorf("errors = %d (%v), want 3", len(multi.Errors), multi.Errors)
	}
}
