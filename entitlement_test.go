package rapport_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
)

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.engine.Subscribe(ctx, "u", entitlement.PlanMonthly)
	if err != nil {
		t.Fatal(err)
	}
	if want := epoch.AddDate(0, 1, 0); !g.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", g.ExpiresAt, want)
	}

	if _, err := f.engine.Subscribe(ctx, "u", entitlement.PlanYearly); !errors.Is(err, rapport.ErrAlreadyActive) {
		t.Fatalf("second subscribe: err = %v, want ErrAlreadyActive", err)
	}
	if _, err := f.engine.Subscribe(ctx, "u", "weekly"); !errors.Is(err, rapport.ErrUnknownPlan) {
		t.Errorf("unknown plan: err = %v", err)
	}

	f.clock.Set(*g.ExpiresAt)
	if _, err := f.engine.Subscribe(ctx, "u", entitlement.PlanYearly); err != nil {
		t.Errorf("resubscribe after expiry: %v", err)
	}
	if got := f.events.snapshot().subscriptions; got != 2 {
		t.Errorf("subscription events = %d, want 2", got)
	}
}

func TestConcurrentSubscribeOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const buyers = 10
	var (
		wg   sync.WaitGroup
		errs = make([]error, buyers)
	)
	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.engine.Subscribe(ctx, "u", entitlement.PlanMonthly)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, rapport.ErrAlreadyActive) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful subscriptions = %d, want 1", ok)
	}
}

func TestUnlockChatIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.UnlockChat(ctx, "u", "v")
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.engine.UnlockChat(ctx, "u", "v")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID.String() != again.ID.String() {
		t.Errorf("unlock not idempotent: %s vs %s", first.ID, again.ID)
	}
	if first.ExpiresAt != nil {
		t.Error("chat unlocks never expire")
	}
	grants, err := f.engine.ActiveGrants(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Errorf("active grants = %d, want 1", len(grants))
	}
}

func TestIsActiveExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.engine.GrantTimedAccess(ctx, "u", entitlement.FeatureUnlimitedMessaging, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := f.engine.Subscribe(ctx, "w", entitlement.PlanMonthly)
	if err != nil {
		t.Fatal(err)
	}
	boost, err := f.engine.GrantPowerUp(ctx, "x", "boost", 2, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		user  string
		kind  entitlement.Kind
		scope string
		exp   time.Time
	}{
		{"timed access", "u", entitlement.KindTimedAccess, entitlement.FeatureUnlimitedMessaging, *g.ExpiresAt},
		{"subscription", "w", entitlement.KindSubscription, "", *sub.ExpiresAt},
		{"power-up", "x", entitlement.KindPowerUp, "boost", *boost.ExpiresAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := func(at time.Time, want bool) {
				t.Helper()
				f.clock.Set(at)
				got, err := f.engine.IsActive(ctx, tt.user, tt.kind, tt.scope)
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("IsActive at %v = %v, want %v", at, got, want)
				}
			}
			check(tt.exp.Add(-time.Millisecond), true)
			check(tt.exp, false)
			check(tt.exp.Add(time.Millisecond), false)
		})
	}
}

func TestIsActiveUnknownKind(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IsActive(context.Background(), "u", "gold_star", ""); !errors.Is(err, rapport.ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestTonightAccess(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"bought at 23:00", time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)},
		{"bought at 02:00", time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.clock.Set(tt.now)

			g, err := f.engine.GrantTonightAccess(context.Background(), "u", entitlement.FeatureUnlimitedMessaging)
			if err != nil {
				t.Fatal(err)
			}
			if !g.ExpiresAt.Equal(tt.want) {
				t.Errorf("expires at %v, want %v", g.ExpiresAt, tt.want)
			}
		})
	}
}

func TestPowerUps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.GrantPowerUp(ctx, "u", "boost", 2, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.GrantPowerUp(ctx, "u", "boost", 2, time.Hour); err != nil {
		t.Fatal(err)
	}
	spot, err := f.engine.GrantPowerUp(ctx, "u", "spotlight", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if spot.Multiplier != 1 || spot.ExpiresAt != nil {
		t.Errorf("defaults not applied: %+v", spot)
	}

	ups, err := f.engine.ActivePowerUps(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 3 {
		t.Fatalf("active power-ups = %d, want 3", len(ups))
	}
	m, err := f.engine.BoostMultiplier(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if m != 4 {
		t.Errorf("multiplier = %v, want 4", m)
	}

	f.clock.Advance(time.Hour)
	m, err = f.engine.BoostMultiplier(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if m != 1 {
		t.Errorf("multiplier after expiry = %v, want 1", m)
	}
}

func TestSuperLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.engine.UseSuperLike(ctx, "u")
	if err != nil || ok {
		t.Fatalf("use on empty balance = %v, %v", ok, err)
	}
	if _, err := f.engine.AddSuperLikes(ctx, "u", 0); !errors.Is(err, rapport.ErrInvalidInput) {
		t.Errorf("add zero: err = %v", err)
	}

	n, err := f.engine.AddSuperLikes(ctx, "u", 2)
	if err != nil || n != 2 {
		t.Fatalf("add = %d, %v", n, err)
	}
	active, err := f.engine.IsActive(ctx, "u", entitlement.KindConsumable, entitlement.CounterSuperLike)
	if err != nil || !active {
		t.Errorf("consumable active = %v, %v", active, err)
	}
	for range 2 {
		if ok, err := f.engine.UseSuperLike(ctx, "u"); err != nil || !ok {
			t.Fatalf("use = %v, %v", ok, err)
		}
	}
	if ok, _ := f.engine.UseSuperLike(ctx, "u"); ok {
		t.Error("balance must not go negative")
	}
	if bal, _ := f.engine.SuperLikeBalance(ctx, "u"); bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestConcurrentSuperLikeBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const initial = 5
	if _, err := f.engine.AddSuperLikes(ctx, "u", initial); err != nil {
		t.Fatal(err)
	}

	amounts := []int64{1, 3, 2, 4, 1, 1, 2}
	const uses = 40

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
		added     int64
	)
	for _, n := range amounts {
		added += n
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.AddSuperLikes(ctx, "u", n); err != nil {
				t.Error(err)
			}
		}()
	}
	for range uses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.engine.UseSuperLike(ctx, "u")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	bal, err := f.engine.SuperLikeBalance(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if want := initial + added - succeeded; bal != want {
		t.Errorf("balance = %d, want %d", bal, want)
	}
	if bal < 0 {
		t.Errorf("balance went negative: %d", bal)
	}
}
