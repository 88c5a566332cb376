package rapport_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/store/memory"
	"github.com/xraph/rapport/vibelock"
)

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// firstRand always draws the lowest value.
type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

// lastRand always draws the highest value.
type lastRand struct{}

func (lastRand) IntN(n int) int { return n - 1 }

// events is what the recorder plugin has observed so far.
type events struct {
	matches       []string
	subscriptions int
	purchases     []*entitlement.Purchase
	sessionsEnded int
	rounds        int
	chatUnlocks   int
	balanceDeltas []int64
	declined      int
	unmatched     int
	accessChecks  []bool
}

// recorder is a plugin that records the events it observes.
type recorder struct {
	mu  sync.Mutex
	got events
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) record(fn func(*events)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.got)
	return nil
}

func (r *recorder) OnMatchCreated(_ context.Context, matchID id.EdgeID, _, _ string) error {
	return r.record(func(e *events) { e.matches = append(e.matches, matchID.String()) })
}

func (r *recorder) OnSubscriptionCreated(context.Context, *entitlement.Grant) error {
	return r.record(func(e *events) { e.subscriptions++ })
}

func (r *recorder) OnPurchaseCompleted(_ context.Context, p *entitlement.Purchase) error {
	return r.record(func(e *events) { e.purchases = append(e.purchases, p) })
}

func (r *recorder) OnSessionEnded(context.Context, *presence.Session) error {
	return r.record(func(e *events) { e.sessionsEnded++ })
}

func (r *recorder) OnRoundCompleted(context.Context, *vibelock.Round) error {
	return r.record(func(e *events) { e.rounds++ })
}

func (r *recorder) OnChatUnlocked(context.Context, id.EdgeID, string, string) error {
	return r.record(func(e *events) { e.chatUnlocks++ })
}

func (r *recorder) OnBalanceChanged(_ context.Context, _, _ string, delta int64) error {
	return r.record(func(e *events) { e.balanceDeltas = append(e.balanceDeltas, delta) })
}

func (r *recorder) OnInterestDeclined(context.Context, *interest.Edge) error {
	return r.record(func(e *events) { e.declined++ })
}

func (r *recorder) OnUnmatched(context.Context, string, string) error {
	return r.record(func(e *events) { e.unmatched++ })
}

func (r *recorder) OnAccessChecked(_ context.Context, _, _ string, allowed bool) error {
	return r.record(func(e *events) { e.accessChecks = append(e.accessChecks, allowed) })
}

func (r *recorder) snapshot() events {
	r.mu.Lock()
	defer r.mu.Unlock()
	got := r.got
	got.matches = append([]string(nil), r.got.matches...)
	got.purchases = append([]*entitlement.Purchase(nil), r.got.purchases...)
	got.balanceDeltas = append([]int64(nil), r.got.balanceDeltas...)
	got.accessChecks = append([]bool(nil), r.got.accessChecks...)
	return got
}

type fixture struct {
	engine *rapport.Engine
	store  *memory.Store
	clock  *testClock
	events *recorder
}

var epoch = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...rapport.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		clock:  newTestClock(epoch),
		events: &recorder{},
	}
	base := []rapport.Option{
		rapport.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		rapport.WithClock(f.clock.Now),
		rapport.WithLocation(time.UTC),
		rapport.WithRand(firstRand{}),
		rapport.WithPlugin(f.events),
	}
	f.engine = rapport.New(f.store, append(base, opts...)...)

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = f.engine.Stop() })
	return f
}

func TestStopClosesStore(t *testing.T) {
	st := memory.New()
	engine := rapport.New(st)
	ctx := context.Background()

	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := engine.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := engine.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Ping(ctx); !rapport.IsUnavailable(err) {
		t.Errorf("Ping after Stop = %v, want unavailable", err)
	}
}
