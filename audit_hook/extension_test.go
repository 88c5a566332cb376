package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/rapport"
	audithook "github.com/xraph/rapport/audit_hook"
	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/store/memory"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func TestEngineEventsAreAudited(t *testing.T) {
	rec := &sink{}
	engine := rapport.New(memory.New(), rapport.WithPlugin(audithook.New(rec)))
	ctx := context.Background()

	if _, err := engine.RecordInterest(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	res, err := engine.RecordInterest(ctx, "b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Subscribe(ctx, "a", entitlement.PlanMonthly); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.CanMessage(ctx, "b", "a"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		audithook.ActionInterestRecorded,
		audithook.ActionInterestRecorded,
		audithook.ActionMatchCreated,
		audithook.ActionGrantCreated,
		audithook.ActionSubscriptionCreated,
		audithook.ActionAccessDenied,
	}
	got := rec.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	rec.mu.Lock()
	match := rec.events[2]
	rec.mu.Unlock()
	if match.ResourceID != res.MatchID.String() {
		t.Errorf("match resource = %s, want %s", match.ResourceID, res.MatchID)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionAccessGranted))
	ctx := context.Background()

	if err := ext.OnAccessChecked(ctx, "a", "b", true); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnAccessChecked(ctx, "a", "b", false); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnUnmatched(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionAccessGranted {
		t.Errorf("actions = %v", got)
	}
}

func TestDisabledActions(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionBalanceDebited))
	ctx := context.Background()

	_ = ext.OnBalanceChanged(ctx, "u", entitlement.CounterSuperLike, 3)
	_ = ext.OnBalanceChanged(ctx, "u", entitlement.CounterSuperLike, -1)

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionBalanceCredited {
		t.Errorf("actions = %v", got)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing)
	if err := ext.OnUnmatched(context.Background(), "a", "b"); err != nil {
		t.Errorf("hook returned %v, want nil", err)
	}
}
