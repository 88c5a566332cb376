package rapport_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/store/memory"
)

// TestDocumentationExamples verifies that the package documentation
// examples behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		engine := rapport.New(memory.New(), rapport.WithLogger(slog.Default()))

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		first, err := engine.RecordInterest(ctx, "alice", "bob")
		if err != nil {
			t.Fatal(err)
		}
		res, err := engine.RecordInterest(ctx, "bob", "alice")
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsNewMatch {
			t.Fatal("expected the second like to form a match")
		}
		if res.MatchID.String() != first.Edge.ID.String() {
			t.Errorf("match ID = %s, want alice's edge %s", res.MatchID, first.Edge.ID)
		}
	})

	t.Run("EntitlementExample", func(t *testing.T) {
		engine := rapport.New(memory.New())
		ctx := context.Background()

		if _, err := engine.Subscribe(ctx, "alice", entitlement.PlanMonthly); err != nil {
			t.Fatal(err)
		}
		ok, err := engine.CanMessage(ctx, "alice", "bob")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("subscriber should be able to message")
		}
	})
}
