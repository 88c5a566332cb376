package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/store/postgres"
	"github.com/xraph/rapport/store/storetest"
)

// newStore connects to the database named by RAPPORT_TEST_PG_DSN. Tests
// namespace their rows, so the database may be shared between runs.
func newStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("RAPPORT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("RAPPORT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestMigrationGroup(t *testing.T) {
	if got := postgres.Migrations.Name(); got != "rapport" {
		t.Errorf("group name = %q, want rapport", got)
	}
	ms := postgres.Migrations.Migrations()
	if len(ms) != 4 {
		t.Fatalf("registered %d migrations, want 4", len(ms))
	}
	seen := make(map[string]bool)
	for _, m := range ms {
		if seen[m.Version] {
			t.Errorf("duplicate version %s", m.Version)
		}
		seen[m.Version] = true
		if m.Up == nil || m.Down == nil {
			t.Errorf("migration %s lacks up or down", m.Name)
		}
	}
	if ms[0].Name != "create_rapport_edges" || ms[3].Name != "create_rapport_rounds" {
		t.Errorf("unexpected order: %s .. %s", ms[0].Name, ms[3].Name)
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := postgres.Open(ctx, "postgres://rapport@127.0.0.1:1/rapport?connect_timeout=1")
	if err != nil {
		if !rapport.IsUnavailable(err) {
			t.Fatalf("open err = %v, want unavailable", err)
		}
		return
	}
	defer s.Close() //nolint:errcheck // test cleanup

	if err := s.Ping(ctx); !rapport.IsUnavailable(err) {
		t.Errorf("Ping err = %v, want unavailable", err)
	}
	if _, err := s.GetSession(ctx, "ABCDEFGH"); !rapport.IsUnavailable(err) {
		t.Errorf("GetSession err = %v, want unavailable", err)
	}
}
