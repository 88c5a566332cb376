package memory_test

import (
	"context"
	"testing"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/store/memory"
	"github.com/xraph/rapport/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Ping(ctx); !rapport.IsUnavailable(err) {
		t.Errorf("Ping after Close = %v", err)
	}
	if _, err := s.GetBalance(ctx, "u", "super_like"); !rapport.IsUnavailable(err) {
		t.Errorf("GetBalance after Close = %v", err)
	}
}
