package rapport_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/safety"
)

func TestMutualInterestFormsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.RecordInterest(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if first.IsNewMatch || first.Edge.Status != interest.StatusPending {
		t.Fatalf("first like: got new=%v status=%s, want pending", first.IsNewMatch, first.Edge.Status)
	}

	f.clock.Advance(1)
	second, err := f.engine.RecordInterest(ctx, "u2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsNewMatch {
		t.Fatal("second like should form a match")
	}
	if second.MatchID.String() != first.Edge.ID.String() {
		t.Errorf("MatchID = %s, want %s", second.MatchID, first.Edge.ID)
	}

	m12, err := f.engine.GetMatch(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	m21, err := f.engine.GetMatch(ctx, "u2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if m12.Status != interest.StatusMatched || m21.Status != interest.StatusMatched {
		t.Errorf("statuses = %s/%s, want matched", m12.Status, m21.Status)
	}
	if m12.MatchedAt == nil || m21.MatchedAt == nil || !m12.MatchedAt.Equal(*m21.MatchedAt) {
		t.Errorf("matchedAt differs: %v vs %v", m12.MatchedAt, m21.MatchedAt)
	}

	if got := f.events.snapshot().matches; len(got) != 1 {
		t.Errorf("match events = %d, want 1", len(got))
	}
}

func TestRecordInterestErrors(t *testing.T) {
	blocks := safety.NewSet()
	blocks.Block("carol", "dave")
	f := newFixture(t, rapport.WithSafety(blocks))
	ctx := context.Background()

	if _, err := f.engine.RecordInterest(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		from, to string
		want     error
		category func(error) bool
	}{
		{"self", "a", "a", rapport.ErrSelfInterest, rapport.IsConflict},
		{"duplicate", "a", "b", rapport.ErrDuplicateInterest, rapport.IsConflict},
		{"blocked by target", "dave", "carol", rapport.ErrBlocked, rapport.IsForbidden},
		{"blocked target", "carol", "dave", rapport.ErrBlocked, rapport.IsForbidden},
		{"empty from", "", "b", rapport.ErrInvalidInput, func(err error) bool { return errors.Is(err, rapport.ErrInvalidInput) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.RecordInterest(ctx, tt.from, tt.to)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !tt.category(err) {
				t.Errorf("err %v not in expected category", err)
			}
		})
	}
}

func TestConcurrentMutualInterest(t *testing.T) {
	for i := range 50 {
		t.Run(fmt.Sprintf("run-%d", i), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			var (
				wg      sync.WaitGroup
				results [2]*interest.Result
				errs    [2]error
			)
			pairs := [2][2]string{{"a", "b"}, {"b", "a"}}
			for j, p := range pairs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[j], errs[j] = f.engine.RecordInterest(ctx, p[0], p[1])
				}()
			}
			wg.Wait()

			newMatches := 0
			for j := range results {
				if errs[j] != nil {
					t.Fatalf("RecordInterest: %v", errs[j])
				}
				if results[j].IsNewMatch {
					newMatches++
				}
			}
			if newMatches != 1 {
				t.Fatalf("new matches = %d, want exactly 1", newMatches)
			}

			for _, p := range pairs {
				if _, err := f.engine.GetMatch(ctx, p[0], p[1]); err != nil {
					t.Errorf("GetMatch(%s,%s): %v", p[0], p[1], err)
				}
			}
		})
	}
}

func TestRespondToInterest(t *testing.T) {
	ctx := context.Background()

	t.Run("accept", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.engine.RecordInterest(ctx, "a", "b")
		if err != nil {
			t.Fatal(err)
		}

		if _, err := f.engine.RespondToInterest(ctx, res.Edge.ID, "a", true); !errors.Is(err, rapport.ErrForbidden) {
			t.Fatalf("author responding: err = %v, want ErrForbidden", err)
		}

		edge, err := f.engine.RespondToInterest(ctx, res.Edge.ID, "b", true)
		if err != nil {
			t.Fatal(err)
		}
		if edge.Status != interest.StatusMatched {
			t.Fatalf("status = %s, want matched", edge.Status)
		}
		back, err := f.engine.GetMatch(ctx, "b", "a")
		if err != nil {
			t.Fatalf("reverse edge should be matched: %v", err)
		}
		if !back.MatchedAt.Equal(*edge.MatchedAt) {
			t.Errorf("matchedAt differs: %v vs %v", back.MatchedAt, edge.MatchedAt)
		}

		if _, err := f.engine.RespondToInterest(ctx, res.Edge.ID, "b", false); !errors.Is(err, rapport.ErrEdgeNotPending) {
			t.Errorf("second response: err = %v, want ErrEdgeNotPending", err)
		}
	})

	t.Run("decline", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.engine.RecordInterest(ctx, "a", "b")
		if err != nil {
			t.Fatal(err)
		}
		edge, err := f.engine.RespondToInterest(ctx, res.Edge.ID, "b", false)
		if err != nil {
			t.Fatal(err)
		}
		if edge.Status != interest.StatusDeclined {
			t.Errorf("status = %s, want declined", edge.Status)
		}
		if _, err := f.engine.GetMatch(ctx, "a", "b"); !errors.Is(err, rapport.ErrMatchNotFound) {
			t.Errorf("GetMatch: err = %v, want ErrMatchNotFound", err)
		}
		if got := f.events.snapshot().declined; got != 1 {
			t.Errorf("declined events = %d, want 1", got)
		}
	})
}

func TestUnmatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.RecordInterest(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.RecordInterest(ctx, "b", "a")
	if err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Unmatch(ctx, res.MatchID, "mallory"); !errors.Is(err, rapport.ErrForbidden) {
		t.Fatalf("outsider unmatch: err = %v, want ErrForbidden", err)
	}
	if err := f.engine.Unmatch(ctx, res.MatchID, "b"); err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]string{{"a", "b"}, {"b", "a"}} {
		if _, err := f.engine.GetMatch(ctx, p[0], p[1]); !errors.Is(err, rapport.ErrMatchNotFound) {
			t.Errorf("GetMatch(%s,%s) after unmatch: err = %v", p[0], p[1], err)
		}
	}
	if err := f.engine.Unmatch(ctx, res.MatchID, "a"); !errors.Is(err, rapport.ErrNotMatched) {
		t.Errorf("second unmatch: err = %v, want ErrNotMatched", err)
	}

	matches, err := f.engine.ListMatches(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("ListMatches = %d, want 0", len(matches))
	}
}

func TestForceUnmatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.engine.ForceUnmatch(ctx, "a", "b")
	if err != nil || ok {
		t.Fatalf("ForceUnmatch without match = %v, %v; want false, nil", ok, err)
	}

	if _, err := f.engine.RecordInterest(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.RecordInterest(ctx, "b", "a"); err != nil {
		t.Fatal(err)
	}
	matches, err := f.engine.ListMatches(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Peer("b") != "a" {
		t.Fatalf("ListMatches(b) = %+v", matches)
	}

	ok, err = f.engine.ForceUnmatch(ctx, "b", "a")
	if err != nil || !ok {
		t.Fatalf("ForceUnmatch = %v, %v; want true, nil", ok, err)
	}
	if got := f.events.snapshot().unmatched; got != 1 {
		t.Errorf("unmatched events = %d, want 1", got)
	}
}
