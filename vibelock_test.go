package rapport_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/store/memory"
	"github.com/xraph/rapport/vibelock"
)

var petsQuestion = vibelock.Question{
	ID:      "pets",
	Prompt:  "Cats or dogs?",
	Options: []string{"Cats", "Dogs"},
}

// matchUsers makes a and b a match and returns both edge IDs (a's first).
func matchUsers(t *testing.T, f *fixture, a, b string) (id.EdgeID, id.EdgeID) {
	t.Helper()
	ctx := context.Background()
	first, err := f.engine.RecordInterest(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.RecordInterest(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsNewMatch {
		t.Fatal("expected a match")
	}
	return first.Edge.ID, second.Edge.ID
}

func TestStartRound(t *testing.T) {
	f := newFixture(t, rapport.WithQuestions([]vibelock.Question{petsQuestion}))
	ctx := context.Background()

	ab, ba := matchUsers(t, f, "bob", "alice")

	r1, err := f.engine.StartRound(ctx, ab, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if r1.Question.ID != "pets" || r1.Completed {
		t.Fatalf("round = %+v", r1)
	}
	if r1.User1 != "alice" || r1.User2 != "bob" {
		t.Errorf("participants = %s/%s", r1.User1, r1.User2)
	}

	r2, err := f.engine.StartRound(ctx, ba, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if r2.ID.String() != r1.ID.String() {
		t.Errorf("either edge should open the same round: %s vs %s", r1.ID, r2.ID)
	}

	if _, err := f.engine.StartRound(ctx, ab, "mallory"); !errors.Is(err, rapport.ErrForbidden) {
		t.Errorf("outsider: err = %v, want ErrForbidden", err)
	}

	pending, err := f.engine.RecordInterest(ctx, "carol", "dave")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.StartRound(ctx, pending.Edge.ID, "carol"); !errors.Is(err, rapport.ErrMatchNotFound) {
		t.Errorf("pending edge: err = %v, want ErrMatchNotFound", err)
	}
	if _, err := f.engine.StartRound(ctx, id.NewEdgeID(), "carol"); !errors.Is(err, rapport.ErrMatchNotFound) {
		t.Errorf("unknown match: err = %v, want ErrMatchNotFound", err)
	}
}

func TestConcurrentStartRoundSingleRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab, ba := matchUsers(t, f, "a", "b")

	const callers = 10
	var (
		wg  sync.WaitGroup
		ids = make([]string, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matchID, caller := ab, "a"
			if i%2 == 1 {
				matchID, caller = ba, "b"
			}
			r, err := f.engine.StartRound(ctx, matchID, caller)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = r.ID.String()
		}()
	}
	wg.Wait()

	for _, got := range ids[1:] {
		if got != ids[0] {
			t.Fatalf("rounds diverged: %v", ids)
		}
	}
}

func TestVibeLockUnlocksChat(t *testing.T) {
	tests := []struct {
		name       string
		rand       vibelock.Rand
		answerA    string
		answerB    string
		wantMin    int
		wantMax    int
		wantUnlock bool
	}{
		{"same answers low draw", firstRand{}, "Cats", "Cats", 85, 100, true},
		{"same answers high draw", lastRand{}, "Dogs", "Dogs", 85, 100, true},
		{"different answers low draw", firstRand{}, "Cats", "Dogs", 60, 69, false},
		{"different answers high draw", lastRand{}, "Dogs", "Cats", 70, 80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t,
				rapport.WithQuestions([]vibelock.Question{petsQuestion}),
				rapport.WithRand(tt.rand),
			)
			ctx := context.Background()
			ab, _ := matchUsers(t, f, "a", "b")

			r, err := f.engine.StartRound(ctx, ab, "a")
			if err != nil {
				t.Fatal(err)
			}
			first, err := f.engine.SubmitAnswer(ctx, r.ID, "a", tt.answerA)
			if err != nil {
				t.Fatal(err)
			}
			if first.Completed || first.Score != nil {
				t.Fatalf("round completed after one answer: %+v", first)
			}

			done, err := f.engine.SubmitAnswer(ctx, r.ID, "b", tt.answerB)
			if err != nil {
				t.Fatal(err)
			}
			if !done.Completed || done.Score == nil {
				t.Fatalf("round not completed: %+v", done)
			}
			if *done.Score < tt.wantMin || *done.Score > tt.wantMax {
				t.Errorf("score = %d, want [%d,%d]", *done.Score, tt.wantMin, tt.wantMax)
			}

			for _, p := range [][2]string{{"a", "b"}, {"b", "a"}} {
				m, err := f.engine.GetMatch(ctx, p[0], p[1])
				if err != nil {
					t.Fatal(err)
				}
				if m.ChatUnlocked != tt.wantUnlock {
					t.Errorf("edge %s->%s chat unlocked = %v, want %v", p[0], p[1], m.ChatUnlocked, tt.wantUnlock)
				}
			}

			got := f.events.snapshot()
			if got.rounds != 1 {
				t.Errorf("round events = %d, want 1", got.rounds)
			}
			if want := map[bool]int{true: 1, false: 0}[tt.wantUnlock]; got.chatUnlocks != want {
				t.Errorf("chat unlock events = %d, want %d", got.chatUnlocks, want)
			}
		})
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	f := newFixture(t, rapport.WithQuestions([]vibelock.Question{petsQuestion}))
	ctx := context.Background()
	ab, _ := matchUsers(t, f, "a", "b")

	r, err := f.engine.StartRound(ctx, ab, "a")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.SubmitAnswer(ctx, r.ID, "mallory", "Cats"); !errors.Is(err, rapport.ErrNotParticipant) {
		t.Errorf("outsider: err = %v, want ErrNotParticipant", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, r.ID, "a", "Hamsters"); !errors.Is(err, rapport.ErrInvalidAnswer) {
		t.Errorf("bad option: err = %v, want ErrInvalidAnswer", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, id.NewRoundID(), "a", "Cats"); !errors.Is(err, rapport.ErrRoundNotFound) {
		t.Errorf("unknown round: err = %v, want ErrRoundNotFound", err)
	}

	if _, err := f.engine.SubmitAnswer(ctx, r.ID, "a", "Cats"); err != nil {
		t.Fatal(err)
	}
	done, err := f.engine.SubmitAnswer(ctx, r.ID, "b", "Cats")
	if err != nil {
		t.Fatal(err)
	}

	again, err := f.engine.SubmitAnswer(ctx, r.ID, "b", "Cats")
	if err != nil {
		t.Fatalf("repeating the same answer: %v", err)
	}
	if *again.Score != *done.Score {
		t.Errorf("score changed: %d -> %d", *done.Score, *again.Score)
	}
	if _, err := f.engine.SubmitAnswer(ctx, r.ID, "a", "Dogs"); !errors.Is(err, rapport.ErrRoundCompleted) {
		t.Errorf("changed answer: err = %v, want ErrRoundCompleted", err)
	}

	if _, err := f.engine.GetRound(ctx, r.ID, "mallory"); !errors.Is(err, rapport.ErrNotParticipant) {
		t.Errorf("outsider poll: err = %v", err)
	}
	polled, err := f.engine.GetRound(ctx, r.ID, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !polled.Completed {
		t.Error("poll should see the completed round")
	}
	if got := f.events.snapshot().rounds; got != 1 {
		t.Errorf("round events = %d, want 1", got)
	}
}

func TestConcurrentAnswersSingleScore(t *testing.T) {
	for i := range 30 {
		t.Run(fmt.Sprintf("run-%d", i), func(t *testing.T) {
			f := newFixture(t,
				rapport.WithQuestions([]vibelock.Question{petsQuestion}),
				rapport.WithRand(vibelock.DefaultRand),
			)
			ctx := context.Background()
			ab, _ := matchUsers(t, f, "a", "b")

			r, err := f.engine.StartRound(ctx, ab, "a")
			if err != nil {
				t.Fatal(err)
			}

			var (
				wg      sync.WaitGroup
				results [2]*vibelock.Round
				errs    [2]error
			)
			for j, user := range []string{"a", "b"} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[j], errs[j] = f.engine.SubmitAnswer(ctx, r.ID, user, "Dogs")
				}()
			}
			wg.Wait()

			for j := range errs {
				if errs[j] != nil {
					t.Fatalf("SubmitAnswer: %v", errs[j])
				}
			}

			final, err := f.engine.GetRound(ctx, r.ID, "a")
			if err != nil {
				t.Fatal(err)
			}
			if !final.Completed || final.Score == nil {
				t.Fatalf("round not completed: %+v", final)
			}
			for j, res := range results {
				if res.Completed && *res.Score != *final.Score {
					t.Errorf("caller %d saw score %d, stored %d", j, *res.Score, *final.Score)
				}
			}
			if !results[0].Completed && !results[1].Completed {
				t.Error("at least one caller must observe the completion")
			}
			if got := f.events.snapshot().rounds; got != 1 {
				t.Errorf("round events = %d, want 1", got)
			}
		})
	}
}

// completionFailStore fails the next CompleteRound calls after the
// answers were already written.
type completionFailStore struct {
	*memory.Store

	mu       sync.Mutex
	failures int
}

func (s *completionFailStore) CompleteRound(ctx context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error) {
	s.mu.Lock()
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return false, rapport.Unavailable("complete round", errors.New("connection reset"))
	}
	return s.Store.CompleteRound(ctx, roundID, answer1, answer2, score, now)
}

func TestInterruptedCompletionIsRepaired(t *testing.T) {
	tests := []struct {
		name   string
		repair func(ctx context.Context, e *rapport.Engine, roundID id.RoundID) (*vibelock.Round, error)
	}{
		{"poll", func(ctx context.Context, e *rapport.Engine, roundID id.RoundID) (*vibelock.Round, error) {
			return e.GetRound(ctx, roundID, "a")
		}},
		{"resubmit", func(ctx context.Context, e *rapport.Engine, roundID id.RoundID) (*vibelock.Round, error) {
			return e.SubmitAnswer(ctx, roundID, "b", "Cats")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &completionFailStore{Store: memory.New()}
			events := &recorder{}
			engine := rapport.New(st,
				rapport.WithQuestions([]vibelock.Question{petsQuestion}),
				rapport.WithRand(firstRand{}),
				rapport.WithPlugin(events),
			)
			ctx := context.Background()

			if _, err := engine.RecordInterest(ctx, "a", "b"); err != nil {
				t.Fatal(err)
			}
			m, err := engine.RecordInterest(ctx, "b", "a")
			if err != nil {
				t.Fatal(err)
			}
			r, err := engine.StartRound(ctx, m.Edge.ID, "a")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := engine.SubmitAnswer(ctx, r.ID, "a", "Cats"); err != nil {
				t.Fatal(err)
			}

			st.failures = 1
			if _, err := engine.SubmitAnswer(ctx, r.ID, "b", "Cats"); !rapport.IsUnavailable(err) {
				t.Fatalf("err = %v, want unavailable", err)
			}
			stuck, err := st.GetRound(ctx, r.ID)
			if err != nil {
				t.Fatal(err)
			}
			if !stuck.BothAnswered() || stuck.Completed {
				t.Fatalf("round after failed completion = %+v", stuck)
			}

			done, err := tt.repair(ctx, engine, r.ID)
			if err != nil {
				t.Fatal(err)
			}
			if !done.Completed || done.Score == nil {
				t.Fatalf("round not repaired: %+v", done)
			}

			edge, err := engine.GetMatch(ctx, "a", "b")
			if err != nil {
				t.Fatal(err)
			}
			if !edge.ChatUnlocked {
				t.Error("matching answers did not unlock chat")
			}
			if got := events.snapshot().rounds; got != 1 {
				t.Errorf("round events = %d, want 1", got)
			}
		})
	}
}
