package rapport_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/presence"
)

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.CreateSession(ctx, "host", "chill")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Code) != presence.DefaultCodeLength {
		t.Errorf("code %q has length %d", s.Code, len(s.Code))
	}

	st, err := f.engine.SessionStatus(ctx, s.Code)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Exists || st.Session.Status != presence.StatusWaiting || st.Session.HasGuest {
		t.Fatalf("status before join = %+v %+v", st, st.Session)
	}

	if _, err := f.engine.JoinSession(ctx, s.Code, "guest"); err != nil {
		t.Fatal(err)
	}
	st, err = f.engine.SessionStatus(ctx, s.Code)
	if err != nil {
		t.Fatal(err)
	}
	if st.Session.Status != presence.StatusActive || !st.Session.HasGuest || st.Session.ModeID != "chill" {
		t.Fatalf("status after join = %+v", st.Session)
	}

	active, err := f.engine.GetActiveSessionForUser(ctx, "guest")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.Code != s.Code {
		t.Fatalf("active session for guest = %+v", active)
	}

	if _, err := f.engine.EndSession(ctx, s.Code, "stranger"); !errors.Is(err, rapport.ErrForbidden) {
		t.Fatalf("stranger end: err = %v, want ErrForbidden", err)
	}
	ended, err := f.engine.EndSession(ctx, s.Code, "guest")
	if err != nil {
		t.Fatal(err)
	}
	if ended.Status != presence.StatusEnded || ended.EndedAt == nil {
		t.Fatalf("ended = %+v", ended)
	}
	if _, err := f.engine.EndSession(ctx, s.Code, "host"); err != nil {
		t.Fatalf("ending twice should be a no-op: %v", err)
	}
	if got := f.events.snapshot().sessionsEnded; got != 1 {
		t.Errorf("ended events = %d, want 1", got)
	}

	active, err = f.engine.GetActiveSessionForUser(ctx, "host")
	if err != nil || active != nil {
		t.Errorf("active session after end = %+v, %v", active, err)
	}
}

func TestSessionStatusUnknownCode(t *testing.T) {
	f := newFixture(t)
	st, err := f.engine.SessionStatus(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if st.Exists || st.Session != nil {
		t.Errorf("status = %+v, want not exists", st)
	}
}

func TestJoinSessionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	full, err := f.engine.CreateSession(ctx, "h1", "m")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.JoinSession(ctx, full.Code, "g1"); err != nil {
		t.Fatal(err)
	}
	over, err := f.engine.CreateSession(ctx, "h2", "m")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.EndSession(ctx, over.Code, "h2"); err != nil {
		t.Fatal(err)
	}
	open, err := f.engine.CreateSession(ctx, "h3", "m")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		code  string
		guest string
		want  error
	}{
		{"unknown", "missing", "g", rapport.ErrSessionNotFound},
		{"full", full.Code, "g2", rapport.ErrSessionFull},
		{"ended", over.Code, "g", rapport.ErrSessionEnded},
		{"self join", open.Code, "h3", rapport.ErrSelfJoin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.engine.JoinSession(ctx, tt.code, tt.guest); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConcurrentJoinsOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.CreateSession(ctx, "host", "chill")
	if err != nil {
		t.Fatal(err)
	}

	const joiners = 20
	var (
		wg   sync.WaitGroup
		errs = make([]error, joiners)
	)
	for i := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.engine.JoinSession(ctx, s.Code, fmt.Sprintf("guest-%d", i))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, rapport.ErrSessionFull):
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful joins = %d, want 1", wins)
	}
	if _, err := f.engine.JoinSession(ctx, s.Code, "late"); !errors.Is(err, rapport.ErrSessionFull) {
		t.Errorf("late join: err = %v, want ErrSessionFull", err)
	}
}

func TestCreateSessionRetriesCollisions(t *testing.T) {
	codes := []string{"SAME1234", "SAME1234", "OTHER567"}
	var (
		mu   sync.Mutex
		next int
	)
	gen := func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[next%len(codes)]
		next++
		return c, nil
	}
	f := newFixture(t, rapport.WithCodeGenerator(gen))
	ctx := context.Background()

	a, err := f.engine.CreateSession(ctx, "h1", "m")
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.engine.CreateSession(ctx, "h2", "m")
	if err != nil {
		t.Fatal(err)
	}
	if a.Code != "SAME1234" || b.Code != "OTHER567" {
		t.Errorf("codes = %q, %q", a.Code, b.Code)
	}
}

func TestCreateSessionGivesUp(t *testing.T) {
	gen := func(int) (string, error) { return "FIXED", nil }
	f := newFixture(t, rapport.WithCodeGenerator(gen))
	ctx := context.Background()

	if _, err := f.engine.CreateSession(ctx, "h1", "m"); err != nil {
		t.Fatal(err)
	}
	_, err := f.engine.CreateSession(ctx, "h2", "m")
	if !errors.Is(err, rapport.ErrCodeExhausted) {
		t.Fatalf("err = %v, want ErrCodeExhausted", err)
	}
	if !rapport.IsRetryable(err) {
		t.Error("exhausted codes should be retryable")
	}
}
