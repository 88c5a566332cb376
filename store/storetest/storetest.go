// Package storetest is the conformance suite every store.Store backend
// runs. It checks the atomicity contracts the engine relies on, including
// under concurrent callers.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/vibelock"
)

// Factory returns a migrated, empty-enough store for one subtest. Durable
// backends may share a database between subtests; the suite namespaces
// every user and code it writes.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store, ns namespace)
	}{
		{"InterestPending", testInterestPending},
		{"InterestMutualPromotion", testInterestMutualPromotion},
		{"InterestConcurrentMutual", testInterestConcurrentMutual},
		{"InterestRespond", testInterestRespond},
		{"InterestUnmatch", testInterestUnmatch},
		{"PresenceLifecycle", testPresenceLifecycle},
		{"PresenceConcurrentJoin", testPresenceConcurrentJoin},
		{"GrantExclusive", testGrantExclusive},
		{"GrantEnsure", testGrantEnsure},
		{"GrantQueries", testGrantQueries},
		{"Balances", testBalances},
		{"BalancesConcurrent", testBalancesConcurrent},
		{"RoundLifecycle", testRoundLifecycle},
		{"RoundConcurrentOpen", testRoundConcurrentOpen},
		{"RoundConcurrentComplete", testRoundConcurrentComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s, newNamespace())
		})
	}
}

// namespace prefixes test identifiers so runs never collide on a shared
// database.
type namespace string

func newNamespace() namespace {
	return namespace(id.NewEventID().String())
}

func (n namespace) user(name string) string { return string(n) + ":" + name }

func (n namespace) code(name string) string { return string(n) + "-" + name }

// now returns the current time at the millisecond precision every backend
// round-trips.
func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// ──────────────────────────────────────────────────
// Interest
// ──────────────────────────────────────────────────

func testInterestPending(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")

	res, err := s.RecordInterest(ctx, a, b, now())
	if err != nil {
		t.Fatal(err)
	}
	if res.IsNewMatch || res.Edge.Status != interest.StatusPending || res.Edge.MatchedAt != nil {
		t.Fatalf("result = %+v", res)
	}

	if _, err := s.RecordInterest(ctx, a, b, now()); !errors.Is(err, rapport.ErrDuplicateInterest) {
		t.Errorf("duplicate: err = %v, want ErrDuplicateInterest", err)
	}

	got, err := s.GetEdge(ctx, res.Edge.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FromUser != a || got.ToUser != b {
		t.Errorf("edge = %+v", got)
	}
	if _, err := s.GetEdge(ctx, id.NewEdgeID()); !errors.Is(err, rapport.ErrEdgeNotFound) {
		t.Errorf("unknown edge: err = %v", err)
	}
	if _, err := s.GetEdgeByPair(ctx, b, a); !errors.Is(err, rapport.ErrEdgeNotFound) {
		t.Errorf("absent pair: err = %v", err)
	}
}

func testInterestMutualPromotion(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")

	first, err := s.RecordInterest(ctx, a, b, now())
	if err != nil {
		t.Fatal(err)
	}
	at := now().Add(time.Second)
	second, err := s.RecordInterest(ctx, b, a, at)
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsNewMatch {
		t.Fatal("expected new match")
	}
	if second.MatchID.String() != first.Edge.ID.String() {
		t.Errorf("MatchID = %s, want %s", second.MatchID, first.Edge.ID)
	}

	ab, err := s.GetEdgeByPair(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := s.GetEdgeByPair(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range []*interest.Edge{ab, ba} {
		if e.Status != interest.StatusMatched {
			t.Errorf("%s->%s status = %s", e.FromUser, e.ToUser, e.Status)
		}
		if e.MatchedAt == nil || !e.MatchedAt.Equal(at) {
			t.Errorf("%s->%s matchedAt = %v, want %v", e.FromUser, e.ToUser, e.MatchedAt, at)
		}
	}

	matches, err := s.ListMatches(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ToUser != b {
		t.Errorf("ListMatches = %+v", matches)
	}
}

func testInterestConcurrentMutual(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()

	for i := range 10 {
		a, b := ns.user(fmt.Sprintf("a%d", i)), ns.user(fmt.Sprintf("b%d", i))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			hits int
		)
		for _, p := range [][2]string{{a, b}, {b, a}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.RecordInterest(ctx, p[0], p[1], now())
				if err != nil {
					t.Error(err)
					return
				}
				if res.IsNewMatch {
					mu.Lock()
					hits++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if hits != 1 {
			t.Fatalf("pair %d: new matches = %d, want 1", i, hits)
		}
		for _, p := range [][2]string{{a, b}, {b, a}} {
			e, err := s.GetEdgeByPair(ctx, p[0], p[1])
			if err != nil {
				t.Fatal(err)
			}
			if e.Status != interest.StatusMatched {
				t.Errorf("pair %d: %s->%s = %s", i, p[0], p[1], e.Status)
			}
		}
	}
}

func testInterestRespond(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b, c := ns.user("a"), ns.user("b"), ns.user("c")

	res, err := s.RecordInterest(ctx, a, b, now())
	if err != nil {
		t.Fatal(err)
	}
	at := now()
	edge, err := s.Respond(ctx, res.Edge.ID, true, at)
	if err != nil {
		t.Fatal(err)
	}
	if edge.Status != interest.StatusMatched || !edge.MatchedAt.Equal(at) {
		t.Fatalf("edge = %+v", edge)
	}
	rev, err := s.GetEdgeByPair(ctx, b, a)
	if err != nil {
		t.Fatalf("reverse edge: %v", err)
	}
	if rev.Status != interest.StatusMatched || !rev.MatchedAt.Equal(at) {
		t.Errorf("reverse = %+v", rev)
	}

	if _, err := s.Respond(ctx, res.Edge.ID, false, now()); !errors.Is(err, rapport.ErrEdgeNotPending) {
		t.Errorf("respond twice: err = %v, want ErrEdgeNotPending", err)
	}

	other, err := s.RecordInterest(ctx, c, a, now())
	if err != nil {
		t.Fatal(err)
	}
	declined, err := s.Respond(ctx, other.Edge.ID, false, now())
	if err != nil {
		t.Fatal(err)
	}
	if declined.Status != interest.StatusDeclined || declined.MatchedAt != nil {
		t.Errorf("declined = %+v", declined)
	}
	if _, err := s.GetEdgeByPair(ctx, a, c); !errors.Is(err, rapport.ErrEdgeNotFound) {
		t.Errorf("decline must not create a reverse edge: err = %v", err)
	}
}

func testInterestUnmatch(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")

	if n, err := s.Unmatch(ctx, a, b, now()); err != nil || n != 0 {
		t.Fatalf("unmatch nothing = %d, %v", n, err)
	}

	if _, err := s.RecordInterest(ctx, a, b, now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordInterest(ctx, b, a, now()); err != nil {
		t.Fatal(err)
	}

	if err := s.SetChatUnlocked(ctx, a, b, now()); err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]string{{a, b}, {b, a}} {
		e, err := s.GetEdgeByPair(ctx, p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		if !e.ChatUnlocked {
			t.Errorf("%s->%s not chat unlocked", p[0], p[1])
		}
	}

	n, err := s.Unmatch(ctx, b, a, now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("unmatched edges = %d, want 2", n)
	}
	if n, _ := s.Unmatch(ctx, a, b, now()); n != 0 {
		t.Errorf("second unmatch changed %d edges", n)
	}
	e, err := s.GetEdgeByPair(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != interest.StatusUnmatched {
		t.Errorf("status = %s, want unmatched", e.Status)
	}
}

// ──────────────────────────────────────────────────
// Presence
// ──────────────────────────────────────────────────

func testPresenceLifecycle(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	host, guest := ns.user("host"), ns.user("guest")
	code := ns.code("one")

	sess := &presence.Session{
		Code:      code,
		HostUser:  host,
		ModeID:    "chill",
		Status:    presence.StatusWaiting,
		CreatedAt: now(),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	dup := *sess
	dup.HostUser = ns.user("other")
	if err := s.CreateSession(ctx, &dup); !errors.Is(err, rapport.ErrDuplicateCode) {
		t.Errorf("duplicate code: err = %v", err)
	}
	if _, err := s.GetSession(ctx, ns.code("missing")); !errors.Is(err, rapport.ErrSessionNotFound) {
		t.Errorf("missing session: err = %v", err)
	}

	joined, err := s.JoinSession(ctx, code, guest, now())
	if err != nil {
		t.Fatal(err)
	}
	if joined.Status != presence.StatusActive || joined.GuestUser == nil || *joined.GuestUser != guest || joined.JoinedAt == nil {
		t.Fatalf("joined = %+v", joined)
	}
	if _, err := s.JoinSession(ctx, code, ns.user("late"), now()); !errors.Is(err, rapport.ErrSessionFull) {
		t.Errorf("second join: err = %v, want ErrSessionFull", err)
	}

	active, err := s.ActiveSessionForUser(ctx, guest)
	if err != nil {
		t.Fatal(err)
	}
	if active.Code != code {
		t.Errorf("active = %+v", active)
	}

	ended, changed, err := s.EndSession(ctx, code, now())
	if err != nil {
		t.Fatal(err)
	}
	if !changed || ended.Status != presence.StatusEnded || ended.EndedAt == nil {
		t.Fatalf("end = %+v, %v", ended, changed)
	}
	again, changed, err := s.EndSession(ctx, code, now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if changed || !again.EndedAt.Equal(*ended.EndedAt) {
		t.Errorf("second end changed the record: %+v", again)
	}
	if _, err := s.ActiveSessionForUser(ctx, host); !errors.Is(err, rapport.ErrSessionNotFound) {
		t.Errorf("active after end: err = %v", err)
	}

	waiting := &presence.Session{Code: ns.code("two"), HostUser: host, Status: presence.StatusWaiting, CreatedAt: now()}
	if err := s.CreateSession(ctx, waiting); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.EndSession(ctx, waiting.Code, now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.JoinSession(ctx, waiting.Code, guest, now()); !errors.Is(err, rapport.ErrSessionEnded) {
		t.Errorf("join ended: err = %v, want ErrSessionEnded", err)
	}
	if _, err := s.JoinSession(ctx, ns.code("missing"), guest, now()); !errors.Is(err, rapport.ErrSessionNotFound) {
		t.Errorf("join missing: err = %v, want ErrSessionNotFound", err)
	}
}

func testPresenceConcurrentJoin(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	code := ns.code("race")
	if err := s.CreateSession(ctx, &presence.Session{
		Code:      code,
		HostUser:  ns.user("host"),
		Status:    presence.StatusWaiting,
		CreatedAt: now(),
	}); err != nil {
		t.Fatal(err)
	}

	const joiners = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.JoinSession(ctx, code, ns.user(fmt.Sprintf("g%d", i)), now())
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, rapport.ErrSessionFull):
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful joins = %d, want 1", wins)
	}
}

// ──────────────────────────────────────────────────
// Entitlements
// ──────────────────────────────────────────────────

func newGrant(owner string, kind entitlement.Kind, scope string, expires *time.Time) *entitlement.Grant {
	return &entitlement.Grant{
		ID:         id.NewGrantID(),
		OwnerUser:  owner,
		Kind:       kind,
		ScopeKey:   scope,
		ExpiresAt:  expires,
		Multiplier: 1,
		CreatedAt:  now(),
	}
}

func testGrantExclusive(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	u := ns.user("u")
	t0 := now()
	exp := t0.Add(time.Hour)

	sub := newGrant(u, entitlement.KindSubscription, "", &exp)
	sub.Plan = entitlement.PlanMonthly
	if err := s.CreateExclusiveGrant(ctx, sub, t0); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateExclusiveGrant(ctx, newGrant(u, entitlement.KindSubscription, "", &exp), t0); !errors.Is(err, rapport.ErrAlreadyActive) {
		t.Errorf("second subscription: err = %v, want ErrAlreadyActive", err)
	}

	later := exp.Add(time.Hour)
	if err := s.CreateExclusiveGrant(ctx, newGrant(u, entitlement.KindSubscription, "", &later), exp); err != nil {
		t.Errorf("subscription after expiry: %v", err)
	}

	// Concurrent buyers: exactly one wins.
	v := ns.user("v")
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateExclusiveGrant(ctx, newGrant(v, entitlement.KindSubscription, "", &exp), t0)
			switch {
			case err == nil:
				mu.Lock()
				ok++
				mu.Unlock()
			case !errors.Is(err, rapport.ErrAlreadyActive):
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Errorf("concurrent subscriptions = %d, want 1", ok)
	}
}

func testGrantEnsure(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	u, v := ns.user("u"), ns.user("v")

	first, created, err := s.EnsureGrant(ctx, newGrant(u, entitlement.KindChatUnlock, v, nil))
	if err != nil || !created {
		t.Fatalf("first ensure = %v, %v", created, err)
	}
	again, created, err := s.EnsureGrant(ctx, newGrant(u, entitlement.KindChatUnlock, v, nil))
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID.String() != first.ID.String() {
		t.Errorf("second ensure created=%v id=%s, want existing %s", created, again.ID, first.ID)
	}
	if _, created, _ := s.EnsureGrant(ctx, newGrant(u, entitlement.KindChatUnlock, ns.user("w"), nil)); !created {
		t.Error("different scope should create a grant")
	}
}

func testGrantQueries(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	u := ns.user("u")
	t0 := now()
	soon, later, past := t0.Add(time.Hour), t0.Add(2*time.Hour), t0.Add(-time.Hour)

	for _, g := range []*entitlement.Grant{
		newGrant(u, entitlement.KindPowerUp, "boost", &soon),
		newGrant(u, entitlement.KindPowerUp, "boost", &later),
		newGrant(u, entitlement.KindPowerUp, "boost", &past),
		newGrant(u, entitlement.KindTimedAccess, entitlement.FeatureUnlimitedMessaging, &soon),
	} {
		if err := s.CreateGrant(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	g, err := s.FindActiveGrant(ctx, u, entitlement.KindPowerUp, "boost", t0)
	if err != nil {
		t.Fatal(err)
	}
	if !g.ExpiresAt.Equal(later) {
		t.Errorf("latest boost expires %v, want %v", g.ExpiresAt, later)
	}
	if _, err := s.FindActiveGrant(ctx, u, entitlement.KindPowerUp, "spotlight", t0); !errors.Is(err, rapport.ErrGrantNotFound) {
		t.Errorf("absent scope: err = %v", err)
	}
	if _, err := s.FindActiveGrant(ctx, u, entitlement.KindTimedAccess, entitlement.FeatureUnlimitedMessaging, soon); !errors.Is(err, rapport.ErrGrantNotFound) {
		t.Errorf("at expiry instant: err = %v, want ErrGrantNotFound", err)
	}

	active, err := s.ListActiveGrants(ctx, u, t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Errorf("active grants = %d, want 3", len(active))
	}
	active, err = s.ListActiveGrants(ctx, u, soon)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("active grants at %v = %d, want 1", soon, len(active))
	}
}

func testBalances(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	u := ns.user("u")
	c := entitlement.CounterSuperLike

	if n, err := s.GetBalance(ctx, u, c); err != nil || n != 0 {
		t.Fatalf("empty balance = %d, %v", n, err)
	}
	if ok, err := s.ConsumeBalance(ctx, u, c, now()); err != nil || ok {
		t.Fatalf("consume empty = %v, %v", ok, err)
	}
	if n, err := s.AddBalance(ctx, u, c, 3, now()); err != nil || n != 3 {
		t.Fatalf("add = %d, %v", n, err)
	}
	if n, err := s.AddBalance(ctx, u, c, 2, now()); err != nil || n != 5 {
		t.Fatalf("add again = %d, %v", n, err)
	}
	if ok, err := s.ConsumeBalance(ctx, u, c, now()); err != nil || !ok {
		t.Fatalf("consume = %v, %v", ok, err)
	}
	if n, _ := s.GetBalance(ctx, u, c); n != 4 {
		t.Errorf("balance = %d, want 4", n)
	}
}

func testBalancesConcurrent(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	u := ns.user("u")
	c := entitlement.CounterSuperLike

	if _, err := s.AddBalance(ctx, u, c, 5, now()); err != nil {
		t.Fatal(err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int64
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddBalance(ctx, u, c, 2, now()); err != nil {
				t.Error(err)
			}
		}()
	}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeBalance(ctx, u, c, now())
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	n, err := s.GetBalance(ctx, u, c)
	if err != nil {
		t.Fatal(err)
	}
	if want := 5 + 4*2 - consumed; n != want {
		t.Errorf("balance = %d, want %d", n, want)
	}
	if n < 0 {
		t.Errorf("balance negative: %d", n)
	}
}

// ──────────────────────────────────────────────────
// VibeLock rounds
// ──────────────────────────────────────────────────

func newRound(matchID id.EdgeID, u1, u2 string) *vibelock.Round {
	t := now()
	return &vibelock.Round{
		ID:        id.NewRoundID(),
		MatchID:   matchID,
		Question:  vibelock.DefaultQuestions[2],
		User1:     u1,
		User2:     u2,
		CreatedAt: t,
		UpdatedAt: t,
	}
}

func testRoundLifecycle(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")
	matchID := id.NewEdgeID()

	r, created, err := s.OpenRound(ctx, newRound(matchID, a, b))
	if err != nil || !created {
		t.Fatalf("open = %v, %v", created, err)
	}
	again, created, err := s.OpenRound(ctx, newRound(matchID, a, b))
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID.String() != r.ID.String() {
		t.Fatalf("second open created=%v id=%s, want %s", created, again.ID, r.ID)
	}
	if again.Question.ID != r.Question.ID || len(again.Question.Options) != len(r.Question.Options) {
		t.Errorf("question not round-tripped: %+v", again.Question)
	}

	if _, err := s.GetRound(ctx, id.NewRoundID()); !errors.Is(err, rapport.ErrRoundNotFound) {
		t.Errorf("unknown round: err = %v", err)
	}

	r, written, err := s.SetAnswer(ctx, r.ID, 1, "Cats", now())
	if err != nil || !written {
		t.Fatalf("answer 1 = %v, %v", written, err)
	}
	r, written, err = s.SetAnswer(ctx, r.ID, 2, "Dogs", now())
	if err != nil || !written {
		t.Fatalf("answer 2 = %v, %v", written, err)
	}
	if !r.BothAnswered() || *r.Answer1 != "Cats" || *r.Answer2 != "Dogs" {
		t.Fatalf("round = %+v", r)
	}

	if ok, err := s.CompleteRound(ctx, r.ID, "Cats", "Cats", 90, now()); err != nil || ok {
		t.Errorf("complete with stale answers = %v, %v", ok, err)
	}
	if ok, err := s.CompleteRound(ctx, r.ID, "Cats", "Dogs", 65, now()); err != nil || !ok {
		t.Fatalf("complete = %v, %v", ok, err)
	}
	if ok, _ := s.CompleteRound(ctx, r.ID, "Cats", "Dogs", 75, now()); ok {
		t.Error("second completion must lose")
	}

	done, err := s.GetRound(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Completed || done.Score == nil || *done.Score != 65 || done.CompletedAt == nil {
		t.Fatalf("completed round = %+v", done)
	}

	after, written, err := s.SetAnswer(ctx, r.ID, 1, "Dogs", now())
	if err != nil {
		t.Fatal(err)
	}
	if written || *after.Answer1 != "Cats" {
		t.Errorf("answer written to a completed round: %+v", after)
	}

	next, created, err := s.OpenRound(ctx, newRound(matchID, a, b))
	if err != nil || !created || next.ID.String() == r.ID.String() {
		t.Errorf("new round after completion = %+v, %v, %v", next, created, err)
	}
}

func testRoundConcurrentOpen(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")
	matchID := id.NewEdgeID()

	const callers = 8
	var (
		wg  sync.WaitGroup
		ids = make([]string, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _, err := s.OpenRound(ctx, newRound(matchID, a, b))
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
			t.Fatalf("concurrent opens returned different rounds: %v", ids)
		}
	}
}

func testRoundConcurrentComplete(t *testing.T, s store.Store, ns namespace) {
	ctx := context.Background()
	a, b := ns.user("a"), ns.user("b")

	r, _, err := s.OpenRound(ctx, newRound(id.NewEdgeID(), a, b))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SetAnswer(ctx, r.ID, 1, "Cats", now()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SetAnswer(ctx, r.ID, 2, "Dogs", now()); err != nil {
		t.Fatal(err)
	}

	const callers = 8
	var (
		wg  sync.WaitGroup
		won = make([]bool, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompleteRound(ctx, r.ID, "Cats", "Dogs", 10+i, now())
			if err != nil {
				t.Error(err)
				return
			}
			won[i] = ok
		}()
	}
	wg.Wait()

	winner := -1
	for i, ok := range won {
		if !ok {
			continue
		}
		if winner >= 0 {
			t.Fatalf("callers %d and %d both completed the round", winner, i)
		}
		winner = i
	}
	if winner < 0 {
		t.Fatal("no caller completed the round")
	}

	done, err := s.GetRound(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Completed || done.Score == nil || *done.Score != 10+winner {
		t.Errorf("stored score = %v, want %d from the winning caller", done.Score, 10+winner)
	}
}
