// Package memory is the process-local store.Store. It keeps everything in
// maps behind one mutex, which makes every operation trivially atomic. It
// is meant for tests and single-process development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/vibelock"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type balanceKey struct{ owner, counter string }

// Store implements store.Store in memory.
type Store struct {
	mu     sync.Mutex
	closed bool

	edges     map[string]*interest.Edge // by edge ID
	edgePairs map[[2]string]string      // (from, to) -> edge ID

	sessions map[string]*presence.Session

	grants   []*entitlement.Grant
	balances map[balanceKey]*entitlement.Balance

	rounds map[string]*vibelock.Round
}

// New returns an empty store.
func New() *Store {
	return &Store{
		edges:     make(map[string]*interest.Edge),
		edgePairs: make(map[[2]string]string),
		sessions:  make(map[string]*presence.Session),
		balances:  make(map[balanceKey]*entitlement.Balance),
		rounds:    make(map[string]*vibelock.Round),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(_ context.Context) error { return s.check() }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error { return s.check() }

// Close marks the store closed. Later calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rapport.ErrStoreClosed
	}
	return nil
}

// lock acquires the store mutex, failing when the store is closed.
func (s *Store) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return rapport.ErrStoreClosed
	}
	return nil
}

// ──────────────────────────────────────────────────
// Interest edges
// ──────────────────────────────────────────────────

func (s *Store) RecordInterest(_ context.Context, from, to string, now time.Time) (*interest.Result, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, ok := s.edgePairs[[2]string{from, to}]; ok {
		return nil, rapport.ErrDuplicateInterest
	}

	edge := &interest.Edge{
		ID:        id.NewEdgeID(),
		FromUser:  from,
		ToUser:    to,
		Status:    interest.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res := &interest.Result{Edge: edge}

	if revID, ok := s.edgePairs[[2]string{to, from}]; ok {
		rev := s.edges[revID]
		if rev.Status == interest.StatusPending {
			matchedAt := now
			rev.Status = interest.StatusMatched
			rev.MatchedAt = &matchedAt
			rev.UpdatedAt = now
			edge.Status = interest.StatusMatched
			edge.MatchedAt = &matchedAt
			res.IsNewMatch = true
			res.MatchID = rev.ID
		}
	}

	s.edges[edge.ID.String()] = edge
	s.edgePairs[[2]string{from, to}] = edge.ID.String()
	res.Edge = cloneEdge(edge)
	return res, nil
}

func (s *Store) GetEdge(_ context.Context, edgeID id.EdgeID) (*interest.Edge, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, ok := s.edges[edgeID.String()]
	if !ok {
		return nil, rapport.ErrEdgeNotFound
	}
	return cloneEdge(e), nil
}

func (s *Store) GetEdgeByPair(_ context.Context, from, to string) (*interest.Edge, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	eid, ok := s.edgePairs[[2]string{from, to}]
	if !ok {
		return nil, rapport.ErrEdgeNotFound
	}
	return cloneEdge(s.edges[eid]), nil
}

func (s *Store) ListMatches(_ context.Context, user string) ([]*interest.Edge, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []*interest.Edge
	for _, e := range s.edges {
		if e.FromUser == user && e.Status == interest.StatusMatched {
			out = append(out, cloneEdge(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchedAt.After(*out[j].MatchedAt) })
	return out, nil
}

func (s *Store) Respond(_ context.Context, edgeID id.EdgeID, accept bool, now time.Time) (*interest.Edge, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, ok := s.edges[edgeID.String()]
	if !ok {
		return nil, rapport.ErrEdgeNotFound
	}
	if e.Status != interest.StatusPending {
		return nil, rapport.ErrEdgeNotPending
	}

	e.UpdatedAt = now
	if !accept {
		e.Status = interest.StatusDeclined
		return cloneEdge(e), nil
	}

	matchedAt := now
	e.Status = interest.StatusMatched
	e.MatchedAt = &matchedAt

	key := [2]string{e.ToUser, e.FromUser}
	if revID, ok := s.edgePairs[key]; ok {
		rev := s.edges[revID]
		rev.Status = interest.StatusMatched
		rev.MatchedAt = &matchedAt
		rev.UpdatedAt = now
	} else {
		rev := &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  e.ToUser,
			ToUser:    e.FromUser,
			Status:    interest.StatusMatched,
			CreatedAt: now,
			UpdatedAt: now,
			MatchedAt: &matchedAt,
		}
		s.edges[rev.ID.String()] = rev
		s.edgePairs[key] = rev.ID.String()
	}
	return cloneEdge(e), nil
}

func (s *Store) Unmatch(_ context.Context, a, b string, now time.Time) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	n := 0
	for _, key := range [][2]string{{a, b}, {b, a}} {
		eid, ok := s.edgePairs[key]
		if !ok {
			continue
		}
		e := s.edges[eid]
		if e.Status != interest.StatusMatched {
			continue
		}
		e.Status = interest.StatusUnmatched
		e.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *Store) SetChatUnlocked(_ context.Context, a, b string, now time.Time) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	found := false
	for _, key := range [][2]string{{a, b}, {b, a}} {
		if eid, ok := s.edgePairs[key]; ok {
			e := s.edges[eid]
			e.ChatUnlocked = true
			e.UpdatedAt = now
			found = true
		}
	}
	if !found {
		return rapport.ErrEdgeNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Presence sessions
// ──────────────────────────────────────────────────

func (s *Store) CreateSession(_ context.Context, sess *presence.Session) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Code]; ok {
		return rapport.ErrDuplicateCode
	}
	s.sessions[sess.Code] = cloneSession(sess)
	return nil
}

func (s *Store) GetSession(_ context.Context, code string) (*presence.Session, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, rapport.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *Store) JoinSession(_ context.Context, code, guest string, now time.Time) (*presence.Session, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	switch {
	case !ok:
		return nil, rapport.ErrSessionNotFound
	case sess.Status == presence.StatusEnded:
		return nil, rapport.ErrSessionEnded
	case sess.GuestUser != nil || sess.Status != presence.StatusWaiting:
		return nil, rapport.ErrSessionFull
	}

	g := guest
	joined := now
	sess.GuestUser = &g
	sess.JoinedAt = &joined
	sess.Status = presence.StatusActive
	return cloneSession(sess), nil
}

func (s *Store) EndSession(_ context.Context, code string, now time.Time) (*presence.Session, bool, error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, false, rapport.ErrSessionNotFound
	}
	if sess.Status == presence.StatusEnded {
		return cloneSession(sess), false, nil
	}
	ended := now
	sess.Status = presence.StatusEnded
	sess.EndedAt = &ended
	return cloneSession(sess), true, nil
}

func (s *Store) ActiveSessionForUser(_ context.Context, user string) (*presence.Session, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var best *presence.Session
	for _, sess := range s.sessions {
		if sess.Status == presence.StatusEnded || !sess.IsParty(user) {
			continue
		}
		if best == nil || sess.CreatedAt.After(best.CreatedAt) {
			best = sess
		}
	}
	if best == nil {
		return nil, rapport.ErrSessionNotFound
	}
	return cloneSession(best), nil
}

// ──────────────────────────────────────────────────
// Entitlement grants and balances
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *entitlement.Grant) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.grants = append(s.grants, cloneGrant(g))
	return nil
}

func (s *Store) CreateExclusiveGrant(_ context.Context, g *entitlement.Grant, now time.Time) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	for _, existing := range s.grants {
		if existing.OwnerUser == g.OwnerUser && existing.Kind == g.Kind && existing.ActiveAt(now) {
			return rapport.ErrAlreadyActive
		}
	}
	s.grants = append(s.grants, cloneGrant(g))
	return nil
}

func (s *Store) EnsureGrant(_ context.Context, g *entitlement.Grant) (*entitlement.Grant, bool, error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	for _, existing := range s.grants {
		if existing.OwnerUser == g.OwnerUser && existing.Kind == g.Kind && existing.ScopeKey == g.ScopeKey {
			return cloneGrant(existing), false, nil
		}
	}
	s.grants = append(s.grants, cloneGrant(g))
	return cloneGrant(g), true, nil
}

func (s *Store) FindActiveGrant(_ context.Context, owner string, kind entitlement.Kind, scope string, now time.Time) (*entitlement.Grant, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	best := entitlement.Latest(s.ownedBy(owner), kind, scope, now)
	if best == nil {
		return nil, rapport.ErrGrantNotFound
	}
	return cloneGrant(best), nil
}

func (s *Store) ListActiveGrants(_ context.Context, owner string, now time.Time) ([]*entitlement.Grant, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []*entitlement.Grant
	for _, g := range s.ownedBy(owner) {
		if g.ActiveAt(now) {
			out = append(out, cloneGrant(g))
		}
	}
	return out, nil
}

func (s *Store) ownedBy(owner string) []*entitlement.Grant {
	var out []*entitlement.Grant
	for _, g := range s.grants {
		if g.OwnerUser == owner {
			out = append(out, g)
		}
	}
	return out
}

func (s *Store) AddBalance(_ context.Context, owner, counter string, n int64, now time.Time) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	key := balanceKey{owner, counter}
	b, ok := s.balances[key]
	if !ok {
		b = &entitlement.Balance{OwnerUser: owner, Counter: counter}
		s.balances[key] = b
	}
	b.Balance += n
	b.UpdatedAt = now
	return b.Balance, nil
}

func (s *Store) ConsumeBalance(_ context.Context, owner, counter string, now time.Time) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	b, ok := s.balances[balanceKey{owner, counter}]
	if !ok || b.Balance <= 0 {
		return false, nil
	}
	b.Balance--
	b.UpdatedAt = now
	return true, nil
}

func (s *Store) GetBalance(_ context.Context, owner, counter string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	if b, ok := s.balances[balanceKey{owner, counter}]; ok {
		return b.Balance, nil
	}
	return 0, nil
}

// ──────────────────────────────────────────────────
// VibeLock rounds
// ──────────────────────────────────────────────────

func (s *Store) OpenRound(_ context.Context, r *vibelock.Round) (*vibelock.Round, bool, error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	for _, existing := range s.rounds {
		if existing.MatchID.String() == r.MatchID.String() && !existing.Completed {
			return cloneRound(existing), false, nil
		}
	}
	s.rounds[r.ID.String()] = cloneRound(r)
	return cloneRound(r), true, nil
}

func (s *Store) GetRound(_ context.Context, roundID id.RoundID) (*vibelock.Round, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID.String()]
	if !ok {
		return nil, rapport.ErrRoundNotFound
	}
	return cloneRound(r), nil
}

func (s *Store) SetAnswer(_ context.Context, roundID id.RoundID, slot int, answer string, now time.Time) (*vibelock.Round, bool, error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID.String()]
	if !ok {
		return nil, false, rapport.ErrRoundNotFound
	}
	if r.Completed {
		return cloneRound(r), false, nil
	}

	a := answer
	switch slot {
	case 1:
		r.Answer1 = &a
	case 2:
		r.Answer2 = &a
	default:
		return nil, false, rapport.ErrNotParticipant
	}
	r.UpdatedAt = now
	return cloneRound(r), true, nil
}

func (s *Store) CompleteRound(_ context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID.String()]
	if !ok {
		return false, rapport.ErrRoundNotFound
	}
	if r.Completed || r.Answer1 == nil || r.Answer2 == nil ||
		*r.Answer1 != answer1 || *r.Answer2 != answer2 {
		return false, nil
	}

	sc := score
	done := now
	r.Score = &sc
	r.Completed = true
	r.CompletedAt = &done
	r.UpdatedAt = now
	return true, nil
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

// Records are copied on the way in and out so callers never alias the
// stored state.

func cloneEdge(e *interest.Edge) *interest.Edge {
	c := *e
	c.MatchedAt = cloneTime(e.MatchedAt)
	return &c
}

func cloneSession(s *presence.Session) *presence.Session {
	c := *s
	c.GuestUser = cloneString(s.GuestUser)
	c.JoinedAt = cloneTime(s.JoinedAt)
	c.EndedAt = cloneTime(s.EndedAt)
	return &c
}

func cloneGrant(g *entitlement.Grant) *entitlement.Grant {
	c := *g
	c.ExpiresAt = cloneTime(g.ExpiresAt)
	return &c
}

func cloneRound(r *vibelock.Round) *vibelock.Round {
	c := *r
	c.Answer1 = cloneString(r.Answer1)
	c.Answer2 = cloneString(r.Answer2)
	if r.Score != nil {
		sc := *r.Score
		c.Score = &sc
	}
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.Question.Options = append([]string(nil), r.Question.Options...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
