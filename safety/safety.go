// Package safety defines the block-list collaborator consulted before
// interest is recorded.
package safety

import (
	"context"
	"sync"
)

// Checker answers whether either user has blocked the other.
type Checker interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, a, b string) (bool, error)

// IsBlocked implements Checker.
func (f CheckerFunc) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	return f(ctx, a, b)
}

// Allow is the Checker used when none is configured. It blocks nobody.
var Allow Checker = CheckerFunc(func(context.Context, string, string) (bool, error) {
	return false, nil
})

// Set is an in-process block list. Blocks are directional on write and
// symmetric on read.
type Set struct {
	mu     sync.RWMutex
	blocks map[[2]string]struct{}
}

// NewSet returns an empty block list.
func NewSet() *Set {
	return &Set{blocks: make(map[[2]string]struct{})}
}

// Block records that blocker has blocked blocked.
func (s *Set) Block(blocker, blocked string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[[2]string{blocker, blocked}] = struct{}{}
}

// Unblock removes a block recorded by blocker.
func (s *Set) Unblock(blocker, blocked string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, [2]string{blocker, blocked})
}

// IsBlocked implements Checker.
func (s *Set) IsBlocked(_ context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ab := s.blocks[[2]string{a, b}]
	_, ba := s.blocks[[2]string{b, a}]
	return ab || ba, nil
}
