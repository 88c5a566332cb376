package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emission never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onInterestRecorded    []OnInterestRecorded
	onMatchCreated        []OnMatchCreated
	onInterestDeclined    []OnInterestDeclined
	onUnmatched           []OnUnmatched
	onSessionCreated      []OnSessionCreated
	onSessionJoined       []OnSessionJoined
	onSessionEnded        []OnSessionEnded
	onGrantCreated        []OnGrantCreated
	onSubscriptionCreated []OnSubscriptionCreated
	onBalanceChanged      []OnBalanceChanged
	onPurchaseCompleted   []OnPurchaseCompleted
	onAccessChecked       []OnAccessChecked
	onRoundCompleted      []OnRoundCompleted
	onChatUnlocked        []OnChatUnlocked
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInterestRecorded); ok {
		r.onInterestRecorded = append(r.onInterestRecorded, v)
		hooks = append(hooks, "OnInterestRecorded")
	}
	if v, ok := p.(OnMatchCreated); ok {
		r.onMatchCreated = append(r.onMatchCreated, v)
		hooks = append(hooks, "OnMatchCreated")
	}
	if v, ok := p.(OnInterestDeclined); ok {
		r.onInterestDeclined = append(r.onInterestDeclined, v)
		hooks = append(hooks, "OnInterestDeclined")
	}
	if v, ok := p.(OnUnmatched); ok {
		r.onUnmatched = append(r.onUnmatched, v)
		hooks = append(hooks, "OnUnmatched")
	}
	if v, ok := p.(OnSessionCreated); ok {
		r.onSessionCreated = append(r.onSessionCreated, v)
		hooks = append(hooks, "OnSessionCreated")
	}
	if v, ok := p.(OnSessionJoined); ok {
		r.onSessionJoined = append(r.onSessionJoined, v)
		hooks = append(hooks, "OnSessionJoined")
	}
	if v, ok := p.(OnSessionEnded); ok {
		r.onSessionEnded = append(r.onSessionEnded, v)
		hooks = append(hooks, "OnSessionEnded")
	}
	if v, ok := p.(OnGrantCreated); ok {
		r.onGrantCreated = append(r.onGrantCreated, v)
		hooks = append(hooks, "OnGrantCreated")
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
		hooks = append(hooks, "OnSubscriptionCreated")
	}
	if v, ok := p.(OnBalanceChanged); ok {
		r.onBalanceChanged = append(r.onBalanceChanged, v)
		hooks = append(hooks, "OnBalanceChanged")
	}
	if v, ok := p.(OnPurchaseCompleted); ok {
		r.onPurchaseCompleted = append(r.onPurchaseCompleted, v)
		hooks = append(hooks, "OnPurchaseCompleted")
	}
	if v, ok := p.(OnAccessChecked); ok {
		r.onAccessChecked = append(r.onAccessChecked, v)
		hooks = append(hooks, "OnAccessChecked")
	}
	if v, ok := p.(OnRoundCompleted); ok {
		r.onRoundCompleted = append(r.onRoundCompleted, v)
		hooks = append(hooks, "OnRoundCompleted")
	}
	if v, ok := p.(OnChatUnlocked); ok {
		r.onChatUnlocked = append(r.onChatUnlocked, v)
		hooks = append(hooks, "OnChatUnlocked")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit snapshots the cached list under the read lock and calls each
// plugin with a timeout, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, call func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitInterestRecorded emits an interest recorded event.
func (r *Registry) EmitInterestRecorded(ctx context.Context, edge *interest.Edge) {
	emit(ctx, r, "OnInterestRecorded", &r.onInterestRecorded, func(p OnInterestRecorded) error {
		return p.OnInterestRecorded(ctx, edge)
	})
}

// EmitMatchCreated emits a new mutual match event.
func (r *Registry) EmitMatchCreated(ctx context.Context, matchID id.EdgeID, a, b string) {
	emit(ctx, r, "OnMatchCreated", &r.onMatchCreated, func(p OnMatchCreated) error {
		return p.OnMatchCreated(ctx, matchID, a, b)
	})
}

// EmitInterestDeclined emits an interest declined event.
func (r *Registry) EmitInterestDeclined(ctx context.Context, edge *interest.Edge) {
	emit(ctx, r, "OnInterestDeclined", &r.onInterestDeclined, func(p OnInterestDeclined) error {
		return p.OnInterestDeclined(ctx, edge)
	})
}

// EmitUnmatched emits an unmatch event.
func (r *Registry) EmitUnmatched(ctx context.Context, a, b string) {
	emit(ctx, r, "OnUnmatched", &r.onUnmatched, func(p OnUnmatched) error {
		return p.OnUnmatched(ctx, a, b)
	})
}

// EmitSessionCreated emits a session created event.
func (r *Registry) EmitSessionCreated(ctx context.Context, s *presence.Session) {
	emit(ctx, r, "OnSessionCreated", &r.onSessionCreated, func(p OnSessionCreated) error {
		return p.OnSessionCreated(ctx, s)
	})
}

// EmitSessionJoined emits a session joined event.
func (r *Registry) EmitSessionJoined(ctx context.Context, s *presence.Session) {
	emit(ctx, r, "OnSessionJoined", &r.onSessionJoined, func(p OnSessionJoined) error {
		return p.OnSessionJoined(ctx, s)
	})
}

// EmitSessionEnded emits a session ended event.
func (r *Registry) EmitSessionEnded(ctx context.Context, s *presence.Session) {
	emit(ctx, r, "OnSessionEnded", &r.onSessionEnded, func(p OnSessionEnded) error {
		return p.OnSessionEnded(ctx, s)
	})
}

// EmitGrantCreated emits a grant created event.
func (r *Registry) EmitGrantCreated(ctx context.Context, g *entitlement.Grant) {
	emit(ctx, r, "OnGrantCreated", &r.onGrantCreated, func(p OnGrantCreated) error {
		return p.OnGrantCreated(ctx, g)
	})
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, g *entitlement.Grant) {
	emit(ctx, r, "OnSubscriptionCreated", &r.onSubscriptionCreated, func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, g)
	})
}

// EmitBalanceChanged emits a balance changed event.
func (r *Registry) EmitBalanceChanged(ctx context.Context, owner, counter string, delta int64) {
	emit(ctx, r, "OnBalanceChanged", &r.onBalanceChanged, func(p OnBalanceChanged) error {
		return p.OnBalanceChanged(ctx, owner, counter, delta)
	})
}

// EmitPurchaseCompleted emits a purchase completed event.
func (r *Registry) EmitPurchaseCompleted(ctx context.Context, purchase *entitlement.Purchase) {
	emit(ctx, r, "OnPurchaseCompleted", &r.onPurchaseCompleted, func(p OnPurchaseCompleted) error {
		return p.OnPurchaseCompleted(ctx, purchase)
	})
}

// EmitAccessChecked emits an access checked event.
func (r *Registry) EmitAccessChecked(ctx context.Context, user, target string, allowed bool) {
	emit(ctx, r, "OnAccessChecked", &r.onAccessChecked, func(p OnAccessChecked) error {
		return p.OnAccessChecked(ctx, user, target, allowed)
	})
}

// EmitRoundCompleted emits a round completed event.
func (r *Registry) EmitRoundCompleted(ctx context.Context, round *vibelock.Round) {
	emit(ctx, r, "OnRoundCompleted", &r.onRoundCompleted, func(p OnRoundCompleted) error {
		return p.OnRoundCompleted(ctx, round)
	})
}

// EmitChatUnlocked emits a chat unlocked event.
func (r *Registry) EmitChatUnlocked(ctx context.Context, matchID id.EdgeID, a, b string) {
	emit(ctx, r, "OnChatUnlocked", &r.onChatUnlocked, func(p OnChatUnlocked) error {
		return p.OnChatUnlocked(ctx, matchID, a, b)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the request that emitted the event.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
