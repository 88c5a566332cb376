package rapport

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/rapport/plugin"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/safety"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/vibelock"
)

// defaultCodeAttempts bounds presence code generation on collisions.
const defaultCodeAttempts = 5

// Engine is the matching and entitlement core. It owns no state of its
// own: every durable fact lives in the store, and every atomic transition
// is a single store call.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	safety  safety.Checker

	clock func() time.Time
	loc   *time.Location

	questions []vibelock.Question
	rand      vibelock.Rand

	codeLength   int
	codeAttempts int
	codeGen      func(length int) (string, error)
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		safety:       safety.Allow,
		clock:        time.Now,
		loc:          time.Local,
		questions:    vibelock.DefaultQuestions,
		rand:         vibelock.DefaultRand,
		codeLength:   presence.DefaultCodeLength,
		codeAttempts: defaultCodeAttempts,
		codeGen:      presence.NewCode,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds every plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithSafety sets the block-list collaborator consulted before recording
// interest. The default blocks nobody.
func WithSafety(c safety.Checker) Option {
	return func(e *Engine) {
		if c != nil {
			e.safety = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation sets the zone in which "tonight" passes expire at 06:00.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithQuestions replaces the VibeLock question pool. An empty pool is
// ignored.
func WithQuestions(qs []vibelock.Question) Option {
	return func(e *Engine) {
		if len(qs) > 0 {
			e.questions = qs
		}
	}
}

// WithRand sets the randomness source for question draws and scores.
func WithRand(r vibelock.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithCodeLength sets the length of generated presence codes.
func WithCodeLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.codeLength = n
		}
	}
}

// WithCodeGenerator replaces the presence code generator.
func WithCodeGenerator(gen func(length int) (string, error)) Option {
	return func(e *Engine) {
		if gen != nil {
			e.codeGen = gen
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("rapport started",
		"plugins", e.plugins.Count(),
		"location", e.loc.String(),
		"questions", len(e.questions),
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	if err := e.store.Close(); err != nil {
		return err
	}
	e.logger.Info("rapport stopped")
	return nil
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Ping checks store connectivity.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

func (e *Engine) now() time.Time { return e.clock() }
