package extension

import (
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/observability"
	"github.com/xraph/rapport/plugin"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/storefactory"
)

// Option configures the Rapport Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine, bypassing the configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRapportOption passes a rapport.Option through to the underlying engine.
func WithRapportOption(opt rapport.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a rapport plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, rapport.WithPlugin(p))
	}
}

// WithMetrics registers the metrics plugin backed by factory.
func WithMetrics(factory observability.MetricFactory) Option {
	return func(e *Extension) { e.metrics = factory }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithStoreConfig selects the store backend.
func WithStoreConfig(cfg storefactory.Config) Option {
	return func(e *Extension) { e.config.Store = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}

// WithCodeLength sets the presence code length.
func WithCodeLength(n int) Option {
	return func(e *Extension) { e.config.CodeLength = n }
}

// WithTimezone sets the zone tonight passes are computed in.
func WithTimezone(tz string) Option {
	return func(e *Extension) { e.config.Timezone = tz }
}
