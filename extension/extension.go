// Package extension provides the Forge extension adapter for Rapport.
//
// It implements the forge.Extension interface to integrate the matching
// engine into a Forge application with store selection, DI registration,
// and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.rapport" or "rapport" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/notify/redisnotify"
	"github.com/xraph/rapport/observability"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/storefactory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rapport"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Matching, presence pairing and entitlement core"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Rapport as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *rapport.Engine
	store      store.Store
	metrics    observability.MetricFactory
	engineOpts []rapport.Option
}

// New creates a new Rapport Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *rapport.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens
// the configured store, builds the engine, and registers it in the DI
// container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(context.Background()); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*rapport.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rapport: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rapport: store not initialized")
	}
	return e.engine.Ping(ctx)
}

// build opens the store and notifier named by the resolved config and
// constructs the engine.
func (e *Extension) build(ctx context.Context) error {
	if e.store == nil {
		s, err := storefactory.Open(ctx, e.config.Store)
		if err != nil {
			return fmt.Errorf("rapport: open store: %w", err)
		}
		e.store = s
	}

	opts, err := e.buildEngineOpts(ctx)
	if err != nil {
		return err
	}

	e.engine = rapport.New(e.store, opts...)
	return nil
}

// buildEngineOpts constructs rapport.Option values from the resolved config.
func (e *Extension) buildEngineOpts(ctx context.Context) ([]rapport.Option, error) {
	opts := make([]rapport.Option, 0, len(e.engineOpts)+5)

	if e.config.HookTimeout > 0 {
		opts = append(opts, rapport.WithHookTimeout(e.config.HookTimeout))
	}
	if e.config.CodeLength > 0 {
		opts = append(opts, rapport.WithCodeLength(e.config.CodeLength))
	}
	if e.config.Timezone != "" {
		loc, err := time.LoadLocation(e.config.Timezone)
		if err != nil {
			return nil, rapport.ValidationError{Field: "timezone", Message: err.Error()}
		}
		opts = append(opts, rapport.WithLocation(loc))
	}

	if e.metrics != nil {
		opts = append(opts, rapport.WithPlugin(observability.NewMetricsExtension(e.metrics)))
	}
	if url := e.config.Store.RedisURL; url != "" {
		n, err := redisnotify.Dial(ctx, url, redisnotify.WithChannel(e.config.Store.RedisChannel))
		if err != nil {
			return nil, err
		}
		opts = append(opts, rapport.WithPlugin(n))
	}

	// Append any pass-through rapport options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("rapport: configuration is required but not found in config files; " +
				"ensure 'extensions.rapport' or 'rapport' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("rapport: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", string(e.config.Store.Driver)),
		forge.F("redis", e.config.Store.RedisURL != ""),
		forge.F("hook_timeout", e.config.HookTimeout),
		forge.F("code_length", e.config.CodeLength),
		forge.F("timezone", e.config.Timezone),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.rapport" first (namespaced pattern).
	if cm.IsSet("extensions.rapport") {
		if err := cm.Bind("extensions.rapport", &cfg); err == nil {
			e.Logger().Debug("rapport: loaded config from file",
				forge.F("key", "extensions.rapport"),
			)
			return cfg, true
		}
		e.Logger().Warn("rapport: failed to bind extensions.rapport config",
			forge.F("error", "bind failed"),
		)
	}

	// Try short "rapport" key.
	if cm.IsSet("rapport") {
		if err := cm.Bind("rapport", &cfg); err == nil {
			e.Logger().Debug("rapport: loaded config from file",
				forge.F("key", "rapport"),
			)
			return cfg, true
		}
		e.Logger().Warn("rapport: failed to bind rapport config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store.Database == "" {
		cfg.Store.Database = defaults.Store.Database
	}
	if cfg.Store.RedisChannel == "" {
		cfg.Store.RedisChannel = defaults.Store.RedisChannel
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	if cfg.CodeLength == 0 {
		cfg.CodeLength = defaults.CodeLength
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Store selection: a YAML driver wins as a whole section.
	if yamlConfig.Store.Driver == "" {
		redisURL, redisChannel := yamlConfig.Store.RedisURL, yamlConfig.Store.RedisChannel
		yamlConfig.Store = programmaticConfig.Store
		if redisURL != "" {
			yamlConfig.Store.RedisURL = redisURL
		}
		if redisChannel != "" {
			yamlConfig.Store.RedisChannel = redisChannel
		}
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Timezone == "" && programmaticConfig.Timezone != "" {
		yamlConfig.Timezone = programmaticConfig.Timezone
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.HookTimeout == 0 && programmaticConfig.HookTimeout != 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}
	if yamlConfig.CodeLength == 0 && programmaticConfig.CodeLength != 0 {
		yamlConfig.CodeLength = programmaticConfig.CodeLength
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
