package extension

import (
	"time"

	"github.com/xraph/rapport/notify/redisnotify"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/storefactory"
)

// Config holds the Rapport extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.rapport" or "rapport" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Store selects the backend. It is only consulted when no store was
	// passed with WithStore. An empty driver is an error.
	Store storefactory.Config `json:"store" mapstructure:"store" yaml:"store"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// CodeLength is the length of presence pairing codes (default: 8).
	CodeLength int `json:"code_length" mapstructure:"code_length" yaml:"code_length"`

	// Timezone is the IANA zone in which tonight passes end at 06:00.
	// Empty means the process's local zone.
	Timezone string `json:"timezone" mapstructure:"timezone" yaml:"timezone"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: storefactory.Config{
			Database:     "rapport",
			RedisChannel: redisnotify.DefaultChannel,
		},
		HookTimeout: 5 * time.Second,
		CodeLength:  presence.DefaultCodeLength,
	}
}
