// Package storefactory selects and opens a store.Store from configuration.
// There is no implicit default: an empty driver is an error, so a
// misconfigured deployment never silently runs on process memory.
package storefactory

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/store/memory"
	"github.com/xraph/rapport/store/mongo"
	"github.com/xraph/rapport/store/postgres"
	"github.com/xraph/rapport/store/sqlite"
)

// Driver names a store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMongo    Driver = "mongo"
)

// Config selects the store backend and, optionally, the Redis instance
// events are published to.
type Config struct {
	Driver Driver `env:"RAPPORT_STORE_DRIVER" json:"driver" yaml:"driver" mapstructure:"driver"`

	// DSN is the connection string: a file path for sqlite, a postgres URL,
	// or a mongodb URI.
	DSN string `env:"RAPPORT_STORE_DSN" json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// Database is the mongo database name.
	Database string `env:"RAPPORT_STORE_DATABASE" envDefault:"rapport" json:"database" yaml:"database" mapstructure:"database"`

	RedisURL     string `env:"RAPPORT_REDIS_URL" json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	RedisChannel string `env:"RAPPORT_REDIS_CHANNEL" envDefault:"rapport.events" json:"redis_channel,omitempty" yaml:"redis_channel,omitempty" mapstructure:"redis_channel"`
}

// FromEnv loads Config from RAPPORT_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors without connecting.
func (c Config) Validate() error {
	switch c.Driver {
	case "":
		return rapport.ErrNoStoreDriver
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if c.DSN == "" {
			return rapport.ValidationError{Field: "dsn", Message: fmt.Sprintf("required for driver %q", c.Driver)}
		}
	case DriverMongo:
		if c.DSN == "" {
			return rapport.ValidationError{Field: "dsn", Message: "required for driver \"mongo\""}
		}
		if c.Database == "" {
			return rapport.ValidationError{Field: "database", Message: "required for driver \"mongo\""}
		}
	default:
		return rapport.ValidationError{Field: "driver", Message: fmt.Sprintf("unknown driver %q", c.Driver)}
	}
	return nil
}

// Open connects to the configured backend. It does not migrate.
func Open(ctx context.Context, c Config) (store.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Driver {
	case DriverSQLite:
		s, err := sqlite.Open(c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := postgres.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		s, err := mongo.Open(ctx, c.DSN, c.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}
