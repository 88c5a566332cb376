package extension

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/store/memory"
	"github.com/xraph/rapport/storefactory"
)

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		check        func(t *testing.T, got Config)
	}{
		{
			name:         "defaults fill gaps",
			yaml:         Config{Store: storefactory.Config{Driver: storefactory.DriverMemory}},
			programmatic: Config{},
			check: func(t *testing.T, got Config) {
				if got.HookTimeout != 5*time.Second || got.CodeLength != 8 {
					t.Errorf("defaults not applied: %+v", got)
				}
				if got.Store.Database != "rapport" || got.Store.RedisChannel != "rapport.events" {
					t.Errorf("store defaults not applied: %+v", got.Store)
				}
			},
		},
		{
			name:         "yaml wins over programmatic",
			yaml:         Config{CodeLength: 6, Timezone: "Europe/Berlin"},
			programmatic: Config{CodeLength: 10, Timezone: "UTC", HookTimeout: time.Second},
			check: func(t *testing.T, got Config) {
				if got.CodeLength != 6 || got.Timezone != "Europe/Berlin" {
					t.Errorf("yaml values lost: %+v", got)
				}
				if got.HookTimeout != time.Second {
					t.Errorf("programmatic gap not filled: %v", got.HookTimeout)
				}
			},
		},
		{
			name:         "programmatic disable migrate sticks",
			yaml:         Config{},
			programmatic: Config{DisableMigrate: true},
			check: func(t *testing.T, got Config) {
				if !got.DisableMigrate {
					t.Error("DisableMigrate dropped")
				}
			},
		},
		{
			name: "programmatic store used when yaml names no driver",
			yaml: Config{Store: storefactory.Config{RedisURL: "redis://cache:6379/0"}},
			programmatic: Config{Store: storefactory.Config{
				Driver: storefactory.DriverPostgres,
				DSN:    "postgres://localhost/rapport",
			}},
			check: func(t *testing.T, got Config) {
				if got.Store.Driver != storefactory.DriverPostgres || got.Store.DSN == "" {
					t.Errorf("store = %+v", got.Store)
				}
				if got.Store.RedisURL != "redis://cache:6379/0" {
					t.Errorf("yaml redis url lost: %q", got.Store.RedisURL)
				}
			},
		},
		{
			name:         "yaml store wins as a whole",
			yaml:         Config{Store: storefactory.Config{Driver: storefactory.DriverSQLite, DSN: "/var/lib/rapport.db"}},
			programmatic: Config{Store: storefactory.Config{Driver: storefactory.DriverMemory}},
			check: func(t *testing.T, got Config) {
				if got.Store.Driver != storefactory.DriverSQLite {
					t.Errorf("driver = %q", got.Store.Driver)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.programmatic))
		})
	}
}

func TestBuildRequiresStoreDriver(t *testing.T) {
	e := New()
	e.config = mergeWithDefaults(e.config)

	err := e.build(context.Background())
	if !errors.Is(err, rapport.ErrNoStoreDriver) {
		t.Fatalf("err = %v, want ErrNoStoreDriver", err)
	}
	if e.engine != nil {
		t.Error("engine built without a store")
	}
}

func TestBuildFromStoreConfig(t *testing.T) {
	e := New(WithStoreConfig(storefactory.Config{Driver: storefactory.DriverMemory}), WithTimezone("UTC"))
	e.config = mergeWithDefaults(e.config)

	ctx := context.Background()
	if err := e.build(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.engine.Stop() //nolint:errcheck // test cleanup

	s, err := e.Engine().CreateSession(ctx, "host", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Code) != 8 {
		t.Errorf("code %q, want length 8", s.Code)
	}
	if err := e.Health(ctx); err != nil {
		t.Errorf("Health = %v", err)
	}
}

func TestBuildUsesProvidedStore(t *testing.T) {
	s := memory.New()
	e := New(WithStore(s), WithCodeLength(5))
	e.config = mergeWithDefaults(e.config)

	if err := e.build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.Engine().Store() != s {
		t.Error("engine does not use the provided store")
	}
	sess, err := e.Engine().CreateSession(context.Background(), "host", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Code) != 5 {
		t.Errorf("code %q, want length 5", sess.Code)
	}
}

func TestBuildRejectsUnknownTimezone(t *testing.T) {
	e := New(WithStore(memory.New()), WithTimezone("Mars/Olympus_Mons"))
	e.config = mergeWithDefaults(e.config)

	var verr rapport.ValidationError
	if err := e.build(context.Background()); !errors.As(err, &verr) || verr.Field != "timezone" {
		t.Errorf("err = %v, want timezone ValidationError", err)
	}
}
