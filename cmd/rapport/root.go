package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/rapport/store"
	"github.com/xraph/rapport/storefactory"
)

var (
	verbose bool
	driver  string
	dsn     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rapport",
	Short: "Maintenance tool for the rapport matching and entitlement store",
	Long: `rapport runs schema migrations and health checks against the store
selected by RAPPORT_STORE_DRIVER and RAPPORT_STORE_DSN.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Store driver (overrides RAPPORT_STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Store DSN (overrides RAPPORT_STORE_DSN)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (storefactory.Config, error) {
	cfg, err := storefactory.FromEnv()
	if err != nil {
		return storefactory.Config{}, err
	}
	if driver != "" {
		cfg.Driver = storefactory.Driver(driver)
	}
	if dsn != "" {
		cfg.DSN = dsn
	}
	return cfg, cfg.Validate()
}

func openStore(ctx context.Context, cfg storefactory.Config) (store.Store, error) {
	slog.Debug("opening store", "driver", cfg.Driver)
	return storefactory.Open(ctx, cfg)
}
