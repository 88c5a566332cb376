package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending store migrations",
	Long:  `Create or upgrade the tables, indexes and collections the configured store needs. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal("Invalid configuration", err)
		}

		ctx := cmd.Context()
		s, err := openStore(ctx, cfg)
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close() //nolint:errcheck // process exits next

		if err := s.Migrate(ctx); err != nil {
			fatal("Migration failed", err)
		}

		slog.Info("migrations applied", "driver", cfg.Driver)
		fmt.Printf("Store %q is up to date\n", cfg.Driver)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
