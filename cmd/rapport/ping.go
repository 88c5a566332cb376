package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/rapport/notify/redisnotify"
)

var pingTimeout time.Duration

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the store and Redis",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal("Invalid configuration", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()

		s, err := openStore(ctx, cfg)
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close() //nolint:errcheck // process exits next

		start := time.Now()
		if err := s.Ping(ctx); err != nil {
			fatal("Store unreachable", err)
		}
		slog.Debug("store ping", "driver", cfg.Driver, "elapsed", time.Since(start))
		fmt.Printf("store %s: ok\n", cfg.Driver)

		if cfg.RedisURL == "" {
			return
		}
		n, err := redisnotify.Dial(ctx, cfg.RedisURL, redisnotify.WithChannel(cfg.RedisChannel))
		if err != nil {
			fatal("Redis unreachable", err)
		}
		_ = n.OnShutdown(ctx) //nolint:errcheck // closing a healthy client
		fmt.Printf("redis %s: ok\n", n.Channel())
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Give up after this long")
	rootCmd.AddCommand(pingCmd)
}
