package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tpa-platform/pricing-engine/internal/api"
	"github.com/tpa-platform/pricing-engine/internal/audit"
	"github.com/tpa-platform/pricing-engine/internal/config"
	"github.com/tpa-platform/pricing-engine/internal/engine"
	"github.com/tpa-platform/pricing-engine/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pricing engine HTTP server",
	Long: `Start the HTTP API backed by PostgreSQL, with an optional Redis
rule cache when REDIS_ADDR is set.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()
	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	log.Info("Connected to pricing database")

	var st store.Store = pg
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		st = store.NewCached(pg, client, cfg.CacheTTL)
		log.WithField("ttl", cfg.CacheTTL.String()).Info("Rule cache enabled")
	}

	eng := engine.New(st, audit.New(cfg.AuditDir))
	server := api.New(st, eng)
	return server.Run(cfg.Port)
}
