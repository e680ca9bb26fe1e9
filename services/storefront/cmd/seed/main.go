package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/Skotchmaster/souq/pkg/config"
	pkgdb "github.com/Skotchmaster/souq/pkg/db"
	"github.com/Skotchmaster/souq/pkg/logging"

	"github.com/Skotchmaster/souq/services/storefront/internal/cache"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/seed"
)

func main() {
	config.LoadDotenv("services/storefront/.env", ".env")
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	logger := logging.New(cfg.LogLevel).With("service", "seed")
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer pkgdb.Close(db)

	store := &repo.GormRepo{DB: db}
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	res, err := seed.Run(ctx, store)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	logger.Info("seed_done", "categories", res.Categories, "products", res.Products, "zones", res.Zones)

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("zone_cache_not_cleared", "error", err)
			return
		}
		defer rdb.Close()
		cache.NewZoneCache(rdb, logger).Invalidate(ctx)
	}
}
