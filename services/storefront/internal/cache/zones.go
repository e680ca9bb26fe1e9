package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

const (
	ZonesKey = "delivery:zones:active"
	ZonesTTL = 5 * time.Minute
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// ZoneCache is a cache-aside copy of the active delivery zones. Redis errors count as misses.
type ZoneCache struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
	Log    *slog.Logger
}

func NewZoneCache(client *redis.Client, log *slog.Logger) *ZoneCache {
	if log == nil {
		log = slog.Default()
	}
	return &ZoneCache{Client: client, Key: ZonesKey, TTL: ZonesTTL, Log: log}
}

func (c *ZoneCache) Get(ctx context.Context) ([]models.DeliveryZone, bool) {
	raw, err := c.Client.Get(ctx, c.Key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Warn("zone_cache_get_failed", "error", err)
		}
		return nil, false
	}
	var zones []models.DeliveryZone
	if err := json.Unmarshal(raw, &zones); err != nil {
		c.Log.Warn("zone_cache_corrupt", "error", err)
		return nil, false
	}
	return zones, true
}

func (c *ZoneCache) Set(ctx context.Context, zones []models.DeliveryZone) {
	raw, err := json.Marshal(zones)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, c.Key, raw, c.TTL).Err(); err != nil {
		c.Log.Warn("zone_cache_set_failed", "error", err)
	}
}

func (c *ZoneCache) Invalidate(ctx context.Context) {
	if err := c.Client.Del(ctx, c.Key).Err(); err != nil {
		c.Log.Warn("zone_cache_invalidate_failed", "error", err)
	}
}
