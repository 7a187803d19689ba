package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/domain"
)

const (
	layerMemory = "memory"
	layerRedis  = "redis"
)

// ForecastCacheRepo is a two-layer forecast cache: a per-instance memory map in
// front of a Redis hash per material, one field per horizon. Invalidation clears
// both layers and tells other instances to drop their memory entries.
type ForecastCacheRepo struct {
	rdb     goredis.Cmdable
	mem     *memoryCache
	ttl     time.Duration
	metrics *metrics.CacheMetrics
}

var _ domain.ForecastCache = (*ForecastCacheRepo)(nil)

// NewForecastCacheRepo creates the cache. cacheMetrics may be nil.
func NewForecastCacheRepo(rdb goredis.Cmdable, ttl time.Duration, cacheMetrics *metrics.CacheMetrics) *ForecastCacheRepo {
	return &ForecastCacheRepo{
		rdb:     rdb,
		mem:     newMemoryCache(ttl),
		ttl:     ttl,
		metrics: cacheMetrics,
	}
}

// StartEvictionTimer periodically drops expired memory entries.
// Returns a stop function that should be deferred.
func (r *ForecastCacheRepo) StartEvictionTimer(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if evicted := r.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired forecast cache entries", "count", evicted, "remaining", r.mem.size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func (r *ForecastCacheRepo) Get(ctx context.Context, materialID int64, horizon int) (*domain.Forecast, bool) {
	if f, ok := r.mem.get(materialID, horizon); ok {
		r.hit(layerMemory)
		return f, true
	}
	r.miss(layerMemory)

	data, err := r.rdb.HGet(ctx, forecastCacheKey(materialID), strconv.Itoa(horizon)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis forecast cache HGET failed", "material_id", materialID, "error", err)
		}
		r.miss(layerRedis)
		return nil, false
	}

	var f domain.Forecast
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("Failed to unmarshal cached forecast", "material_id", materialID, "error", err)
		r.miss(layerRedis)
		return nil, false
	}

	r.hit(layerRedis)
	r.mem.set(&f)
	return &f, true
}

// Set stores f in both layers. Redis failures are logged, not returned.
func (r *ForecastCacheRepo) Set(ctx context.Context, f *domain.Forecast) {
	r.mem.set(f)

	encoded, err := json.Marshal(f)
	if err != nil {
		slog.Warn("Failed to marshal forecast for Redis cache", "material_id", f.MaterialID, "error", err)
		return
	}

	key := forecastCacheKey(f.MaterialID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(f.HorizonDays), encoded)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		slog.Warn("Failed to populate Redis forecast cache", "material_id", f.MaterialID, "error", err)
	}
}

// Invalidate drops every horizon of the material locally and in Redis, then
// publishes the material ID so other instances clear their memory layer.
func (r *ForecastCacheRepo) Invalidate(ctx context.Context, materialID int64) error {
	r.evictLocal(materialID)

	if err := r.rdb.Del(ctx, forecastCacheKey(materialID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate forecast cache: %w", err)
	}
	if err := publishForecastInvalidation(ctx, r.rdb, materialID); err != nil {
		return err
	}
	return nil
}

func (r *ForecastCacheRepo) evictLocal(materialID int64) {
	r.mem.invalidate(materialID)
	if r.metrics != nil {
		r.metrics.Invalidations.Inc()
	}
}

func (r *ForecastCacheRepo) hit(layer string) {
	if r.metrics != nil {
		r.metrics.Hits.WithLabelValues(layer).Inc()
	}
}

func (r *ForecastCacheRepo) miss(layer string) {
	if r.metrics != nil {
		r.metrics.Misses.WithLabelValues(layer).Inc()
	}
}

func forecastCacheKey(materialID int64) string {
	return "forecast_cache:" + strconv.FormatInt(materialID, 10)
}

// memoryCache is the per-instance layer, keyed by material then horizon.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[int64]map[int]memoryCacheEntry
	ttl     time.Duration
}

type memoryCacheEntry struct {
	forecast  domain.Forecast
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[int64]map[int]memoryCacheEntry),
		ttl:     ttl,
	}
}

func (c *memoryCache) get(materialID int64, horizon int) (*domain.Forecast, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[materialID][horizon]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	f := entry.forecast
	return &f, true
}

func (c *memoryCache) set(f *domain.Forecast) {
	c.mu.Lock()
	defer c.mu.Unlock()

	horizons, ok := c.entries[f.MaterialID]
	if !ok {
		horizons = make(map[int]memoryCacheEntry)
		c.entries[f.MaterialID] = horizons
	}
	horizons[f.HorizonDays] = memoryCacheEntry{forecast: *f, expiresAt: time.Now().Add(c.ttl)}
}

func (c *memoryCache) invalidate(materialID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, materialID)
}

// size counts cached forecasts across all materials.
func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, horizons := range c.entries {
		n += len(horizons)
	}
	return n
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for materialID, horizons := range c.entries {
		for horizon, entry := range horizons {
			if now.After(entry.expiresAt) {
				delete(horizons, horizon)
				evicted++
			}
		}
		if len(horizons) == 0 {
			delete(c.entries, materialID)
		}
	}
	return evicted
}
