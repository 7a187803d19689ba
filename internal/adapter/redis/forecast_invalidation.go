package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const forecastInvalidationChannel = "forecast:invalidate"

// ForecastInvalidationSubscriber drops memory-cached forecasts when another
// instance publishes an invalidation.
type ForecastInvalidationSubscriber struct {
	rdb   *goredis.Client
	cache *ForecastCacheRepo
}

func NewForecastInvalidationSubscriber(rdb *goredis.Client, cache *ForecastCacheRepo) *ForecastInvalidationSubscriber {
	return &ForecastInvalidationSubscriber{rdb: rdb, cache: cache}
}

// Start blocks until ctx is cancelled or the subscription closes.
func (s *ForecastInvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, forecastInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ForecastInvalidationSubscriber) handleInvalidation(payload string) {
	materialID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		slog.Warn("Malformed forecast invalidation message", "payload", payload)
		return
	}

	s.cache.evictLocal(materialID)
	slog.Debug("Forecast cache invalidated via pub/sub", "material_id", materialID)
}

func publishForecastInvalidation(ctx context.Context, rdb goredis.Cmdable, materialID int64) error {
	if err := rdb.Publish(ctx, forecastInvalidationChannel, strconv.FormatInt(materialID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to publish forecast invalidation: %w", err)
	}
	return nil
}
