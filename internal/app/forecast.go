package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

const (
	narrationOK       = "ok"
	narrationFallback = "fallback"
	narrationDisabled = "disabled"
)

// Forecast predicts the material's usage over the next horizon days and derives
// a stock recommendation. Results are cached per material and horizon; concurrent
// misses for the same key and material version share one computation. A caller
// whose ctx ends stops waiting while the shared computation runs on.
func (s *Service) Forecast(ctx context.Context, userID uuid.UUID, materialID int64, horizon int) (*domain.Forecast, error) {
	if horizon < 1 || horizon > domain.MaxForecastHorizon {
		return nil, apperrors.ValidationError(fmt.Sprintf("horizon must be between 1 and %d days", domain.MaxForecastHorizon)).
			WithField("horizon", horizon)
	}

	material, err := s.getMaterial(ctx, userID, materialID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, materialID, horizon); ok {
		if forecastMatches(cached, material) {
			return cached, nil
		}
		slog.DebugContext(ctx, "Cached forecast is older than material, recomputing", "material_id", materialID)
	}

	key := fmt.Sprintf("%d:%d:%d", materialID, horizon, material.UpdatedAt.UnixNano())
	ch := s.forecastGroup.DoChan(key, func() (any, error) {
		return s.computeForecast(context.WithoutCancel(ctx), material, horizon)
	})

	select {
	case <-ctx.Done():
		return nil, mapError(ctx.Err(), "forecast request cancelled")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// callers sharing a flight must not see each other's mutations
		f := *res.Val.(*domain.Forecast)
		return &f, nil
	}
}

// forecastMatches reports whether f was computed from the material as stored now.
func forecastMatches(f *domain.Forecast, m *domain.Material) bool {
	return f.MaterialUpdatedAt.Equal(m.UpdatedAt) &&
		f.CurrentStock == m.CurrentQuantity &&
		f.MinThreshold == m.MinThreshold &&
		f.MaterialName == m.Name &&
		f.Unit == m.Unit
}

func (s *Service) computeForecast(ctx context.Context, material *domain.Material, horizon int) (*domain.Forecast, error) {
	started := time.Now()
	now := s.clock.Now()
	today := inventory.DateOf(now)

	usage, err := s.usage.DailyOutflow(ctx, material.ID, inventory.AddDays(today, -domain.ForecastHistoryDays), today)
	if err != nil {
		return nil, mapError(err, "failed to load usage history")
	}

	f, err := inventory.BuildForecast(*material, usage, horizon, now)
	if err != nil {
		return nil, apperrors.InternalError("failed to compute forecast", err).WithField("material_id", material.ID)
	}
	if s.metrics != nil {
		s.metrics.ForecastDuration.Observe(time.Since(started).Seconds())
	}

	outcome := s.narrate(ctx, &f)
	if s.metrics != nil {
		s.metrics.NarrationOutcomes.WithLabelValues(outcome).Inc()
	}

	// A fallback is not cached so the next request tries narration again.
	if outcome != narrationFallback && s.stillCurrent(ctx, &f, material.UserID) {
		s.cache.Set(ctx, &f)
	}
	return &f, nil
}

// stillCurrent reloads the material and reports whether f still describes it.
// A change committed during narration has already invalidated the cache.
func (s *Service) stillCurrent(ctx context.Context, f *domain.Forecast, userID uuid.UUID) bool {
	current, err := s.materials.GetByID(ctx, userID, f.MaterialID)
	if err != nil {
		slog.DebugContext(ctx, "Material reload failed, not caching forecast", "material_id", f.MaterialID, "error", err)
		return false
	}
	if !forecastMatches(f, current) {
		slog.DebugContext(ctx, "Material changed during forecast, not caching", "material_id", f.MaterialID)
		return false
	}
	return true
}

// narrate replaces the template recommendation with generated text. Any failure
// keeps the template text.
func (s *Service) narrate(ctx context.Context, f *domain.Forecast) string {
	if s.narrator == nil {
		return narrationDisabled
	}

	text, err := s.narrator.Narrate(ctx, *f)
	if err != nil {
		slog.WarnContext(ctx, "Forecast narration failed, using template text",
			"material_id", f.MaterialID,
			"error", err,
		)
		return narrationFallback
	}

	f.Narrative = text
	f.Narrated = true
	return narrationOK
}
