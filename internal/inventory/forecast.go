package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/pscheid92/stockpulse/internal/domain"
)

// DisposeHorizonDays is how close (after the forecast horizon) an expiry must be
// for surplus stock to be flagged for disposal.
const DisposeHorizonDays = 60

// DailySeries expands sparse per-day outflow sums into a dense series covering
// [today-historyDays, today]. Days without usage are zero; entries outside the
// window are dropped.
func DailySeries(usage []domain.DailyUsage, today time.Time, historyDays int) []float64 {
	start := AddDays(today, -historyDays)
	series := make([]float64, historyDays+1)
	for _, u := range usage {
		idx := DaysBetween(start, u.Date)
		if idx < 0 || idx >= len(series) {
			continue
		}
		series[idx] += u.Quantity
	}
	return series
}

// PredictUsage fits usage = a + b*dayIndex by ordinary least squares and sums the
// predictions for the next horizon days. Negative predictions count as zero.
func PredictUsage(series []float64, horizon int) (float64, error) {
	if len(series) == 0 || horizon <= 0 {
		return 0, nil
	}
	total, err := stats.Sum(series)
	if err != nil {
		return 0, fmt.Errorf("sum usage series: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	intercept, slope, err := fitLine(series)
	if err != nil {
		return 0, err
	}

	n := len(series)
	var predicted float64
	for i := n; i < n+horizon; i++ {
		if y := intercept + slope*float64(i); y > 0 {
			predicted += y
		}
	}
	return predicted, nil
}

func fitLine(series []float64) (intercept, slope float64, err error) {
	if len(series) == 1 {
		return series[0], 0, nil
	}

	points := make(stats.Series, len(series))
	for i, y := range series {
		points[i] = stats.Coordinate{X: float64(i), Y: y}
	}

	fitted, err := stats.LinearRegression(points)
	if err != nil {
		return 0, 0, fmt.Errorf("linear regression: %w", err)
	}
	if len(fitted) != len(series) {
		return 0, 0, errors.New("linear regression: unexpected result length")
	}

	last := len(fitted) - 1
	intercept = fitted[0].Y
	slope = (fitted[last].Y - fitted[0].Y) / fitted[last].X
	return intercept, slope, nil
}

// Recommendation is the stock advice derived from a usage prediction.
type Recommendation struct {
	PredictedUsage   float64
	RecommendedStock float64
	Action           domain.Action
	QuantityDelta    float64
	Message          string
}

// Recommend compares current stock with predicted usage plus the minimum threshold.
//
// Below target: purchase the difference. Above twice the target with an expiry that
// falls less than DisposeHorizonDays after the horizon: dispose. Otherwise no action.
func Recommend(m domain.Material, predicted float64, horizon int, today time.Time) Recommendation {
	recommended := predicted + m.MinThreshold
	rec := Recommendation{
		PredictedUsage:   Round2(predicted),
		RecommendedStock: Round2(recommended),
		Action:           domain.ActionNone,
	}

	current := m.CurrentQuantity
	switch {
	case current < recommended:
		rec.Action = domain.ActionPurchase
		rec.QuantityDelta = Round2(recommended - current)
		rec.Message = fmt.Sprintf("Purchase %s %s to cover forecast demand and keep the minimum stock.",
			FormatQuantity(rec.QuantityDelta), m.Unit.Label())

	case current > 2*recommended && expiresWithin(m, today, horizon+DisposeHorizonDays):
		rec.Action = domain.ActionDispose
		rec.Message = fmt.Sprintf("Stock far exceeds forecast demand. Consider disposing of part of %s or using it soon, given its expiration date.", m.Name)

	case current > 2*recommended:
		rec.Message = "Stock far exceeds forecast demand, but nothing expires soon. No action required."

	default:
		rec.Message = "Current stock is within norms. No action required."
	}
	return rec
}

func expiresWithin(m domain.Material, today time.Time, days int) bool {
	if m.ExpirationDate == nil {
		return false
	}
	return DaysBetween(today, *m.ExpirationDate) < days
}

// BuildForecast runs the full pipeline for one material.
func BuildForecast(m domain.Material, usage []domain.DailyUsage, horizon int, now time.Time) (domain.Forecast, error) {
	today := DateOf(now)
	series := DailySeries(usage, today, domain.ForecastHistoryDays)

	predicted, err := PredictUsage(series, horizon)
	if err != nil {
		return domain.Forecast{}, err
	}
	rec := Recommend(m, predicted, horizon, today)

	return domain.Forecast{
		MaterialID:       m.ID,
		MaterialName:     m.Name,
		Unit:             m.Unit,
		CurrentStock:     m.CurrentQuantity,
		MinThreshold:     m.MinThreshold,
		PredictedUsage:   rec.PredictedUsage,
		RecommendedStock: rec.RecommendedStock,
		Action:           rec.Action,
		QuantityDelta:    rec.QuantityDelta,
		Recommendation:   rec.Message,
		Narrative:        rec.Message,
		HorizonDays:      horizon,
		HistoryDays:      domain.ForecastHistoryDays,
		GeneratedAt:      now,

		MaterialUpdatedAt: m.UpdatedAt,
	}, nil
}
