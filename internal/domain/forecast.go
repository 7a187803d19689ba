package domain

import (
	"context"
	"time"
)

type Action string

const (
	ActionNone     Action = "NONE"
	ActionPurchase Action = "PURCHASE"
	ActionDispose  Action = "DISPOSE"
)

const (
	DefaultForecastHorizon = 30
	MaxForecastHorizon     = 365
	ForecastHistoryDays    = 180
)

type Forecast struct {
	MaterialID       int64     `json:"material_id"`
	MaterialName     string    `json:"material_name"`
	Unit             Unit      `json:"unit"`
	CurrentStock     float64   `json:"current_stock"`
	MinThreshold     float64   `json:"min_threshold"`
	PredictedUsage   float64   `json:"predicted_usage"`
	RecommendedStock float64   `json:"recommended_stock"`
	Action           Action    `json:"action"`
	QuantityDelta    float64   `json:"quantity_delta"`
	Recommendation   string    `json:"recommendation"`
	Narrative        string    `json:"narrative"`
	Narrated         bool      `json:"narrated"`
	HorizonDays      int       `json:"horizon_days"`
	HistoryDays      int       `json:"history_days"`
	GeneratedAt      time.Time `json:"generated_at"`

	// MaterialUpdatedAt is the material version the forecast was computed from.
	MaterialUpdatedAt time.Time `json:"material_updated_at"`
}

// ForecastCache stores computed forecasts per material and horizon.
type ForecastCache interface {
	Get(ctx context.Context, materialID int64, horizon int) (*Forecast, bool)
	Set(ctx context.Context, f *Forecast)
	// Invalidate drops every horizon cached for the material.
	Invalidate(ctx context.Context, materialID int64) error
}

// Narrator phrases an already computed forecast in natural language.
type Narrator interface {
	Narrate(ctx context.Context, f Forecast) (string, error)
}
