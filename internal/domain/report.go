package domain

import (
	"context"
	"time"
)

const DefaultReportDays = 90

// TurnoverRow is one material's line in the turnover report.
// Turnover is nil when average stock or usage is zero.
type TurnoverRow struct {
	MaterialID int64    `json:"material_id"`
	Name       string   `json:"name"`
	Unit       Unit     `json:"unit"`
	Income     float64  `json:"income"`
	Usage      float64  `json:"usage"`
	StartStock float64  `json:"start_stock"`
	EndStock   float64  `json:"end_stock"`
	AvgStock   float64  `json:"avg_stock"`
	Turnover   *float64 `json:"turnover"`
}

type TurnoverReport struct {
	Days int           `json:"days"`
	From time.Time     `json:"from"`
	To   time.Time     `json:"to"`
	Rows []TurnoverRow `json:"rows"`
}

// Notifier delivers a plain-text message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ReportExporter renders a turnover report as a downloadable file.
type ReportExporter interface {
	TurnoverReport(report TurnoverReport) ([]byte, error)
}
