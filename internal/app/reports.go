package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

// MaxReportDays bounds the turnover window.
const MaxReportDays = 3650

// TurnoverReport computes income, usage and turnover per material over the last
// days days, today included.
func (s *Service) TurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, error) {
	if days < 1 || days > MaxReportDays {
		return nil, apperrors.ValidationError(fmt.Sprintf("days must be between 1 and %d", MaxReportDays)).
			WithField("days", days)
	}

	from, to := inventory.ReportWindow(s.today(), days)

	materials, err := s.materials.List(ctx, userID, domain.MaterialFilter{Today: to})
	if err != nil {
		return nil, mapError(err, "failed to list materials")
	}
	movements, err := s.usage.Movements(ctx, userID, from, to)
	if err != nil {
		return nil, mapError(err, "failed to load movements")
	}

	return &domain.TurnoverReport{
		Days: days,
		From: from,
		To:   to,
		Rows: inventory.Turnover(materials, movements, from, to),
	}, nil
}

// ExportTurnoverReport renders the same report as a spreadsheet.
func (s *Service) ExportTurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, []byte, error) {
	if s.exporter == nil {
		return nil, nil, apperrors.InternalError("report export is not configured", errors.New("no exporter"))
	}

	report, err := s.TurnoverReport(ctx, userID, days)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.exporter.TurnoverReport(*report)
	if err != nil {
		return nil, nil, apperrors.InternalError("failed to render report", err)
	}
	return report, data, nil
}
