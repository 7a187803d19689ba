package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/stockpulse/internal/domain"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

func reportDeps() *testDeps {
	deps := newTestDeps()
	deps.materials.listFn = func(context.Context, uuid.UUID, domain.MaterialFilter) ([]domain.Material, error) {
		return []domain.Material{
			{ID: 1, Name: "Ethanol", Unit: domain.UnitLiters, CurrentQuantity: 20},
			{ID: 2, Name: "Gloves", Unit: domain.UnitPieces, CurrentQuantity: 50},
		}, nil
	}
	deps.usage.movementsFn = func(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.UsageEntry, error) {
		return []domain.UsageEntry{
			{MaterialID: 1, OperationType: domain.OperationIn, Quantity: 10, OperationDate: testToday.AddDate(0, 0, -5)},
			{MaterialID: 1, OperationType: domain.OperationOut, Quantity: 4, OperationDate: testToday.AddDate(0, 0, -2)},
		}, nil
	}
	return deps
}

func TestTurnoverReport(t *testing.T) {
	deps := reportDeps()
	var from, to time.Time
	inner := deps.usage.movementsFn
	deps.usage.movementsFn = func(ctx context.Context, userID uuid.UUID, f, tt time.Time) ([]domain.UsageEntry, error) {
		from, to = f, tt
		return inner(ctx, userID, f, tt)
	}
	svc := deps.service(Options{})

	report, err := svc.TurnoverReport(context.Background(), testUserID, 30)
	require.NoError(t, err)

	assert.Equal(t, 30, report.Days)
	assert.Equal(t, testToday.AddDate(0, 0, -30), from)
	assert.Equal(t, testToday, to)
	assert.Equal(t, from, report.From)

	require.Len(t, report.Rows, 1, "materials without movements are omitted")
	row := report.Rows[0]
	assert.Equal(t, "Ethanol", row.Name)
	assert.Equal(t, 10.0, row.Income)
	assert.Equal(t, 4.0, row.Usage)
}

func TestTurnoverReport_InvalidDays(t *testing.T) {
	svc := reportDeps().service(Options{})

	for _, days := range []int{0, -5, MaxReportDays + 1} {
		_, err := svc.TurnoverReport(context.Background(), testUserID, days)
		assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), "days=%d", days)
	}
}

func TestExportTurnoverReport(t *testing.T) {
	deps := reportDeps()
	var exported domain.TurnoverReport
	svc := deps.service(Options{Exporter: &mockExporter{exportFn: func(r domain.TurnoverReport) ([]byte, error) {
		exported = r
		return []byte("xlsx"), nil
	}}})

	report, data, err := svc.ExportTurnoverReport(context.Background(), testUserID, domain.DefaultReportDays)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)
	assert.Equal(t, *report, exported)
}

func TestExportTurnoverReport_ExporterFailure(t *testing.T) {
	svc := reportDeps().service(Options{Exporter: &mockExporter{exportFn: func(domain.TurnoverReport) ([]byte, error) {
		return nil, errors.New("disk full")
	}}})

	_, _, err := svc.ExportTurnoverReport(context.Background(), testUserID, 90)
	assert.True(t, apperrors.IsType(err, apperrors.TypeInternal))
}

func TestExportTurnoverReport_NotConfigured(t *testing.T) {
	svc := reportDeps().service(Options{})

	_, _, err := svc.ExportTurnoverReport(context.Background(), testUserID, 90)
	assert.Error(t, err)
}
