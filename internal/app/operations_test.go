package app

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/domain"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

// recordAgainst makes Record behave like the repository: apply runs against stock
// and the resulting material is returned.
func recordAgainst(stock *float64, gotOp *domain.Operation) func(context.Context, uuid.UUID, int64, domain.Operation, domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
	return func(_ context.Context, userID uuid.UUID, materialID int64, op domain.Operation, apply domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
		if gotOp != nil {
			*gotOp = op
		}
		next, err := apply(*stock)
		if err != nil {
			return nil, nil, err
		}
		*stock = next
		return &domain.Material{ID: materialID, UserID: userID, CurrentQuantity: next},
			&domain.UsageEntry{MaterialID: materialID, OperationType: op.Type, Quantity: op.Quantity}, nil
	}
}

func TestLogOperation_AppliesAndRecords(t *testing.T) {
	deps := newTestDeps()
	stock := 10.0
	var got domain.Operation
	deps.usage.recordFn = recordAgainst(&stock, &got)
	m := metrics.NewInventoryMetrics(prometheus.NewRegistry())
	svc := deps.service(Options{Metrics: m})

	material, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{
		Type:     domain.OperationIn,
		Quantity: 2.5,
		Comment:  "  delivery ",
	})
	require.NoError(t, err)

	assert.Equal(t, 12.5, material.CurrentQuantity)
	assert.Equal(t, testToday, got.Date)
	assert.Equal(t, "delivery", got.Comment)
	assert.Equal(t, []int64{4}, deps.cache.invalidations())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("IN")))
}

func TestLogOperation_DefaultsToOutflow(t *testing.T) {
	deps := newTestDeps()
	stock := 10.0
	var got domain.Operation
	deps.usage.recordFn = recordAgainst(&stock, &got)
	svc := deps.service(Options{})

	material, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationOut, got.Type)
	assert.Equal(t, 6.0, material.CurrentQuantity)
}

func TestLogOperation_ExplicitDateIsTruncated(t *testing.T) {
	deps := newTestDeps()
	stock := 10.0
	var got domain.Operation
	deps.usage.recordFn = recordAgainst(&stock, &got)
	svc := deps.service(Options{})

	date := time.Date(2026, 2, 1, 18, 45, 0, 0, time.UTC)
	_, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{Type: domain.OperationDisposal, Quantity: 1, Date: &date})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestLogOperation_InsufficientStock(t *testing.T) {
	deps := newTestDeps()
	stock := 10.0
	deps.usage.recordFn = recordAgainst(&stock, nil)
	m := metrics.NewInventoryMetrics(prometheus.NewRegistry())
	svc := deps.service(Options{Metrics: m})

	_, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{Type: domain.OperationOut, Quantity: 11})

	fields := fieldErrors(t, err)
	assert.Equal(t, "Insufficient stock. Available: 10", fields["quantity"])
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10.0, stock, "stock must be unchanged")
	assert.Empty(t, deps.cache.invalidations())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsufficientStock))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Operations.WithLabelValues("OUT")))
}

func TestLogOperation_ExactStockLeavesZero(t *testing.T) {
	deps := newTestDeps()
	stock := 10.0
	deps.usage.recordFn = recordAgainst(&stock, nil)
	svc := deps.service(Options{})

	material, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{Type: domain.OperationOut, Quantity: 10})
	require.NoError(t, err)
	assert.Zero(t, material.CurrentQuantity)
}

func TestLogOperation_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        OperationInput
		wantField string
	}{
		{"zero quantity", OperationInput{Type: domain.OperationIn, Quantity: 0}, "quantity"},
		{"negative quantity", OperationInput{Type: domain.OperationIn, Quantity: -1}, "quantity"},
		{"NaN quantity", OperationInput{Type: domain.OperationIn, Quantity: math.NaN()}, "quantity"},
		{"unknown type", OperationInput{Type: "MOVE", Quantity: 1}, "operation_type"},
		{"long comment", OperationInput{Type: domain.OperationIn, Quantity: 1, Comment: strings.Repeat("c", 1001)}, "comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.usage.recordFn = func(context.Context, uuid.UUID, int64, domain.Operation, domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
				t.Fatal("Record must not be called for invalid input")
				return nil, nil, nil
			}
			svc := deps.service(Options{})

			_, err := svc.LogOperation(context.Background(), testUserID, 4, tt.in)
			assert.Contains(t, fieldErrors(t, err), tt.wantField)
		})
	}
}

func TestLogOperation_ForeignMaterial(t *testing.T) {
	deps := newTestDeps()
	deps.usage.recordFn = func(context.Context, uuid.UUID, int64, domain.Operation, domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
		return nil, nil, domain.ErrMaterialNotFound
	}
	svc := deps.service(Options{})

	_, err := svc.LogOperation(context.Background(), testUserID, 4, OperationInput{Type: domain.OperationIn, Quantity: 1})
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestMaterialHistory(t *testing.T) {
	deps := newTestDeps()
	deps.materials.getByIDFn = func(_ context.Context, _ uuid.UUID, id int64) (*domain.Material, error) {
		return &domain.Material{ID: id, Name: "Ethanol"}, nil
	}
	deps.usage.historyFn = func(_ context.Context, _ uuid.UUID, id int64) ([]domain.UsageEntry, error) {
		return []domain.UsageEntry{{ID: 2, MaterialID: id}, {ID: 1, MaterialID: id}}, nil
	}
	svc := deps.service(Options{})

	material, entries, err := svc.MaterialHistory(context.Background(), testUserID, 4)
	require.NoError(t, err)
	assert.Equal(t, "Ethanol", material.Name)
	assert.Len(t, entries, 2)
}

func TestMaterialHistory_ForeignMaterial(t *testing.T) {
	deps := newTestDeps()
	deps.usage.historyFn = func(context.Context, uuid.UUID, int64) ([]domain.UsageEntry, error) {
		t.Fatal("history must not load for a foreign material")
		return nil, nil
	}
	svc := deps.service(Options{})

	_, _, err := svc.MaterialHistory(context.Background(), testUserID, 4)
	require.Error(t, err)
}
