package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OperationType string

const (
	OperationIn       OperationType = "IN"
	OperationOut      OperationType = "OUT"
	OperationDisposal OperationType = "DISP"
)

var OperationTypes = []OperationType{OperationIn, OperationOut, OperationDisposal}

func (t OperationType) Valid() bool {
	switch t {
	case OperationIn, OperationOut, OperationDisposal:
		return true
	}
	return false
}

// IsOutflow reports whether the operation reduces stock.
func (t OperationType) IsOutflow() bool {
	return t == OperationOut || t == OperationDisposal
}

func (t OperationType) Label() string {
	switch t {
	case OperationIn:
		return "Inflow"
	case OperationOut:
		return "Outflow"
	case OperationDisposal:
		return "Disposal"
	}
	return string(t)
}

const MaxCommentLength = 1000

// UsageEntry is one logged stock movement.
type UsageEntry struct {
	ID            int64
	MaterialID    int64
	UserID        uuid.UUID
	OperationType OperationType
	Quantity      float64
	OperationDate time.Time
	Comment       string
	CreatedAt     time.Time
}

type Operation struct {
	Type     OperationType
	Quantity float64
	Date     time.Time
	Comment  string
}

// DailyUsage is the summed outflow of a single calendar day.
type DailyUsage struct {
	Date     time.Time
	Quantity float64
}

// ApplyFunc computes the new stock level from the locked current level.
type ApplyFunc func(current float64) (float64, error)

type UsageRepository interface {
	// Record locks the material row, calls apply with its current quantity and, if apply
	// succeeds, stores the new quantity and the usage entry in one transaction.
	Record(ctx context.Context, userID uuid.UUID, materialID int64, op Operation, apply ApplyFunc) (*Material, *UsageEntry, error)
	// History returns the material's entries, newest operation date first.
	History(ctx context.Context, userID uuid.UUID, materialID int64) ([]UsageEntry, error)
	// Movements returns the user's entries with from <= operation_date <= to.
	Movements(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]UsageEntry, error)
	// DailyOutflow sums OUT and DISP quantities per day within [from, to].
	DailyOutflow(ctx context.Context, materialID int64, from, to time.Time) ([]DailyUsage, error)
}
