package app

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

// OperationInput is a stock movement as entered by the user. A zero Type means
// OUT and a nil Date means today.
type OperationInput struct {
	Type     domain.OperationType
	Quantity float64
	Date     *time.Time
	Comment  string
}

// LogOperation applies the movement to the material's stock and records it in the
// usage history, atomically. Outflows larger than the stock on hand are rejected
// with a quantity field error and change nothing.
func (s *Service) LogOperation(ctx context.Context, userID uuid.UUID, materialID int64, in OperationInput) (*domain.Material, error) {
	op, err := s.validateOperation(in)
	if err != nil {
		return nil, err
	}

	material, _, err := s.usage.Record(ctx, userID, materialID, op, func(current float64) (float64, error) {
		return inventory.ApplyOperation(current, op.Type, op.Quantity)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.InsufficientStock.Inc()
		}
		return nil, mapError(err, "failed to log operation")
	}

	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(string(op.Type)).Inc()
	}
	s.invalidateForecast(ctx, materialID)

	slog.InfoContext(ctx, "Stock operation logged",
		"material_id", materialID,
		"type", op.Type,
		"quantity", op.Quantity,
		"stock", material.CurrentQuantity,
	)
	return material, nil
}

func (s *Service) validateOperation(in OperationInput) (domain.Operation, error) {
	op := domain.Operation{
		Type:     in.Type,
		Quantity: in.Quantity,
		Comment:  strings.TrimSpace(in.Comment),
		Date:     s.today(),
	}
	if op.Type == "" {
		op.Type = domain.OperationOut
	}
	if in.Date != nil {
		op.Date = inventory.DateOf(*in.Date)
	}

	fields := apperrors.FieldErrors{}
	if !op.Type.Valid() {
		fields.Add("operation_type", msgInvalidChoice)
	}
	switch {
	case math.IsNaN(op.Quantity) || math.IsInf(op.Quantity, 0):
		fields.Add("quantity", msgNotFiniteValue)
	case op.Quantity <= 0:
		fields.Add("quantity", msgPositive)
	}
	if utf8.RuneCountInString(op.Comment) > domain.MaxCommentLength {
		fields.Add("comment", "Ensure this value has at most 1000 characters.")
	}
	return op, fields.Err()
}

// MaterialHistory returns the material and its usage entries, newest first.
func (s *Service) MaterialHistory(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, []domain.UsageEntry, error) {
	material, err := s.getMaterial(ctx, userID, materialID)
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.usage.History(ctx, userID, materialID)
	if err != nil {
		return nil, nil, mapError(err, "failed to load usage history")
	}
	return material, entries, nil
}
