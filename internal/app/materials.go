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

const (
	msgRequired       = "This field is required."
	msgInvalidChoice  = "Select a valid choice. That choice is not one of the available choices."
	msgNotNegative    = "Ensure this value is greater than or equal to 0."
	msgPositive       = "Ensure this value is greater than 0."
	msgNotFiniteValue = "Enter a number."
)

// MaterialList is the filtered material listing with per-row status and the
// counters over the filtered rows.
type MaterialList struct {
	Rows       []inventory.Row
	Summary    inventory.Summary
	Categories []domain.Category
	Filter     domain.MaterialFilter
	Today      time.Time
}

func (s *Service) ListMaterials(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) (*MaterialList, error) {
	today := s.today()
	filter.Today = today
	filter.SoonDays = inventory.SoonDays
	filter.Search = strings.TrimSpace(filter.Search)

	materials, err := s.materials.List(ctx, userID, filter)
	if err != nil {
		return nil, mapError(err, "failed to list materials")
	}
	categories, err := s.categories.List(ctx, userID)
	if err != nil {
		return nil, mapError(err, "failed to list categories")
	}

	rows := inventory.ClassifyAll(materials, today)
	return &MaterialList{
		Rows:       rows,
		Summary:    inventory.Summarize(rows),
		Categories: categories,
		Filter:     filter,
		Today:      today,
	}, nil
}

func (s *Service) GetMaterial(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error) {
	return s.getMaterial(ctx, userID, materialID)
}

func (s *Service) CreateMaterial(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error) {
	in, err := s.validateMaterial(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	m, err := s.materials.Create(ctx, userID, in)
	if err != nil {
		return nil, mapError(err, "failed to create material")
	}
	slog.InfoContext(ctx, "Material created", "material_id", m.ID)
	return m, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error) {
	in, err := s.validateMaterial(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	m, err := s.materials.Update(ctx, userID, materialID, in)
	if err != nil {
		return nil, mapError(err, "failed to update material")
	}
	s.invalidateForecast(ctx, materialID)
	return m, nil
}

// DeleteMaterial removes the material together with its usage history.
func (s *Service) DeleteMaterial(ctx context.Context, userID uuid.UUID, materialID int64) error {
	if err := s.materials.Delete(ctx, userID, materialID); err != nil {
		return mapError(err, "failed to delete material")
	}
	s.invalidateForecast(ctx, materialID)
	slog.InfoContext(ctx, "Material deleted", "material_id", materialID)
	return nil
}

// validateMaterial normalises in and collects every field error. The category
// must belong to the same user.
func (s *Service) validateMaterial(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (domain.MaterialInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ArticleNumber = strings.TrimSpace(in.ArticleNumber)
	if in.Unit == "" {
		in.Unit = domain.DefaultUnit
	}
	if in.ExpirationDate != nil {
		d := inventory.DateOf(*in.ExpirationDate)
		in.ExpirationDate = &d
	}

	fields := apperrors.FieldErrors{}
	switch n := utf8.RuneCountInString(in.Name); {
	case n == 0:
		fields.Add("name", msgRequired)
	case n > domain.MaxNameLength:
		fields.Add("name", "Ensure this value has at most 200 characters.")
	}
	if utf8.RuneCountInString(in.ArticleNumber) > domain.MaxArticleLength {
		fields.Add("article_number", "Ensure this value has at most 50 characters.")
	}
	if !in.Unit.Valid() {
		fields.Add("unit", msgInvalidChoice)
	}
	validateAmount(fields, "current_quantity", in.CurrentQuantity)
	validateAmount(fields, "min_threshold", in.MinThreshold)

	if in.CategoryID != nil {
		_, err := s.categories.GetByID(ctx, userID, *in.CategoryID)
		switch {
		case errors.Is(err, domain.ErrCategoryNotFound):
			fields.Add("category", msgInvalidChoice)
		case err != nil:
			return in, mapError(err, "failed to load category")
		}
	}

	return in, fields.Err()
}

func validateAmount(fields apperrors.FieldErrors, field string, v float64) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		fields.Add(field, msgNotFiniteValue)
	case v < 0:
		fields.Add(field, msgNotNegative)
	}
}

// invalidateForecast drops cached forecasts. Errors are logged; stale entries
// still expire after the cache TTL.
func (s *Service) invalidateForecast(ctx context.Context, materialID int64) {
	if err := s.cache.Invalidate(ctx, materialID); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate forecast cache", "material_id", materialID, "error", err)
	}
}
