package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pscheid92/stockpulse/internal/domain"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

const maxCategoryNameLength = 100

func (s *Service) ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx, userID)
	if err != nil {
		return nil, mapError(err, "failed to list categories")
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)

	fields := apperrors.FieldErrors{}
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		fields.Add("name", msgRequired)
	case n > maxCategoryNameLength:
		fields.Add("name", "Ensure this value has at most 100 characters.")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	category, err := s.categories.Create(ctx, userID, name)
	if err != nil {
		return nil, mapError(err, "failed to create category")
	}
	return category, nil
}

// DeleteCategory removes the category. Its materials stay, uncategorised.
func (s *Service) DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID int64) error {
	if err := s.categories.Delete(ctx, userID, categoryID); err != nil {
		return mapError(err, "failed to delete category")
	}
	return nil
}
