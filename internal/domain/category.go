package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID            int64
	UserID        uuid.UUID
	Name          string
	MaterialCount int
	CreatedAt     time.Time
}

type CategoryRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]Category, error)
	GetByID(ctx context.Context, userID uuid.UUID, categoryID int64) (*Category, error)
	Create(ctx context.Context, userID uuid.UUID, name string) (*Category, error)
	// Delete removes the category; its materials become uncategorised.
	Delete(ctx context.Context, userID uuid.UUID, categoryID int64) error
}
