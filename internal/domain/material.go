package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Unit string

const (
	UnitPieces    Unit = "pcs"
	UnitKilograms Unit = "kg"
	UnitLiters    Unit = "l"
	UnitMeters    Unit = "m"
)

var Units = []Unit{UnitPieces, UnitKilograms, UnitLiters, UnitMeters}

func (u Unit) Valid() bool {
	switch u {
	case UnitPieces, UnitKilograms, UnitLiters, UnitMeters:
		return true
	}
	return false
}

func (u Unit) Label() string {
	switch u {
	case UnitPieces:
		return "pcs."
	case UnitKilograms:
		return "kg"
	case UnitLiters:
		return "l"
	case UnitMeters:
		return "m"
	}
	return string(u)
}

const (
	DefaultUnit         = UnitPieces
	DefaultMinThreshold = 10.0
	MaxNameLength       = 200
	MaxArticleLength    = 50
)

type Material struct {
	ID              int64
	UserID          uuid.UUID
	CategoryID      *int64
	CategoryName    string
	Name            string
	ArticleNumber   string // empty when unset
	Unit            Unit
	CurrentQuantity float64
	MinThreshold    float64
	ExpirationDate  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MaterialInput carries the editable fields of a material.
type MaterialInput struct {
	Name            string
	ArticleNumber   string
	CategoryID      *int64
	Unit            Unit
	CurrentQuantity float64
	MinThreshold    float64
	ExpirationDate  *time.Time
}

type ExpiryFilter string

const (
	ExpiryAny         ExpiryFilter = ""
	ExpiryExpired     ExpiryFilter = "expired"
	ExpiryExpiresSoon ExpiryFilter = "expires_soon"
	ExpiryNone        ExpiryFilter = "no_expiry"
)

// ParseExpiryFilter maps unknown values to ExpiryAny.
func ParseExpiryFilter(s string) ExpiryFilter {
	switch f := ExpiryFilter(s); f {
	case ExpiryExpired, ExpiryExpiresSoon, ExpiryNone:
		return f
	}
	return ExpiryAny
}

// MaterialFilter narrows a material listing. Today anchors the expiry windows.
type MaterialFilter struct {
	Search     string
	CategoryID *int64
	Expiry     ExpiryFilter
	Today      time.Time
	SoonDays   int
}

type MaterialRepository interface {
	// List returns the user's materials matching filter, ordered by name.
	List(ctx context.Context, userID uuid.UUID, filter MaterialFilter) ([]Material, error)
	GetByID(ctx context.Context, userID uuid.UUID, materialID int64) (*Material, error)
	Create(ctx context.Context, userID uuid.UUID, in MaterialInput) (*Material, error)
	Update(ctx context.Context, userID uuid.UUID, materialID int64, in MaterialInput) (*Material, error)
	// Delete removes the material and its usage history.
	Delete(ctx context.Context, userID uuid.UUID, materialID int64) error
}
