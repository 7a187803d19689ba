package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a tenant. Every category, material and usage entry belongs to exactly one user.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
	NotifyChatID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username string, passwordHash []byte) (*User, error)
	UpdateNotifyChat(ctx context.Context, userID uuid.UUID, chatID *int64) error
	ListNotifiable(ctx context.Context) ([]User, error)
}
