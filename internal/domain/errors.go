package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrDuplicateArticle   = errors.New("article number already in use")
	ErrDuplicateCategory  = errors.New("category already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
)

// InsufficientStockError reports an outflow larger than the stock on hand.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %g, available %g", e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
