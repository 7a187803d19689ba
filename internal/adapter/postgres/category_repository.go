package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/stockpulse/internal/domain"
)

type CategoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

func (r *CategoryRepo) List(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.user_id, c.name, count(m.id), c.created_at
		FROM categories c
		LEFT JOIN materials m ON m.category_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.MaterialCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, userID uuid.UUID, categoryID int64) (*domain.Category, error) {
	var c domain.Category
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, created_at FROM categories WHERE id = $1 AND user_id = $2`,
		categoryID, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepo) Create(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	var c domain.Category
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (user_id, name) VALUES ($1, $2)
		RETURNING id, user_id, name, created_at`,
		userID, name).Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	if isConstraintViolation(err, codeUniqueViolation, "categories_user_name_key") {
		return nil, domain.ErrDuplicateCategory
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepo) Delete(ctx context.Context, userID uuid.UUID, categoryID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, categoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}
