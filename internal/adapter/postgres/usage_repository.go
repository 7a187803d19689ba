package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/stockpulse/internal/domain"
)

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) Record(ctx context.Context, userID uuid.UUID, materialID int64, op domain.Operation, apply domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	material, err := scanMaterial(tx.QueryRow(ctx, materialSelect+`
		WHERE m.id = $1 AND m.user_id = $2
		FOR UPDATE OF m`, materialID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrMaterialNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock material: %w", err)
	}

	newQty, err := apply(material.CurrentQuantity)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.QueryRow(ctx, `
		UPDATE materials SET current_quantity = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`, materialID, newQty).Scan(&material.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("failed to update stock: %w", err)
	}
	material.CurrentQuantity = newQty

	entry := domain.UsageEntry{
		MaterialID:    materialID,
		UserID:        userID,
		OperationType: op.Type,
		Quantity:      op.Quantity,
		OperationDate: op.Date,
		Comment:       op.Comment,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO usage_history (material_id, user_id, operation_type, quantity, operation_date, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, operation_date, created_at`,
		materialID, userID, string(op.Type), op.Quantity, op.Date, op.Comment,
	).Scan(&entry.ID, &entry.OperationDate, &entry.CreatedAt); err != nil {
		return nil, nil, fmt.Errorf("failed to insert usage entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return material, &entry, nil
}

const usageSelect = `
	SELECT h.id, h.material_id, h.user_id, h.operation_type, h.quantity, h.operation_date, h.comment, h.created_at
	FROM usage_history h
	JOIN materials m ON m.id = h.material_id`

func (r *UsageRepo) History(ctx context.Context, userID uuid.UUID, materialID int64) ([]domain.UsageEntry, error) {
	return r.queryEntries(ctx, usageSelect+`
		WHERE m.user_id = $1 AND h.material_id = $2
		ORDER BY h.operation_date DESC, h.id DESC`, userID, materialID)
}

func (r *UsageRepo) Movements(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.UsageEntry, error) {
	return r.queryEntries(ctx, usageSelect+`
		WHERE m.user_id = $1 AND h.operation_date BETWEEN $2::date AND $3::date
		ORDER BY h.operation_date, h.id`, userID, from, to)
}

func (r *UsageRepo) queryEntries(ctx context.Context, query string, args ...any) ([]domain.UsageEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}
	defer rows.Close()

	var entries []domain.UsageEntry
	for rows.Next() {
		var (
			e      domain.UsageEntry
			actor  *uuid.UUID
			opType string
		)
		if err := rows.Scan(&e.ID, &e.MaterialID, &actor, &opType, &e.Quantity, &e.OperationDate, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage entry: %w", err)
		}
		if actor != nil {
			e.UserID = *actor
		}
		e.OperationType = domain.OperationType(opType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage history: %w", err)
	}
	return entries, nil
}

func (r *UsageRepo) DailyOutflow(ctx context.Context, materialID int64, from, to time.Time) ([]domain.DailyUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT operation_date, SUM(quantity)
		FROM usage_history
		WHERE material_id = $1
		  AND operation_type IN ('OUT', 'DISP')
		  AND operation_date BETWEEN $2::date AND $3::date
		GROUP BY operation_date
		ORDER BY operation_date`, materialID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily outflow: %w", err)
	}
	defer rows.Close()

	var usage []domain.DailyUsage
	for rows.Next() {
		var d domain.DailyUsage
		if err := rows.Scan(&d.Date, &d.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan daily outflow: %w", err)
		}
		usage = append(usage, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily outflow: %w", err)
	}
	return usage, nil
}
