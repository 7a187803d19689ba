package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/stockpulse/internal/domain"
)

type MaterialRepo struct {
	pool *pgxpool.Pool
}

func NewMaterialRepo(pool *pgxpool.Pool) *MaterialRepo {
	return &MaterialRepo{pool: pool}
}

const materialSelect = `
	SELECT m.id, m.user_id, m.category_id, COALESCE(c.name, ''), m.name, m.article_number, m.unit,
	       m.current_quantity, m.min_threshold, m.expiration_date, m.created_at, m.updated_at
	FROM materials m
	LEFT JOIN categories c ON c.id = m.category_id`

func scanMaterial(row pgx.Row) (*domain.Material, error) {
	var (
		m       domain.Material
		article *string
		unit    string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.CategoryID, &m.CategoryName, &m.Name, &article, &unit,
		&m.CurrentQuantity, &m.MinThreshold, &m.ExpirationDate, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if article != nil {
		m.ArticleNumber = *article
	}
	m.Unit = domain.Unit(unit)
	return &m, nil
}

func (r *MaterialRepo) List(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) ([]domain.Material, error) {
	query, args := buildListQuery(userID, filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate materials: %w", err)
	}
	return materials, nil
}

func buildListQuery(userID uuid.UUID, f domain.MaterialFilter) (string, []any) {
	var (
		sb   strings.Builder
		args = []any{userID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString(materialSelect)
	sb.WriteString(" WHERE m.user_id = $1")

	if search := strings.TrimSpace(f.Search); search != "" {
		p := arg("%" + escapeLike(search) + "%")
		sb.WriteString(" AND (m.name ILIKE " + p + " OR m.article_number ILIKE " + p + ")")
	}
	if f.CategoryID != nil {
		sb.WriteString(" AND m.category_id = " + arg(*f.CategoryID))
	}

	today := f.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}
	switch f.Expiry {
	case domain.ExpiryExpired:
		sb.WriteString(" AND m.expiration_date < " + arg(today) + "::date")
	case domain.ExpiryExpiresSoon:
		soon := f.SoonDays
		if soon <= 0 {
			soon = 30
		}
		sb.WriteString(" AND m.expiration_date BETWEEN " + arg(today) + "::date AND " + arg(today.AddDate(0, 0, soon)) + "::date")
	case domain.ExpiryNone:
		sb.WriteString(" AND m.expiration_date IS NULL")
	}

	sb.WriteString(" ORDER BY m.name, m.id")
	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *MaterialRepo) GetByID(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, materialSelect+` WHERE m.id = $1 AND m.user_id = $2`, materialID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMaterialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

func (r *MaterialRepo) Create(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO materials (user_id, category_id, name, article_number, unit, current_quantity, min_threshold, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		userID, in.CategoryID, in.Name, nullableString(in.ArticleNumber), string(in.Unit),
		in.CurrentQuantity, in.MinThreshold, in.ExpirationDate).Scan(&id)
	if err := mapWriteError(err); err != nil {
		return nil, fmt.Errorf("failed to create material: %w", err)
	}
	return r.GetByID(ctx, userID, id)
}

func (r *MaterialRepo) Update(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE materials
		SET category_id = $3, name = $4, article_number = $5, unit = $6,
		    current_quantity = $7, min_threshold = $8, expiration_date = $9, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		materialID, userID, in.CategoryID, in.Name, nullableString(in.ArticleNumber), string(in.Unit),
		in.CurrentQuantity, in.MinThreshold, in.ExpirationDate)
	if err := mapWriteError(err); err != nil {
		return nil, fmt.Errorf("failed to update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrMaterialNotFound
	}
	return r.GetByID(ctx, userID, materialID)
}

func (r *MaterialRepo) Delete(ctx context.Context, userID uuid.UUID, materialID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id = $1 AND user_id = $2`, materialID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMaterialNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case isConstraintViolation(err, codeUniqueViolation, "materials_user_article_idx"):
		return domain.ErrDuplicateArticle
	case isConstraintViolation(err, codeForeignKeyViolation, "materials_category_id_fkey"):
		return domain.ErrCategoryNotFound
	}
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
