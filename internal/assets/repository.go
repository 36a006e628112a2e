package assets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the record does not exist.
var ErrNotFound = errors.New("assets: not found")

// ErrDuplicateTag indicates an inventory tag collision.
var ErrDuplicateTag = errors.New("assets: tag already in use")

// Repository provides PostgreSQL backed persistence for the asset registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM asset_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	var cat Category
	err := r.pool.QueryRow(ctx, `INSERT INTO asset_categories (name, description) VALUES ($1, NULLIF($2, '')) RETURNING id, name, COALESCE(description, ''), created_at, updated_at`, name, description).
		Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		return Category{}, err
	}
	return cat, nil
}

// DeleteCategory removes an empty category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM asset_categories WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM assets WHERE category_id = $1)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const assetColumns = `id, tag, name, category_id, department_id, COALESCE(serial_number, ''), status, COALESCE(note, ''), created_at, updated_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var asset Asset
	err := row.Scan(&asset.ID, &asset.Tag, &asset.Name, &asset.CategoryID, &asset.DepartmentID, &asset.SerialNumber, &asset.Status, &asset.Note, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, err
	}
	return asset, nil
}

// List returns a filtered page of assets with the matching total.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Asset, int, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + filters.Query + "%"
	where := ` WHERE ($1 = '%%' OR name ILIKE $1 OR tag ILIKE $1 OR serial_number ILIKE $1)
		AND ($2 = 0 OR category_id = $2)
		AND ($3 = 0 OR department_id = $3)
		AND ($4 = '' OR status = $4)`
	args := []any{pattern, filters.CategoryID, filters.DepartmentID, string(filters.Status)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets`+where+` ORDER BY tag LIMIT $5 OFFSET $6`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, asset)
	}
	return out, total, rows.Err()
}

// Get returns one asset.
func (r *Repository) Get(ctx context.Context, id int64) (Asset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
}

// Create inserts an asset.
func (r *Repository) Create(ctx context.Context, asset Asset) (Asset, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO assets (tag, name, category_id, department_id, serial_number, status, note)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, '')) RETURNING `+assetColumns,
		asset.Tag, asset.Name, asset.CategoryID, asset.DepartmentID, asset.SerialNumber, string(asset.Status), asset.Note)
	created, err := scanAsset(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_assets_tag" {
			return Asset{}, ErrDuplicateTag
		}
		return Asset{}, err
	}
	return created, nil
}

// Update changes descriptive fields, not status.
func (r *Repository) Update(ctx context.Context, id int64, name string, categoryID int64, serialNumber, note string) (Asset, error) {
	row := r.pool.QueryRow(ctx, `UPDATE assets SET name = $2, category_id = $3, serial_number = NULLIF($4, ''), note = NULLIF($5, ''), updated_at = NOW() WHERE id = $1 RETURNING `+assetColumns,
		id, name, categoryID, serialNumber, note)
	return scanAsset(row)
}

// SetStatus moves the asset through its lifecycle. The expected current
// status is part of the predicate so two concurrent transitions cannot both
// succeed.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to Status, departmentID *int64) (Asset, error) {
	row := r.pool.QueryRow(ctx, `UPDATE assets SET status = $3, department_id = $4, updated_at = NOW() WHERE id = $1 AND status = $2 RETURNING `+assetColumns,
		id, string(from), string(to), departmentID)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Asset{}, ErrInvalidTransition
		}
		return Asset{}, err
	}
	return asset, nil
}

// Delete removes an asset record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
