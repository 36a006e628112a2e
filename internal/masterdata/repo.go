package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("masterdata: not found")

// ErrDuplicateCode indicates a code collision inside the same scope.
var ErrDuplicateCode = errors.New("masterdata: code already in use")

// Repository defines persistence operations for master data.
type Repository interface {
	ListOrganizations(ctx context.Context, filters ListFilters) ([]Organization, int, error)
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	UpdateOrganization(ctx context.Context, id int64, org Organization) error
	DeleteOrganization(ctx context.Context, id int64) error

	ListDepartments(ctx context.Context, filters ListFilters) ([]Department, int, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	CreateDepartment(ctx context.Context, dept Department) (Department, error)
	UpdateDepartment(ctx context.Context, id int64, dept Department) error
	DeleteDepartment(ctx context.Context, id int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ListOrganizations(ctx context.Context, filters ListFilters) ([]Organization, int, error) {
	limit, offset := clampPage(filters.Limit, filters.Offset)
	pattern := "%" + filters.Query + "%"
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM organizations WHERE ($1 = '%%' OR name ILIKE $1 OR code ILIKE $1)`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, code, COALESCE(address, ''), is_active, created_at, updated_at FROM organizations WHERE ($1 = '%%' OR name ILIKE $1 OR code ILIKE $1) ORDER BY name LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Code, &org.Address, &org.IsActive, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, org)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	var org Organization
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, COALESCE(address, ''), is_active, created_at, updated_at FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.Code, &org.Address, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

func (r *PGRepository) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO organizations (name, code, address, is_active) VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id, created_at, updated_at`, org.Name, org.Code, org.Address, org.IsActive).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return Organization{}, mapConstraint(err, "uq_organizations_code")
	}
	return org, nil
}

func (r *PGRepository) UpdateOrganization(ctx context.Context, id int64, org Organization) error {
	tag, err := r.pool.Exec(ctx, `UPDATE organizations SET name = $2, code = $3, address = NULLIF($4, ''), is_active = $5, updated_at = NOW() WHERE id = $1`, id, org.Name, org.Code, org.Address, org.IsActive)
	if err != nil {
		return mapConstraint(err, "uq_organizations_code")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteOrganization(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListDepartments(ctx context.Context, filters ListFilters) ([]Department, int, error) {
	limit, offset := clampPage(filters.Limit, filters.Offset)
	pattern := "%" + filters.Query + "%"
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM departments WHERE ($1 = 0 OR organization_id = $1) AND ($2 = '%%' OR name ILIKE $2 OR code ILIKE $2)`, filters.OrganizationID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, organization_id, name, code, is_active, created_at, updated_at FROM departments WHERE ($1 = 0 OR organization_id = $1) AND ($2 = '%%' OR name ILIKE $2 OR code ILIKE $2) ORDER BY name LIMIT $3 OFFSET $4`, filters.OrganizationID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.OrganizationID, &dept.Name, &dept.Code, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, dept)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	var dept Department
	err := r.pool.QueryRow(ctx, `SELECT id, organization_id, name, code, is_active, created_at, updated_at FROM departments WHERE id = $1`, id).
		Scan(&dept.ID, &dept.OrganizationID, &dept.Name, &dept.Code, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return dept, nil
}

func (r *PGRepository) CreateDepartment(ctx context.Context, dept Department) (Department, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO departments (organization_id, name, code, is_active) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`, dept.OrganizationID, dept.Name, dept.Code, dept.IsActive).
		Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
	if err != nil {
		return Department{}, mapConstraint(err, "uq_departments_org_code")
	}
	return dept, nil
}

func (r *PGRepository) UpdateDepartment(ctx context.Context, id int64, dept Department) error {
	tag, err := r.pool.Exec(ctx, `UPDATE departments SET organization_id = $2, name = $3, code = $4, is_active = $5, updated_at = NOW() WHERE id = $1`, id, dept.OrganizationID, dept.Name, dept.Code, dept.IsActive)
	if err != nil {
		return mapConstraint(err, "uq_departments_org_code")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteDepartment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func mapConstraint(err error, constraint string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == constraint {
		return ErrDuplicateCode
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
