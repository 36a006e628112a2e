package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/depot-aim/depot-aim/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrDuplicateName indicates a role or right name collision.
var ErrDuplicateName = errors.New("rbac: name already in use")

// ErrInvalidInput indicates a request the store refuses to act on.
var ErrInvalidInput = errors.New("rbac: invalid input")

// Repository provides PostgreSQL backed persistence for the RBAC core.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles in insertion order.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), parent_id, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.ParentID, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(description, ''), parent_id, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.ParentID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string, parentID *int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, description, parent_id) VALUES ($1, $2, $3) RETURNING id, name, COALESCE(description, ''), parent_id, created_at, updated_at`, name, description, parentID).
		Scan(&role.ID, &role.Name, &role.Description, &role.ParentID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_roles_name" {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates name, description and parent of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string, parentID *int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, parent_id = $4, updated_at = NOW() WHERE id = $1 RETURNING id, name, COALESCE(description, ''), parent_id, created_at, updated_at`, id, name, description, parentID).
		Scan(&role.ID, &role.Name, &role.Description, &role.ParentID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role by id.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRights returns all rights.
func (r *Repository) ListRights(ctx context.Context) ([]Right, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM rights ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rights []Right
	for rows.Next() {
		var right Right
		if err := rows.Scan(&right.ID, &right.Name, &right.Description, &right.CreatedAt, &right.UpdatedAt); err != nil {
			return nil, err
		}
		rights = append(rights, right)
	}
	return rights, rows.Err()
}

// CreateRight inserts a new right.
func (r *Repository) CreateRight(ctx context.Context, name, description string) (Right, error) {
	var right Right
	err := r.pool.QueryRow(ctx, `INSERT INTO rights (name, description) VALUES ($1, $2) RETURNING id, name, COALESCE(description, ''), created_at, updated_at`, name, description).
		Scan(&right.ID, &right.Name, &right.Description, &right.CreatedAt, &right.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_rights_name" {
			return Right{}, ErrDuplicateName
		}
		return Right{}, err
	}
	return right, nil
}

// UpdateRight updates an existing right.
func (r *Repository) UpdateRight(ctx context.Context, id int64, name, description string) (Right, error) {
	var right Right
	err := r.pool.QueryRow(ctx, `UPDATE rights SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING id, name, COALESCE(description, ''), created_at, updated_at`, id, name, description).
		Scan(&right.ID, &right.Name, &right.Description, &right.CreatedAt, &right.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Right{}, ErrNotFound
		}
		return Right{}, err
	}
	return right, nil
}

// DeleteRight removes a right by id.
func (r *Repository) DeleteRight(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAssignments returns the full role→right mapping.
func (r *Repository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, right_id, created_at FROM role_rights ORDER BY role_id, right_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.RoleID, &a.RightID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Grant inserts a single assignment. It reports false when the role already
// held the right; that is a no-op success, not an error.
func (r *Repository) Grant(ctx context.Context, roleID, rightID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO role_rights (role_id, right_id) VALUES ($1, $2) ON CONFLICT (role_id, right_id) DO NOTHING`, roleID, rightID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Revoke removes a single assignment. It reports false when the role did not
// hold the right.
func (r *Repository) Revoke(ctx context.Context, roleID, rightID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_rights WHERE role_id = $1 AND right_id = $2`, roleID, rightID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BulkApply grants or revokes rightID for every role in roleIDs inside one
// transaction. It returns exactly the ids whose assignment transitioned;
// roles already in the desired state are skipped. On error the transaction
// rolls back and no id changed.
func (r *Repository) BulkApply(ctx context.Context, roleIDs []int64, rightID int64, action Action) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var updated []int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, roleID := range roleIDs {
			var changed bool
			switch action {
			case ActionGrant:
				tag, err := tx.Exec(ctx, `INSERT INTO role_rights (role_id, right_id) VALUES ($1, $2) ON CONFLICT (role_id, right_id) DO NOTHING`, roleID, rightID)
				if err != nil {
					return err
				}
				changed = tag.RowsAffected() > 0
			case ActionRevoke:
				tag, err := tx.Exec(ctx, `DELETE FROM role_rights WHERE role_id = $1 AND right_id = $2`, roleID, rightID)
				if err != nil {
					return err
				}
				changed = tag.RowsAffected() > 0
			default:
				return fmt.Errorf("rbac: unknown bulk action %q", action)
			}
			if changed {
				updated = append(updated, roleID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListPages returns the page catalog with required-right ids attached.
func (r *Repository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, path, COALESCE(name, ''), COALESCE(description, '') FROM pages ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Page
	index := make(map[int64]int)
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.ID, &page.Path, &page.Name, &page.Description); err != nil {
			return nil, err
		}
		index[page.ID] = len(pages)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rightRows, err := r.pool.Query(ctx, `SELECT page_id, right_id FROM page_rights ORDER BY page_id, right_id`)
	if err != nil {
		return nil, err
	}
	defer rightRows.Close()
	for rightRows.Next() {
		var pageID, rightID int64
		if err := rightRows.Scan(&pageID, &rightID); err != nil {
			return nil, err
		}
		if i, ok := index[pageID]; ok {
			pages[i].RequiredRights = append(pages[i].RequiredRights, rightID)
		}
	}
	return pages, rightRows.Err()
}

// CreatePage inserts a page with its required rights in one transaction.
func (r *Repository) CreatePage(ctx context.Context, path, name, description string, rightIDs []int64) (Page, error) {
	var page Page
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO pages (path, name, description) VALUES ($1, $2, $3) RETURNING id, path, COALESCE(name, ''), COALESCE(description, '')`, path, name, description).
			Scan(&page.ID, &page.Path, &page.Name, &page.Description); err != nil {
			return err
		}
		for _, rightID := range rightIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO page_rights (page_id, right_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, page.ID, rightID); err != nil {
				return err
			}
			page.RequiredRights = append(page.RequiredRights, rightID)
		}
		return nil
	})
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_pages_path" {
			return Page{}, ErrDuplicateName
		}
		return Page{}, err
	}
	return page, nil
}

// UpdatePage replaces a page's metadata and required-rights set.
func (r *Repository) UpdatePage(ctx context.Context, id int64, name, description string, rightIDs []int64) (Page, error) {
	var page Page
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `UPDATE pages SET name = $2, description = $3 WHERE id = $1 RETURNING id, path, COALESCE(name, ''), COALESCE(description, '')`, id, name, description).
			Scan(&page.ID, &page.Path, &page.Name, &page.Description); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM page_rights WHERE page_id = $1`, id); err != nil {
			return err
		}
		for _, rightID := range rightIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO page_rights (page_id, right_id) VALUES ($1, $2)`, id, rightID); err != nil {
				return err
			}
			page.RequiredRights = append(page.RequiredRights, rightID)
		}
		return nil
	})
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

// DeletePage removes a page from the catalog.
func (r *Repository) DeletePage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UserByID loads the identity facts the evaluator needs: system flag and
// role memberships.
func (r *Repository) UserByID(ctx context.Context, id int64) (User, error) {
	user := User{ID: id}
	err := r.pool.QueryRow(ctx, `SELECT is_system FROM users WHERE id = $1`, id).Scan(&user.IsSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, id)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID int64
		if err := rows.Scan(&roleID); err != nil {
			return User{}, err
		}
		user.RoleIDs = append(user.RoleIDs, roleID)
	}
	return user, rows.Err()
}

// EffectiveRightIDs computes the union of direct assignments across the
// user's roles in a single query.
func (r *Repository) EffectiveRightIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT rr.right_id FROM user_roles ur JOIN role_rights rr ON rr.role_id = ur.role_id WHERE ur.user_id = $1 ORDER BY rr.right_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rights []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		rights = append(rights, id)
	}
	return rights, rows.Err()
}

// ActiveUserIDs returns users with a live session, for rights cache warming.
func (r *Repository) ActiveUserIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM sessions WHERE expires_at > NOW() LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DanglingCounts reports assignments and roles referencing ids that no
// longer resolve. Used by the periodic integrity scan.
func (r *Repository) DanglingCounts(ctx context.Context) (assignments int64, parents int64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM role_rights rr LEFT JOIN roles ro ON ro.id = rr.role_id LEFT JOIN rights ri ON ri.id = rr.right_id WHERE ro.id IS NULL OR ri.id IS NULL),
		(SELECT COUNT(*) FROM roles c LEFT JOIN roles p ON p.id = c.parent_id WHERE c.parent_id IS NOT NULL AND p.id IS NULL)`).
		Scan(&assignments, &parents)
	return assignments, parents, err
}
