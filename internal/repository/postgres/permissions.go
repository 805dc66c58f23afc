package postgres

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/repository"
)

const permissionsTable = "omms.permissions"

var permissionColumns = []string{"id", "code", "name", "description", "created_at", "updated_at"}

// PermissionRepo persists permissions in PostgreSQL.
type PermissionRepo struct {
	db      pgExecutor
	builder sq.StatementBuilderType
}

// NewPermissionRepo constructs a PermissionRepo backed by the given pool.
func NewPermissionRepo(db pgExecutor) *PermissionRepo {
	return &PermissionRepo{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PermissionRepo) Create(ctx context.Context, permission domain.Permission) (*domain.Permission, error) {
	now := time.Now().UTC()
	query, args, err := r.builder.
		Insert(permissionsTable).
		Columns("code", "name", "description", "created_at", "updated_at").
		Values(permission.Code, permission.Name, permission.Description, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&permission.ID); err != nil {
		return nil, translateError(err)
	}
	permission.CreatedAt = now
	permission.UpdatedAt = now
	return &permission, nil
}

func (r *PermissionRepo) GetByID(ctx context.Context, id int64) (*domain.Permission, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *PermissionRepo) GetByCode(ctx context.Context, code string) (*domain.Permission, error) {
	return r.getOne(ctx, sq.Eq{"code": code})
}

func (r *PermissionRepo) getOne(ctx context.Context, pred any) (*domain.Permission, error) {
	query, args, err := r.builder.
		Select(permissionColumns...).
		From(permissionsTable).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, query, args...)
	permission, err := scanPermission(row)
	if err != nil {
		return nil, translateError(err)
	}
	return permission, nil
}

func (r *PermissionRepo) List(ctx context.Context, filter port.PermissionFilter) ([]domain.Permission, error) {
	qb := r.builder.
		Select(permissionColumns...).
		From(permissionsTable).
		OrderBy("id ASC")
	qb = applyPermissionFilter(qb, filter)
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, *permission)
	}
	return permissions, rows.Err()
}

func (r *PermissionRepo) Count(ctx context.Context, filter port.PermissionFilter) (int, error) {
	qb := r.builder.
		Select("COUNT(*)").
		From(permissionsTable)
	qb = applyPermissionFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, translateError(err)
	}
	return total, nil
}

func applyPermissionFilter(qb sq.SelectBuilder, filter port.PermissionFilter) sq.SelectBuilder {
	if filter.Code != "" {
		qb = qb.Where(sq.ILike{"code": "%" + filter.Code + "%"})
	}
	if filter.Name != "" {
		qb = qb.Where(sq.ILike{"name": "%" + filter.Name + "%"})
	}
	return qb
}

func (r *PermissionRepo) Update(ctx context.Context, permission domain.Permission) error {
	query, args, err := r.builder.
		Update(permissionsTable).
		Set("code", permission.Code).
		Set("name", permission.Name).
		Set("description", permission.Description).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": permission.ID}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PermissionRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.builder.
		Delete(permissionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountRoleReferences reports how many roles currently carry the permission.
func (r *PermissionRepo) CountRoleReferences(ctx context.Context, permissionID int64) (int, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From(rolePermissionsTable).
		Where(sq.Eq{"permission_id": permissionID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// ListByRole returns the permissions currently assigned to a role.
func (r *PermissionRepo) ListByRole(ctx context.Context, roleID int64) ([]domain.Permission, error) {
	query, args, err := r.builder.
		Select("p.id", "p.code", "p.name", "p.description", "p.created_at", "p.updated_at").
		From(permissionsTable + " p").
		Join(rolePermissionsTable + " rp ON rp.permission_id = p.id").
		Where(sq.Eq{"rp.role_id": roleID}).
		OrderBy("p.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, *permission)
	}
	return permissions, rows.Err()
}

// ListCodesByUser resolves the distinct permission codes granted to a user
// through role membership.
func (r *PermissionRepo) ListCodesByUser(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := r.builder.
		Select("DISTINCT p.code").
		From(permissionsTable + " p").
		Join(rolePermissionsTable + " rp ON rp.permission_id = p.id").
		Join(userRolesTable + " ur ON ur.role_id = rp.role_id").
		Where(sq.Eq{"ur.user_id": userID}).
		OrderBy("p.code ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.listCodes(ctx, query, args)
}

// ListAllCodes returns every permission code. Used for superusers, who are
// granted the full catalog.
func (r *PermissionRepo) ListAllCodes(ctx context.Context) ([]string, error) {
	query, args, err := r.builder.
		Select("code").
		From(permissionsTable).
		OrderBy("code ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.listCodes(ctx, query, args)
}

func (r *PermissionRepo) listCodes(ctx context.Context, query string, args []any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func scanPermission(row pgx.Row) (*domain.Permission, error) {
	var permission domain.Permission
	var description sql.NullString

	err := row.Scan(&permission.ID, &permission.Code, &permission.Name,
		&description, &permission.CreatedAt, &permission.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		permission.Description = &description.String
	}
	return &permission, nil
}
