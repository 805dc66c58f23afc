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

const (
	rolesTable           = "omms.roles"
	rolePermissionsTable = "omms.role_permissions"
)

var roleColumns = []string{"id", "name", "description", "created_at", "updated_at"}

// RoleRepo persists roles and their permission assignments.
type RoleRepo struct {
	db      pgExecutor
	builder sq.StatementBuilderType
}

// NewRoleRepo constructs a RoleRepo backed by the given pool.
func NewRoleRepo(db pgExecutor) *RoleRepo {
	return &RoleRepo{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *RoleRepo) WithTx(tx pgx.Tx) *RoleRepo {
	return &RoleRepo{db: tx, builder: r.builder}
}

func (r *RoleRepo) Create(ctx context.Context, role domain.Role) (*domain.Role, error) {
	now := time.Now().UTC()
	query, args, err := r.builder.
		Insert(rolesTable).
		Columns("name", "description", "created_at", "updated_at").
		Values(role.Name, role.Description, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&role.ID); err != nil {
		return nil, translateError(err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return &role, nil
}

func (r *RoleRepo) GetByID(ctx context.Context, id int64) (*domain.Role, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, sq.Eq{"name": name})
}

func (r *RoleRepo) getOne(ctx context.Context, pred any) (*domain.Role, error) {
	query, args, err := r.builder.
		Select(roleColumns...).
		From(rolesTable).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, query, args...)
	role, err := scanRole(row)
	if err != nil {
		return nil, translateError(err)
	}
	return role, nil
}

func (r *RoleRepo) List(ctx context.Context, filter port.RoleFilter) ([]domain.Role, error) {
	qb := r.builder.
		Select(roleColumns...).
		From(rolesTable).
		OrderBy("id ASC")
	if filter.Name != "" {
		qb = qb.Where(sq.ILike{"name": "%" + filter.Name + "%"})
	}
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

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *RoleRepo) Count(ctx context.Context, filter port.RoleFilter) (int, error) {
	qb := r.builder.
		Select("COUNT(*)").
		From(rolesTable)
	if filter.Name != "" {
		qb = qb.Where(sq.ILike{"name": "%" + filter.Name + "%"})
	}

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

func (r *RoleRepo) Update(ctx context.Context, role domain.Role) error {
	query, args, err := r.builder.
		Update(rolesTable).
		Set("name", role.Name).
		Set("description", role.Description).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": role.ID}).
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

// Delete removes the role together with its assignment rows.
func (r *RoleRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range []string{rolePermissionsTable, userRolesTable} {
		query, args, err := r.builder.
			Delete(table).
			Where(sq.Eq{"role_id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return translateError(err)
		}
	}

	query, args, err := r.builder.
		Delete(rolesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *RoleRepo) GetRolePermissions(ctx context.Context, roleID int64) ([]int64, error) {
	query, args, err := r.builder.
		Select("permission_id").
		From(rolePermissionsTable).
		Where(sq.Eq{"role_id": roleID}).
		OrderBy("permission_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplacePermissions swaps the full permission set of a role in one
// transaction. Unknown permission ids roll the whole operation back, so
// readers never observe a partial assignment.
func (r *RoleRepo) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := r.builder.
		Select("COUNT(*)").
		From(rolesTable).
		Where(sq.Eq{"id": roleID}).
		ToSql()
	if err != nil {
		return err
	}
	var count int
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return translateError(err)
	}
	if count == 0 {
		return repository.ErrNotFound
	}

	ids := dedupeIDs(permissionIDs)
	if len(ids) > 0 {
		query, args, err := r.builder.
			Select("COUNT(*)").
			From(permissionsTable).
			Where(sq.Eq{"id": ids}).
			ToSql()
		if err != nil {
			return err
		}
		var found int
		if err := tx.QueryRow(ctx, query, args...).Scan(&found); err != nil {
			return translateError(err)
		}
		if found != len(ids) {
			return repository.ErrInvalidReference
		}
	}

	delQuery, delArgs, err := r.builder.
		Delete(rolePermissionsTable).
		Where(sq.Eq{"role_id": roleID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
		return translateError(err)
	}

	if len(ids) > 0 {
		ib := r.builder.
			Insert(rolePermissionsTable).
			Columns("role_id", "permission_id")
		for _, permissionID := range ids {
			ib = ib.Values(roleID, permissionID)
		}
		insQuery, insArgs, err := ib.
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insQuery, insArgs...); err != nil {
			return translateError(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *RoleRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Role, error) {
	query, args, err := r.builder.
		Select("r.id", "r.name", "r.description", "r.created_at", "r.updated_at").
		From(rolesTable + " r").
		Join(userRolesTable + " ur ON ur.role_id = r.id").
		Where(sq.Eq{"ur.user_id": userID}).
		OrderBy("r.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	var description sql.NullString

	err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		role.Description = &description.String
	}
	return &role, nil
}
