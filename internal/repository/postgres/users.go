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
	usersTable     = "omms.users"
	userRolesTable = "omms.user_roles"
)

var userColumns = []string{
	"id", "username", "email", "full_name", "phone", "avatar",
	"password_hash", "is_active", "is_superuser",
	"created_at", "updated_at", "last_login",
}

// UserRepo persists users in PostgreSQL.
type UserRepo struct {
	db      pgExecutor
	builder sq.StatementBuilderType
}

// NewUserRepo constructs a UserRepo backed by the given pool.
func NewUserRepo(db pgExecutor) *UserRepo {
	return &UserRepo{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *UserRepo) WithTx(tx pgx.Tx) *UserRepo {
	return &UserRepo{db: tx, builder: r.builder}
}

func (r *UserRepo) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	query, args, err := r.builder.
		Insert(usersTable).
		Columns("username", "email", "full_name", "phone", "avatar",
			"password_hash", "is_active", "is_superuser", "created_at", "updated_at").
		Values(user.Username, user.Email, user.FullName, user.Phone, user.Avatar,
			user.PasswordHash, user.IsActive, user.IsSuperuser, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.ID); err != nil {
		return nil, translateError(err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return &user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"username": username})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *UserRepo) getOne(ctx context.Context, pred any) (*domain.User, error) {
	query, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

func (r *UserRepo) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	qb := r.builder.
		Select(userColumns...).
		From(usersTable).
		OrderBy("id ASC")
	qb = applyUserFilter(qb, filter)
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

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context, filter port.UserFilter) (int, error) {
	qb := r.builder.
		Select("COUNT(*)").
		From(usersTable)
	qb = applyUserFilter(qb, filter)

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

func applyUserFilter(qb sq.SelectBuilder, filter port.UserFilter) sq.SelectBuilder {
	if filter.Username != "" {
		qb = qb.Where(sq.ILike{"username": "%" + filter.Username + "%"})
	}
	if filter.Email != "" {
		qb = qb.Where(sq.ILike{"email": "%" + filter.Email + "%"})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.IsSuperuser != nil {
		qb = qb.Where(sq.Eq{"is_superuser": *filter.IsSuperuser})
	}
	return qb
}

func (r *UserRepo) Update(ctx context.Context, user domain.User) error {
	query, args, err := r.builder.
		Update(usersTable).
		Set("username", user.Username).
		Set("email", user.Email).
		Set("full_name", user.FullName).
		Set("phone", user.Phone).
		Set("avatar", user.Avatar).
		Set("password_hash", user.PasswordHash).
		Set("is_active", user.IsActive).
		Set("is_superuser", user.IsSuperuser).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": user.ID}).
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

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.builder.
		Delete(usersTable).
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

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query, args, err := r.builder.
		Update(usersTable).
		Set("last_login", at.UTC()).
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

func (r *UserRepo) GetUserRoles(ctx context.Context, userID int64) ([]int64, error) {
	query, args, err := r.builder.
		Select("role_id").
		From(userRolesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("role_id ASC").
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

// ReplaceRoles atomically swaps the role set assigned to a user. Role ids
// that do not exist cause the transaction to roll back.
func (r *UserRepo) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	exists, err := r.userExists(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}

	if len(roleIDs) > 0 {
		query, args, err := r.builder.
			Select("COUNT(*)").
			From(rolesTable).
			Where(sq.Eq{"id": roleIDs}).
			ToSql()
		if err != nil {
			return err
		}
		var found int
		if err := tx.QueryRow(ctx, query, args...).Scan(&found); err != nil {
			return translateError(err)
		}
		if found != len(dedupeIDs(roleIDs)) {
			return repository.ErrInvalidReference
		}
	}

	delQuery, delArgs, err := r.builder.
		Delete(userRolesTable).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
		return translateError(err)
	}

	if len(roleIDs) > 0 {
		ib := r.builder.
			Insert(userRolesTable).
			Columns("user_id", "role_id")
		for _, roleID := range dedupeIDs(roleIDs) {
			ib = ib.Values(userID, roleID)
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

func (r *UserRepo) userExists(ctx context.Context, tx pgx.Tx, userID int64) (bool, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From(usersTable).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var fullName, phone, avatar sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &fullName, &phone, &avatar,
		&user.PasswordHash, &user.IsActive, &user.IsSuperuser,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}

	if fullName.Valid {
		user.FullName = &fullName.String
	}
	if phone.Valid {
		user.Phone = &phone.String
	}
	if avatar.Valid {
		user.Avatar = &avatar.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}
