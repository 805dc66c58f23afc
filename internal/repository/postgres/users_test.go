package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/repository"
)

func TestUserRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery(`INSERT INTO omms\.users`).
		WithArgs("alice", "alice@example.com", (*string)(nil), (*string)(nil), (*string)(nil),
			"hashed", true, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	user, err := repo.Create(context.Background(), domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashed",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("expected user id 1, got %d", user.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepo_Create_UniqueViolationCarriesConstraint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery(`INSERT INTO omms\.users`).
		WithArgs("alice", "taken@example.com", (*string)(nil), (*string)(nil), (*string)(nil),
			"hashed", true, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err = repo.Create(context.Background(), domain.User{
		Username:     "alice",
		Email:        "taken@example.com",
		PasswordHash: "hashed",
		IsActive:     true,
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var conflict *repository.ConflictError
	if !errors.As(err, &conflict) || conflict.Constraint != "users_email_key" {
		t.Fatalf("expected the violated constraint to be carried, got %v", err)
	}
}

func TestUserRepo_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(userColumns).
		AddRow(int64(2), "bob", "bob@example.com", "Bob B", nil, nil,
			"hashed", true, false, now, now, nil)

	mock.ExpectQuery(`SELECT .*FROM omms\.users`).
		WithArgs("bob").
		WillReturnRows(rows)

	user, err := repo.GetByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetByUsername returned error: %v", err)
	}
	if user.ID != 2 || user.Email != "bob@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.FullName == nil || *user.FullName != "Bob B" {
		t.Fatalf("expected full name to be scanned")
	}
	if user.LastLogin != nil {
		t.Fatalf("expected nil last login")
	}
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery(`SELECT .*FROM omms\.users`).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err = repo.GetByID(context.Background(), 404)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo_Delete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectExec(`DELETE FROM omms\.users`).
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = repo.Delete(context.Background(), 404)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo_ReplaceRoles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM omms\.users`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM omms\.roles`).
		WithArgs(int64(2), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`DELETE FROM omms\.user_roles`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO omms\.user_roles`).
		WithArgs(int64(1), int64(2), int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if err := repo.ReplaceRoles(context.Background(), 1, []int64{2, 3}); err != nil {
		t.Fatalf("ReplaceRoles returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepo_ReplaceRoles_UnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM omms\.users`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM omms\.roles`).
		WithArgs(int64(2), int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err = repo.ReplaceRoles(context.Background(), 1, []int64{2, 99})
	if !errors.Is(err, repository.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestUserRepo_ReplaceRoles_UserMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM omms\.users`).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err = repo.ReplaceRoles(context.Background(), 404, []int64{2})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
