package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/infra/config"
	"github.com/bmyhack/omms-api/internal/infra/security"
	"github.com/bmyhack/omms-api/internal/repository"
)

func testHasher() *security.PasswordHasher {
	return security.NewPasswordHasher(config.Argon2Settings{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
	})
}

func newUserService(users *userRepoMock, roles *roleRepoMock, cache *permissionCacheMock, audit *auditPublisherMock) *UserService {
	return NewUserService(users, roles, newPermissionRepoMock(), testHasher(), cache, audit, zap.NewNop())
}

func TestUserService_CreateUser(t *testing.T) {
	users := newUserRepoMock()
	audit := &auditPublisherMock{}
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), audit)

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if !created.IsActive {
		t.Fatalf("new users default to active")
	}
	if created.PasswordHash == "" || created.PasswordHash == "M4jestic-Heron-v82" {
		t.Fatalf("password must be stored hashed")
	}

	events := audit.published()
	if len(events) != 1 || events[0].Action != domain.AuditActionCreate {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}

func TestUserService_CreateUser_UsernameTaken(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	input := CreateUserInput{Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82"}
	if _, err := svc.CreateUser(context.Background(), 1, input); err != nil {
		t.Fatalf("first CreateUser returned error: %v", err)
	}

	input.Email = "other@example.com"
	_, err := svc.CreateUser(context.Background(), 1, input)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUserService_CreateUser_EmailTaken(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	if _, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	}); err != nil {
		t.Fatalf("first CreateUser returned error: %v", err)
	}

	_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "bob", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_CreateUser_WeakPassword(t *testing.T) {
	svc := newUserService(newUserRepoMock(), newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "abc123",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUserService_CreateUser_InvalidEmail(t *testing.T) {
	svc := newUserService(newUserRepoMock(), newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "not-an-email", Password: "M4jestic-Heron-v82",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUserService_UpdateUser_PartialFields(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	fullName := "Alice Liddell"
	inactive := false
	updated, err := svc.UpdateUser(context.Background(), 1, created.ID, UpdateUserInput{
		FullName: &fullName,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}
	if updated.FullName == nil || *updated.FullName != "Alice Liddell" {
		t.Fatalf("expected full name update, got %+v", updated.FullName)
	}
	if updated.IsActive {
		t.Fatalf("expected user to be deactivated")
	}
	if updated.Username != "alice" || updated.Email != "alice@example.com" {
		t.Fatalf("untouched fields must keep their values")
	}
}

func TestUserService_UpdateUser_NotFound(t *testing.T) {
	svc := newUserService(newUserRepoMock(), newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	name := "ghost"
	_, err := svc.UpdateUser(context.Background(), 1, 404, UpdateUserInput{Username: &name})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	users := newUserRepoMock()
	cache := newPermissionCacheMock()
	audit := &auditPublisherMock{}
	svc := newUserService(users, newRoleRepoMock(), cache, audit)

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if err := svc.DeleteUser(context.Background(), 1, created.ID); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	if _, err := users.GetByID(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected user to be removed, got %v", err)
	}
	if cache.bumpCount() != 1 {
		t.Fatalf("expected epoch bump after delete")
	}

	events := audit.published()
	last := events[len(events)-1]
	if last.Action != domain.AuditActionDelete || last.EntityType != "user" {
		t.Fatalf("unexpected audit event: %+v", last)
	}
}

func TestUserService_ReplaceUserRoles(t *testing.T) {
	users := newUserRepoMock()
	roles := newRoleRepoMock()
	cache := newPermissionCacheMock()
	audit := &auditPublisherMock{}
	svc := newUserService(users, roles, cache, audit)

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if _, err := svc.ReplaceUserRoles(context.Background(), 1, created.ID, []int64{2, 3}); err != nil {
		t.Fatalf("ReplaceUserRoles returned error: %v", err)
	}

	assigned, _ := users.GetUserRoles(context.Background(), created.ID)
	if len(assigned) != 2 || assigned[0] != 2 || assigned[1] != 3 {
		t.Fatalf("unexpected role assignment: %v", assigned)
	}
	if cache.bumpCount() != 1 {
		t.Fatalf("expected epoch bump after role replacement")
	}

	events := audit.published()
	last := events[len(events)-1]
	if last.Action != domain.AuditActionReplace || last.EntityType != "user_roles" {
		t.Fatalf("unexpected audit event: %+v", last)
	}
}

func TestUserService_ReplaceUserRoles_InvalidReference(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	users.replaceErr = repository.ErrInvalidReference
	_, err = svc.ReplaceUserRoles(context.Background(), 1, created.ID, []int64{999})
	if !errors.Is(err, repository.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestUserService_ListUsers_PageDefaults(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	for _, name := range []string{"alice", "bob"} {
		if _, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
			Username: name, Email: name + "@example.com", Password: "M4jestic-Heron-v82",
		}); err != nil {
			t.Fatalf("CreateUser(%s) returned error: %v", name, err)
		}
	}

	listed, total, err := svc.ListUsers(context.Background(), ListUsersInput{Page: -5, Size: 0})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if total != 2 || len(listed) != 2 {
		t.Fatalf("expected 2 users, got total=%d len=%d", total, len(listed))
	}
}

func TestUserService_CreateUser_EmailConstraintRace(t *testing.T) {
	users := newUserRepoMock()
	svc := newUserService(users, newRoleRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	// A concurrent insert that slips past the pre-checks surfaces as a
	// unique violation naming the email constraint.
	users.createErr = &repository.ConflictError{Constraint: "users_email_key"}
	_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken for email constraint, got %v", err)
	}

	users.createErr = &repository.ConflictError{Constraint: "users_username_key"}
	_, err = svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken for username constraint, got %v", err)
	}
}

func TestUserService_GetUserPermissions(t *testing.T) {
	users := newUserRepoMock()
	perms := newPermissionRepoMock()
	svc := NewUserService(users, newRoleRepoMock(), perms, testHasher(), newPermissionCacheMock(), &auditPublisherMock{}, zap.NewNop())

	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "M4jestic-Heron-v82",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	perms.userCodes[created.ID] = []string{"user:list", "role:view"}

	codes, err := svc.GetUserPermissions(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserPermissions returned error: %v", err)
	}
	if len(codes) != 2 || codes[0] != "user:list" || codes[1] != "role:view" {
		t.Fatalf("unexpected codes: %v", codes)
	}

	if _, err := svc.GetUserPermissions(context.Background(), 999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUserService_GetUserPermissions_Superuser(t *testing.T) {
	users := newUserRepoMock()
	perms := newPermissionRepoMock()
	svc := NewUserService(users, newRoleRepoMock(), perms, testHasher(), newPermissionCacheMock(), &auditPublisherMock{}, zap.NewNop())

	for _, code := range []string{"user:list", "user:create", "role:list"} {
		if _, err := perms.Create(context.Background(), domain.Permission{Code: code, Name: code}); err != nil {
			t.Fatalf("seed permission %s: %v", code, err)
		}
	}

	super := true
	created, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Username: "root", Email: "root@example.com", Password: "M4jestic-Heron-v82",
		IsSuperuser: &super,
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	codes, err := svc.GetUserPermissions(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserPermissions returned error: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("superuser should hold the whole catalog, got %v", codes)
	}
}
