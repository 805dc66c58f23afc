package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/repository"
)

func newPermissionService(perms *permissionRepoMock, cache *permissionCacheMock, audit *auditPublisherMock) *PermissionService {
	return NewPermissionService(perms, cache, audit, zap.NewNop())
}

func TestPermissionService_CreatePermission(t *testing.T) {
	perms := newPermissionRepoMock()
	audit := &auditPublisherMock{}
	svc := newPermissionService(perms, newPermissionCacheMock(), audit)

	created, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list",
		Name: "List users",
	})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}
	if created.Code != "user:list" {
		t.Fatalf("unexpected code: %q", created.Code)
	}

	events := audit.published()
	if len(events) != 1 || events[0].Action != domain.AuditActionCreate || events[0].EntityType != "permission" {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}

func TestPermissionService_CreatePermission_BadCode(t *testing.T) {
	svc := newPermissionService(newPermissionRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	for _, code := range []string{"", "User:List", "user", "user:", ":list", "user list"} {
		_, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{Code: code, Name: "x"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("code %q: expected ErrValidation, got %v", code, err)
		}
	}
}

func TestPermissionService_CreatePermission_DuplicateCode(t *testing.T) {
	svc := newPermissionService(newPermissionRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	if _, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "List users",
	}); err != nil {
		t.Fatalf("first CreatePermission returned error: %v", err)
	}

	_, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "Duplicate",
	})
	if !errors.Is(err, ErrPermissionExists) {
		t.Fatalf("expected ErrPermissionExists, got %v", err)
	}
}

func TestPermissionService_UpdatePermission_CodeImmutableWhileAssigned(t *testing.T) {
	perms := newPermissionRepoMock()
	svc := newPermissionService(perms, newPermissionCacheMock(), &auditPublisherMock{})

	created, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "List users",
	})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}
	perms.references[created.ID] = 2

	code := "user:browse"
	_, err = svc.UpdatePermission(context.Background(), 1, created.ID, UpdatePermissionInput{Code: &code})
	if !errors.Is(err, ErrPermissionInUse) {
		t.Fatalf("expected ErrPermissionInUse, got %v", err)
	}
}

func TestPermissionService_UpdatePermission_NameWhileAssigned(t *testing.T) {
	perms := newPermissionRepoMock()
	cache := newPermissionCacheMock()
	svc := newPermissionService(perms, cache, &auditPublisherMock{})

	created, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "List users",
	})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}
	perms.references[created.ID] = 1

	name := "Browse users"
	updated, err := svc.UpdatePermission(context.Background(), 1, created.ID, UpdatePermissionInput{Name: &name})
	if err != nil {
		t.Fatalf("UpdatePermission returned error: %v", err)
	}
	if updated.Name != "Browse users" || updated.Code != "user:list" {
		t.Fatalf("unexpected permission after update: %+v", updated)
	}
	if cache.bumpCount() != 1 {
		t.Fatalf("expected epoch bump after update")
	}
}

func TestPermissionService_DeletePermission_CascadesAssignments(t *testing.T) {
	perms := newPermissionRepoMock()
	cache := newPermissionCacheMock()
	svc := newPermissionService(perms, cache, &auditPublisherMock{})

	created, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "List users",
	})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}
	perms.references[created.ID] = 3

	if err := svc.DeletePermission(context.Background(), 1, created.ID); err != nil {
		t.Fatalf("delete of an assigned permission must cascade, got %v", err)
	}
	if _, err := perms.GetByID(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected permission removed, got %v", err)
	}
	if refs, _ := perms.CountRoleReferences(context.Background(), created.ID); refs != 0 {
		t.Fatalf("expected assignment rows cleared, got %d", refs)
	}
	if cache.bumpCount() != 1 {
		t.Fatalf("expected epoch bump after cascade delete")
	}
}

func TestPermissionService_DeletePermission(t *testing.T) {
	perms := newPermissionRepoMock()
	cache := newPermissionCacheMock()
	audit := &auditPublisherMock{}
	svc := newPermissionService(perms, cache, audit)

	created, err := svc.CreatePermission(context.Background(), 1, CreatePermissionInput{
		Code: "user:list", Name: "List users",
	})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}

	if err := svc.DeletePermission(context.Background(), 1, created.ID); err != nil {
		t.Fatalf("DeletePermission returned error: %v", err)
	}
	if _, err := perms.GetByID(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected permission removed, got %v", err)
	}
	if cache.bumpCount() != 1 {
		t.Fatalf("expected epoch bump after delete")
	}

	events := audit.published()
	last := events[len(events)-1]
	if last.Action != domain.AuditActionDelete || last.EntityType != "permission" {
		t.Fatalf("unexpected audit event: %+v", last)
	}
}

func TestPermissionService_GetPermission_NotFound(t *testing.T) {
	svc := newPermissionService(newPermissionRepoMock(), newPermissionCacheMock(), &auditPublisherMock{})

	_, err := svc.GetPermission(context.Background(), 404)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
