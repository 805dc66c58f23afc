package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/transport/http/middleware"
	"github.com/bmyhack/omms-api/internal/usecase"
)

type roleRepoStub struct {
	role        domain.Role
	assignments []int64
}

func (s *roleRepoStub) Create(_ context.Context, role domain.Role) (*domain.Role, error) {
	return &role, nil
}

func (s *roleRepoStub) GetByID(_ context.Context, _ int64) (*domain.Role, error) {
	r := s.role
	return &r, nil
}

func (s *roleRepoStub) GetByName(_ context.Context, _ string) (*domain.Role, error) {
	r := s.role
	return &r, nil
}

func (s *roleRepoStub) List(_ context.Context, _ port.RoleFilter) ([]domain.Role, error) {
	return []domain.Role{s.role}, nil
}

func (s *roleRepoStub) Count(_ context.Context, _ port.RoleFilter) (int, error) { return 1, nil }

func (s *roleRepoStub) Update(_ context.Context, _ domain.Role) error { return nil }

func (s *roleRepoStub) Delete(_ context.Context, _ int64) error { return nil }

func (s *roleRepoStub) GetRolePermissions(_ context.Context, _ int64) ([]int64, error) {
	return append([]int64(nil), s.assignments...), nil
}

func (s *roleRepoStub) ReplacePermissions(_ context.Context, _ int64, permissionIDs []int64) error {
	s.assignments = append([]int64(nil), permissionIDs...)
	return nil
}

func (s *roleRepoStub) ListByUser(_ context.Context, _ int64) ([]domain.Role, error) {
	return nil, nil
}

type permissionRepoStub struct {
	roles *roleRepoStub
	perms map[int64]domain.Permission
}

func (s *permissionRepoStub) Create(_ context.Context, permission domain.Permission) (*domain.Permission, error) {
	return &permission, nil
}

func (s *permissionRepoStub) GetByID(_ context.Context, id int64) (*domain.Permission, error) {
	p := s.perms[id]
	return &p, nil
}

func (s *permissionRepoStub) GetByCode(_ context.Context, _ string) (*domain.Permission, error) {
	return nil, nil
}

func (s *permissionRepoStub) List(_ context.Context, _ port.PermissionFilter) ([]domain.Permission, error) {
	return nil, nil
}

func (s *permissionRepoStub) Count(_ context.Context, _ port.PermissionFilter) (int, error) {
	return 0, nil
}

func (s *permissionRepoStub) Update(_ context.Context, _ domain.Permission) error { return nil }

func (s *permissionRepoStub) Delete(_ context.Context, _ int64) error { return nil }

func (s *permissionRepoStub) CountRoleReferences(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

func (s *permissionRepoStub) ListByRole(_ context.Context, _ int64) ([]domain.Permission, error) {
	out := make([]domain.Permission, 0, len(s.roles.assignments))
	for _, id := range s.roles.assignments {
		out = append(out, s.perms[id])
	}
	return out, nil
}

func (s *permissionRepoStub) ListCodesByUser(_ context.Context, _ int64) ([]string, error) {
	return nil, nil
}

func (s *permissionRepoStub) ListAllCodes(_ context.Context) ([]string, error) { return nil, nil }

func newRolePermissionsRouter(assignments []int64) *gin.Engine {
	gin.SetMode(gin.TestMode)

	roles := &roleRepoStub{
		role:        domain.Role{ID: 1, Name: "operator"},
		assignments: assignments,
	}
	perms := &permissionRepoStub{
		roles: roles,
		perms: map[int64]domain.Permission{
			10: {ID: 10, Code: "user:list", Name: "List users"},
			11: {ID: 11, Code: "user:view", Name: "View users"},
		},
	}

	svc := usecase.NewRoleService(roles, perms, nil, nil, zap.NewNop(), nil)
	handler := NewRoleHandler(svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, int64(1))
	})
	r.GET("/roles/:id/permissions", handler.GetRolePermissions)
	r.PUT("/roles/:id/permissions", handler.ReplaceRolePermissions)
	return r
}

func TestRoleHandler_GetRolePermissions_IDEnvelope(t *testing.T) {
	engine := newRolePermissionsRouter([]int64{10, 11})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/roles/1/permissions", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PermissionIDsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.PermissionIDs) != 2 || resp.PermissionIDs[0] != 10 || resp.PermissionIDs[1] != 11 {
		t.Fatalf("unexpected permission ids: %v", resp.PermissionIDs)
	}
	if !strings.Contains(w.Body.String(), `"permission_ids"`) {
		t.Fatalf("expected permission_ids envelope, got %s", w.Body.String())
	}
}

func TestRoleHandler_ReplaceRolePermissions_IDEnvelope(t *testing.T) {
	engine := newRolePermissionsRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/roles/1/permissions",
		strings.NewReader(`{"permission_ids":[11]}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PermissionIDsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.PermissionIDs) != 1 || resp.PermissionIDs[0] != 11 {
		t.Fatalf("unexpected permission ids after replace: %v", resp.PermissionIDs)
	}
}
