package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/repository"
)

type userRepoMock struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	roles  map[int64][]int64
	nextID int64

	createErr  error
	updateErr  error
	replaceErr error
}

func newUserRepoMock() *userRepoMock {
	return &userRepoMock{
		users: make(map[int64]domain.User),
		roles: make(map[int64][]int64),
	}
}

func (m *userRepoMock) Create(_ context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return nil, repository.ErrConflict
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return &user, nil
}

func (m *userRepoMock) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (m *userRepoMock) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) List(_ context.Context, _ port.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *userRepoMock) Count(_ context.Context, _ port.UserFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *userRepoMock) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *userRepoMock) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	delete(m.roles, id)
	return nil
}

func (m *userRepoMock) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	m.users[id] = user
	return nil
}

func (m *userRepoMock) GetUserRoles(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.roles[userID]...), nil
}

func (m *userRepoMock) ReplaceRoles(_ context.Context, userID int64, roleIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, ok := m.users[userID]; !ok {
		return repository.ErrNotFound
	}
	m.roles[userID] = append([]int64(nil), roleIDs...)
	return nil
}

type roleRepoMock struct {
	mu          sync.Mutex
	roles       map[int64]domain.Role
	permissions map[int64][]int64
	userRoles   map[int64][]int64
	nextID      int64

	createErr  error
	deleteErr  error
	replaceErr error
}

func newRoleRepoMock() *roleRepoMock {
	return &roleRepoMock{
		roles:       make(map[int64]domain.Role),
		permissions: make(map[int64][]int64),
		userRoles:   make(map[int64][]int64),
	}
}

func (m *roleRepoMock) Create(_ context.Context, role domain.Role) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return nil, repository.ErrConflict
		}
	}
	m.nextID++
	role.ID = m.nextID
	m.roles[role.ID] = role
	return &role, nil
}

func (m *roleRepoMock) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (m *roleRepoMock) GetByName(_ context.Context, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			r := role
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoMock) List(_ context.Context, _ port.RoleFilter) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *roleRepoMock) Count(_ context.Context, _ port.RoleFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roles), nil
}

func (m *roleRepoMock) Update(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range m.roles {
		if existing.Name == role.Name && existing.ID != role.ID {
			return repository.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return nil
}

func (m *roleRepoMock) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.permissions, id)
	return nil
}

func (m *roleRepoMock) GetRolePermissions(_ context.Context, roleID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.permissions[roleID]...), nil
}

func (m *roleRepoMock) ReplacePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, ok := m.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	m.permissions[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (m *roleRepoMock) ListByUser(_ context.Context, userID int64) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Role, 0)
	for _, roleID := range m.userRoles[userID] {
		if role, ok := m.roles[roleID]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

type permissionRepoMock struct {
	mu         sync.Mutex
	perms      map[int64]domain.Permission
	references map[int64]int
	userCodes  map[int64][]string
	nextID     int64

	listAllErr  error
	listUserErr error
}

func newPermissionRepoMock() *permissionRepoMock {
	return &permissionRepoMock{
		perms:      make(map[int64]domain.Permission),
		references: make(map[int64]int),
		userCodes:  make(map[int64][]string),
	}
}

func (m *permissionRepoMock) Create(_ context.Context, permission domain.Permission) (*domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.perms {
		if existing.Code == permission.Code {
			return nil, repository.ErrConflict
		}
	}
	m.nextID++
	permission.ID = m.nextID
	m.perms[permission.ID] = permission
	return &permission, nil
}

func (m *permissionRepoMock) GetByID(_ context.Context, id int64) (*domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	permission, ok := m.perms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &permission, nil
}

func (m *permissionRepoMock) GetByCode(_ context.Context, code string) (*domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, permission := range m.perms {
		if permission.Code == code {
			p := permission
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *permissionRepoMock) List(_ context.Context, _ port.PermissionFilter) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Permission, 0, len(m.perms))
	for _, permission := range m.perms {
		out = append(out, permission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *permissionRepoMock) Count(_ context.Context, _ port.PermissionFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.perms), nil
}

func (m *permissionRepoMock) Update(_ context.Context, permission domain.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[permission.ID]; !ok {
		return repository.ErrNotFound
	}
	m.perms[permission.ID] = permission
	return nil
}

func (m *permissionRepoMock) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.perms, id)
	delete(m.references, id)
	return nil
}

func (m *permissionRepoMock) CountRoleReferences(_ context.Context, permissionID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.references[permissionID], nil
}

func (m *permissionRepoMock) ListByRole(_ context.Context, _ int64) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Permission, 0, len(m.perms))
	for _, permission := range m.perms {
		out = append(out, permission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *permissionRepoMock) ListCodesByUser(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listUserErr != nil {
		return nil, m.listUserErr
	}
	return append([]string(nil), m.userCodes[userID]...), nil
}

func (m *permissionRepoMock) ListAllCodes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listAllErr != nil {
		return nil, m.listAllErr
	}
	codes := make([]string, 0, len(m.perms))
	for _, permission := range m.perms {
		codes = append(codes, permission.Code)
	}
	sort.Strings(codes)
	return codes, nil
}

type permissionCacheMock struct {
	mu     sync.Mutex
	values map[int64][]string
	bumps  int
	getErr error
	setErr error
}

func newPermissionCacheMock() *permissionCacheMock {
	return &permissionCacheMock{values: make(map[int64][]string)}
}

func (m *permissionCacheMock) Get(_ context.Context, userID int64) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	codes, ok := m.values[userID]
	return codes, ok, nil
}

func (m *permissionCacheMock) Set(_ context.Context, userID int64, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[userID] = append([]string(nil), codes...)
	return nil
}

func (m *permissionCacheMock) BumpEpoch(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps++
	m.values = make(map[int64][]string)
	return nil
}

func (m *permissionCacheMock) bumpCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bumps
}

type rateLimitStoreMock struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newRateLimitStoreMock() *rateLimitStoreMock {
	return &rateLimitStoreMock{attempts: make(map[string][]time.Time)}
}

func (m *rateLimitStoreMock) TrimWindow(_ context.Context, identifier string, window time.Duration, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-window)
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *rateLimitStoreMock) CountAttempts(_ context.Context, identifier string, _ time.Duration, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts[identifier]), nil
}

func (m *rateLimitStoreMock) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *rateLimitStoreMock) OldestAttempt(_ context.Context, identifier string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts[identifier]) == 0 {
		return time.Time{}, false, nil
	}
	return m.attempts[identifier][0], true, nil
}

type auditPublisherMock struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *auditPublisherMock) PublishAudit(_ context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *auditPublisherMock) published() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.events...)
}
