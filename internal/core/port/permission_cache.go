package port

import "context"

// PermissionCache stores resolved per-user permission sets. Entries are
// written under the current epoch; bumping the epoch invalidates every
// cached set at once, so authorization reads stay fresh after any RBAC
// mutation without enumerating affected users.
type PermissionCache interface {
	Get(ctx context.Context, userID int64) ([]string, bool, error)
	Set(ctx context.Context, userID int64, codes []string) error
	BumpEpoch(ctx context.Context) error
}
