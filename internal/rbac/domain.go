// Package rbac answers privilege checks from role assignments stored in
// Postgres. Roles and grants are maintained outside this service.
package rbac

import "context"

// Wildcard grants every permission below a prefix, e.g. "posting.*".
const Wildcard = "*"

// PermissionSource lists the permission names granted to a user through roles.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}
