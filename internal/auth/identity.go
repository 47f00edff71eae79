package auth

import "context"

// Identity is the authenticated caller attached to a request. It is
// derived from the account record at request time, never from token claims.
type Identity struct {
	AccountID string
	Role      Role
	TenantID  string
}

// IsSuperAdmin reports whether the identity bypasses tenant scoping.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// HasTenant reports whether the identity belongs to a church.
func (i Identity) HasTenant() bool {
	return i.TenantID != ""
}

// Can reports whether the identity's role grants perm.
func (i Identity) Can(perm Permission) bool {
	return HasPermission(i.Role, perm)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the authentication
// middleware. ok is false on unauthenticated requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
