package auth

import (
	"context"
	"fmt"
)

// TenantScoped is implemented by records owned by a church. An empty
// owning tenant means the record is not owned by any church.
type TenantScoped interface {
	OwningTenantID() string
}

// AssertSameTenant fails with ErrTenantMismatch unless caller may touch a
// resource owned by resourceTenantID. Superadmins pass unconditionally.
// Otherwise both sides must be non-empty and equal, so a caller without a
// church can never reach a church-owned record and vice versa.
func AssertSameTenant(resourceTenantID string, caller Identity) error {
	if caller.IsSuperAdmin() {
		return nil
	}
	if caller.TenantID == "" || resourceTenantID == "" || caller.TenantID != resourceTenantID {
		return ErrTenantMismatch
	}
	return nil
}

// LoadScoped runs load and checks the result against caller. The record is
// returned only if the tenant check passes; load errors pass through.
func LoadScoped[T TenantScoped](ctx context.Context, caller Identity, load func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if err := AssertSameTenant(v.OwningTenantID(), caller); err != nil {
		return zero, fmt.Errorf("checking tenant: %w", err)
	}
	return v, nil
}
