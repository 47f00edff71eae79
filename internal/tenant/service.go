package tenant

import (
	"context"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// Service applies authorization to church operations.
type Service struct {
	repo   Repository
	events auth.EventSink
	now    func() time.Time
}

// NewService creates a church service. events may be nil.
func NewService(repo Repository, events auth.EventSink) *Service {
	if events == nil {
		events = auth.DiscardEvents
	}
	return &Service{repo: repo, events: events, now: time.Now}
}

// Create makes a new church.
//
// A superadmin creates a church without joining it. Any other caller must
// not belong to a church yet and becomes the new church's admin.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in NewChurch, meta auth.RequestMeta) (*Church, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Church{Name: in.Name, Timezone: in.Timezone}

	if caller.IsSuperAdmin() {
		c.CreatedBy = caller.AccountID
		if err := s.repo.Create(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	if caller.HasTenant() {
		return nil, auth.ErrAlreadyInTenant
	}
	if err := s.repo.CreateWithOwner(ctx, c, caller.AccountID); err != nil {
		return nil, err
	}

	ts := s.now().UTC()
	s.events.Emit(ctx, auth.SecurityEvent{
		Type: auth.EventTenantChanged, AccountID: caller.AccountID, TenantID: c.ID,
		ActorID: caller.AccountID, RemoteAddr: meta.RemoteAddr, OccurredAt: ts,
		Details: map[string]any{"from": "", "to": c.ID, "church_created": true},
	})
	if caller.Role != auth.RoleAdmin {
		s.events.Emit(ctx, auth.SecurityEvent{
			Type: auth.EventRoleChanged, AccountID: caller.AccountID, TenantID: c.ID,
			ActorID: caller.AccountID, RemoteAddr: meta.RemoteAddr, OccurredAt: ts,
			Details: map[string]any{"from": string(caller.Role), "to": string(auth.RoleAdmin)},
		})
	}
	return c, nil
}

// Get returns a church the caller belongs to (or any church for a superadmin).
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (*Church, error) {
	return auth.LoadScoped(ctx, caller, func(ctx context.Context) (*Church, error) {
		return s.repo.Get(ctx, id)
	})
}

// List returns every church. Superadmin only.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]Church, error) {
	if !caller.Can(auth.PermTenantsAssign) {
		return nil, auth.ErrForbidden
	}
	return s.repo.List(ctx)
}
