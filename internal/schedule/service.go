package schedule

import (
	"context"
	"fmt"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// Service applies permission and tenant checks to event operations.
type Service struct {
	repo Repository
}

// NewService creates an event service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// load fetches an event and checks it belongs to the caller's church.
func (s *Service) load(ctx context.Context, caller auth.Identity, id string) (*Event, error) {
	return auth.LoadScoped(ctx, caller, func(ctx context.Context) (*Event, error) {
		return s.repo.Get(ctx, id)
	})
}

// Create adds an event to the caller's church. A superadmin must name the
// church in in.TenantID.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in NewEvent) (*Event, error) {
	if !caller.Can(auth.PermEventsManage) {
		return nil, auth.ErrForbidden
	}

	tenantID := caller.TenantID
	if caller.IsSuperAdmin() && in.TenantID != "" {
		tenantID = in.TenantID
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", auth.ErrValidation)
	}
	if err := auth.AssertSameTenant(tenantID, caller); err != nil {
		return nil, err
	}

	e := &Event{
		TenantID:    tenantID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedBy:   caller.AccountID,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns one event from the caller's church.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (*Event, error) {
	if !caller.Can(auth.PermEventsRead) {
		return nil, auth.ErrForbidden
	}
	return s.load(ctx, caller, id)
}

// List returns events of tenantID within rng after a boundary check.
func (s *Service) List(ctx context.Context, caller auth.Identity, tenantID string, rng Range) ([]Event, error) {
	if !caller.Can(auth.PermEventsRead) {
		return nil, auth.ErrForbidden
	}
	if err := auth.AssertSameTenant(tenantID, caller); err != nil {
		return nil, err
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && !rng.To.After(rng.From) {
		return nil, fmt.Errorf("%w: to must be after from", auth.ErrValidation)
	}
	return s.repo.ListByTenant(ctx, tenantID, rng)
}

// Update applies patch to an event in the caller's church.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, patch EventPatch) (*Event, error) {
	if !caller.Can(auth.PermEventsManage) {
		return nil, auth.ErrForbidden
	}
	e, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(e)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an event from the caller's church.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if !caller.Can(auth.PermEventsManage) {
		return auth.ErrForbidden
	}
	e, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, e.ID)
}
