package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/event"
	"github.com/salonsuite/tenant-management-service/internal/model"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
	"github.com/salonsuite/tenant-management-service/internal/store"
)

// TenantService exposes registry reads, status transitions, and request-time
// routing of a tenant code to its database handle.
type TenantService struct {
	registry Registry
	router   *router.Router
	scheme   naming.Scheme
	events   event.Publisher // optional
}

// NewTenantService creates a TenantService. events may be nil.
func NewTenantService(registry Registry, rtr *router.Router, scheme naming.Scheme, events event.Publisher) *TenantService {
	return &TenantService{registry: registry, router: rtr, scheme: scheme, events: events}
}

// Get retrieves a tenant by business id.
func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	tenant, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errs.Newf(errs.CodeNotFound, "tenant %s not found", id)
	}
	return tenant, nil
}

// GetByCode retrieves the non-deleted tenant holding code.
func (s *TenantService) GetByCode(ctx context.Context, code string) (*model.Tenant, error) {
	if err := naming.ValidateCode(code); err != nil {
		return nil, err
	}
	tenant, err := s.registry.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errs.Newf(errs.CodeNotFound, "tenant with code %q not found", code)
	}
	return tenant, nil
}

// List returns tenants matching the filter.
func (s *TenantService) List(ctx context.Context, filter store.ListFilter) ([]*model.Tenant, error) {
	return s.registry.List(ctx, filter)
}

// SetStatus transitions a tenant's lifecycle status and publishes the
// change. Deleted is terminal; the physical database is untouched here,
// destruction is the cleanup service's explicitly confirmed job.
func (s *TenantService) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	if err := s.registry.SetStatus(ctx, id, status); err != nil {
		return err
	}

	key := event.TenantStatusChanged
	if status == model.StatusDeleted {
		key = event.TenantDeleted
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, key, map[string]any{"tenant_id": id, "status": status}); err != nil {
			log.Warn().Err(err).Str("event", key).Msg("Failed to publish tenant event")
		}
	}
	return nil
}

// Delete soft-deletes a tenant record.
func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.SetStatus(ctx, id, model.StatusDeleted)
}

// HandleForCode resolves a tenant code to its cached database handle for
// request-time use. Suspended and deleted tenants are refused even though
// their physical database still exists.
func (s *TenantService) HandleForCode(ctx context.Context, code string) (router.Handle, error) {
	tenant, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tenant.Status != model.StatusActive {
		return nil, errs.Newf(errs.CodeSuspended, "tenant %q is %s", code, tenant.Status)
	}

	gen, ok := naming.ParseGeneration(tenant.Generation)
	if !ok {
		return nil, errs.Newf(errs.CodeInternal, "tenant %q has unknown naming generation %q", code, tenant.Generation)
	}
	name, err := s.scheme.Resolve(tenant.Code, gen)
	if err != nil {
		return nil, err
	}
	return s.router.Get(ctx, name)
}
