package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/crypto"
	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/event"
	"github.com/salonsuite/tenant-management-service/internal/model"
	"github.com/salonsuite/tenant-management-service/internal/monitoring"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
	"github.com/salonsuite/tenant-management-service/internal/store"
)

// Registry is the surface of the tenant registry the services depend on.
// *store.TenantRepository satisfies it.
type Registry interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	FindByCode(ctx context.Context, code string) (*model.Tenant, error)
	List(ctx context.Context, filter store.ListFilter) ([]*model.Tenant, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	CreateProvisioningLog(ctx context.Context, tenantID uuid.UUID, step, status string, details any) error
}

// AdminCredentials is the initial administrator of a new tenant. The
// password is hashed before it touches any datastore and is never logged.
type AdminCredentials struct {
	Email    string
	Password string
}

// BusinessMetadata is the routing-irrelevant metadata of a new tenant.
type BusinessMetadata struct {
	DisplayName  string
	ContactEmail string
	ContactPhone string
}

// ProvisioningService brings a new tenant into existence: registry record,
// physical database, baseline schema, and seed documents.
type ProvisioningService struct {
	registry Registry
	router   *router.Router
	scheme   naming.Scheme
	events   event.Publisher // optional
}

// NewProvisioningService creates a ProvisioningService. events may be nil.
func NewProvisioningService(registry Registry, rtr *router.Router, scheme naming.Scheme, events event.Publisher) *ProvisioningService {
	return &ProvisioningService{registry: registry, router: rtr, scheme: scheme, events: events}
}

// Provision creates the tenant record, its physical database under the
// current naming generation, and the seed documents: exactly one admin
// account and one settings row. If anything fails after the registry insert,
// the record is rolled back to deleted and the error is surfaced as a
// partial-seed failure; re-running Provision with the same code then reuses
// any database that was already created.
func (ps *ProvisioningService) Provision(ctx context.Context, code string, admin AdminCredentials, meta BusinessMetadata) (*model.Tenant, error) {
	start := time.Now()

	if err := naming.ValidateCode(code); err != nil {
		return nil, err
	}
	if err := validateAdminCredentials(admin); err != nil {
		return nil, err
	}

	tenant := &model.Tenant{
		Code:         code,
		DisplayName:  meta.DisplayName,
		ContactEmail: meta.ContactEmail,
		ContactPhone: meta.ContactPhone,
		Status:       model.StatusActive,
		Generation:   string(naming.GenerationCurrent),
	}
	if err := ps.registry.Create(ctx, tenant); err != nil {
		if errs.HasCode(err, errs.CodeDuplicateCode) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.CodeConnection, "failed to create tenant record")
	}
	ps.logStep(ctx, tenant.ID, "registry", "success", nil)

	dbName, err := ps.scheme.Resolve(code, naming.GenerationCurrent)
	if err != nil {
		return nil, ps.rollback(ctx, tenant, "resolve_name", err)
	}

	created, err := ps.router.EnsureDatabase(ctx, dbName)
	if err != nil {
		return nil, ps.rollback(ctx, tenant, "create_database", err)
	}
	ps.logStep(ctx, tenant.ID, "create_database", "success", map[string]any{"database": dbName, "created": created})

	handle, err := ps.router.Get(ctx, dbName)
	if err != nil {
		return nil, ps.rollback(ctx, tenant, "open_database", err)
	}

	if err := ps.seed(ctx, handle, admin, meta); err != nil {
		return nil, ps.rollback(ctx, tenant, "seed", err)
	}
	ps.logStep(ctx, tenant.ID, "seed", "success", nil)

	monitoring.TenantsProvisioned.WithLabelValues("success").Inc()
	monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds())
	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("code", tenant.Code).
		Str("database", dbName).
		Msg("Tenant provisioned")

	ps.publish(ctx, event.TenantProvisioned, map[string]any{
		"tenant_id": tenant.ID,
		"code":      tenant.Code,
		"database":  dbName,
	})
	return tenant, nil
}

// seed applies the baseline schema and writes the admin account and the
// settings singleton. Both inserts are conflict-tolerant so retries never
// produce duplicates.
func (ps *ProvisioningService) seed(ctx context.Context, handle router.Handle, admin AdminCredentials, meta BusinessMetadata) error {
	for _, stmt := range tenantSchema {
		if _, err := handle.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	hash, err := crypto.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	if _, err := handle.Exec(ctx, seedAdminQuery, uuid.New(), admin.Email, hash, admin.Email); err != nil {
		return err
	}
	if _, err := handle.Exec(ctx, seedSettingsQuery, meta.DisplayName); err != nil {
		return err
	}
	return nil
}

// rollback soft-deletes the registry record after a post-commit failure so
// the code can be provisioned again, and surfaces the cause distinctly as a
// partial-seed failure. The physical database, if it was created, is left
// for the cleanup service.
func (ps *ProvisioningService) rollback(ctx context.Context, tenant *model.Tenant, step string, cause error) error {
	ps.logStep(ctx, tenant.ID, step, "failed", map[string]any{"error": cause.Error()})

	if err := ps.registry.SetStatus(ctx, tenant.ID, model.StatusDeleted); err != nil {
		monitoring.Alert("provisioning rollback failed", map[string]string{
			"tenant_id": tenant.ID.String(),
			"code":      tenant.Code,
			"step":      step,
		})
		log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("Failed to roll back tenant record")
	}

	monitoring.TenantsProvisioned.WithLabelValues("failed").Inc()
	return errs.Wrap(cause, errs.CodePartialSeed, "provisioning failed at step "+step)
}

func (ps *ProvisioningService) logStep(ctx context.Context, tenantID uuid.UUID, step, status string, details any) {
	if err := ps.registry.CreateProvisioningLog(ctx, tenantID, step, status, details); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("step", step).Msg("Failed to write provisioning log")
	}
}

func (ps *ProvisioningService) publish(ctx context.Context, key string, payload any) {
	if ps.events == nil {
		return
	}
	if err := ps.events.Publish(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("event", key).Msg("Failed to publish tenant event")
	}
}

func validateAdminCredentials(admin AdminCredentials) error {
	if admin.Email == "" || !strings.Contains(admin.Email, "@") {
		return errs.New(errs.CodeInvalidCode, "admin email is invalid")
	}
	if len(admin.Password) < 8 {
		return errs.New(errs.CodeInvalidCode, "admin password must be at least 8 characters")
	}
	return nil
}
