// Package store implements the tenant registry: CRUD over tenant records in
// the control-plane database, with a Redis read-through cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/salonsuite/tenant-management-service/internal/crypto"
	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/model"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
)

const cacheTTL = 1 * time.Hour

// RedisClient is the subset of the redis client the repository uses,
// extracted so tests can swap it out.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ListFilter narrows List results. The zero value returns every non-deleted
// tenant.
type ListFilter struct {
	Status         model.Status
	IncludeDeleted bool
}

// TenantRepository handles tenant records in the control-plane database.
// Uniqueness of code among non-deleted tenants is enforced by a partial
// unique index, so concurrent duplicate creates cannot race past each other.
type TenantRepository struct {
	db     router.Handle
	cache  RedisClient    // optional
	cipher *crypto.Cipher // optional, encrypts contact email at rest
}

// NewTenantRepository creates a repository over the control-plane handle.
// cache and cipher may be nil.
func NewTenantRepository(db router.Handle, cache RedisClient, cipher *crypto.Cipher) *TenantRepository {
	return &TenantRepository{db: db, cache: cache, cipher: cipher}
}

// Create inserts a new tenant record. Fails with a duplicate-code error when
// an active or suspended tenant already holds the code; codes of deleted
// tenants are reclaimable.
func (r *TenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.Status == "" {
		tenant.Status = model.StatusActive
	}
	if tenant.Generation == "" {
		tenant.Generation = string(naming.GenerationCurrent)
	}
	if err := r.encryptEmail(tenant); err != nil {
		return err
	}

	query := `INSERT INTO tenants (id, code, display_name, encrypted_email, email_iv, contact_phone, status, naming_generation, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		tenant.ID, tenant.Code, tenant.DisplayName, tenant.EncryptedEmail, tenant.EmailIV,
		tenant.ContactPhone, tenant.Status, tenant.Generation, tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.Newf(errs.CodeDuplicateCode, "tenant code %q is already taken", tenant.Code)
		}
		return err
	}

	r.invalidate(ctx, tenant)
	return nil
}

// GetByID retrieves a tenant by business id. Returns (nil, nil) when no
// record exists.
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	if tenant := r.cached(ctx, cacheKeyID(id)); tenant != nil {
		return tenant, nil
	}
	tenant, err := r.scanOne(r.db.QueryRow(ctx, selectColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil || tenant == nil {
		return nil, err
	}
	r.cacheSet(ctx, cacheKeyID(id), tenant)
	return tenant, nil
}

// FindByCode retrieves the non-deleted tenant holding code. Returns
// (nil, nil) when no such record exists.
func (r *TenantRepository) FindByCode(ctx context.Context, code string) (*model.Tenant, error) {
	if tenant := r.cached(ctx, cacheKeyCode(code)); tenant != nil {
		return tenant, nil
	}
	tenant, err := r.scanOne(r.db.QueryRow(ctx,
		selectColumns+` FROM tenants WHERE code = $1 AND status <> $2`, code, model.StatusDeleted))
	if err != nil || tenant == nil {
		return nil, err
	}
	r.cacheSet(ctx, cacheKeyCode(code), tenant)
	return tenant, nil
}

// List returns tenants matching the filter, newest first.
func (r *TenantRepository) List(ctx context.Context, filter ListFilter) ([]*model.Tenant, error) {
	query := selectColumns + ` FROM tenants`
	args := []any{}
	switch {
	case filter.Status != "":
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	case !filter.IncludeDeleted:
		query += ` WHERE status <> $1`
		args = append(args, model.StatusDeleted)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*model.Tenant
	for rows.Next() {
		tenant, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// SetStatus transitions a tenant between lifecycle states. Deleted is
// terminal; moving into it stamps deleted_at. The update is conditional on
// the status observed here, so a concurrent transition loses cleanly.
func (r *TenantRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	tenant, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return errs.Newf(errs.CodeNotFound, "tenant %s not found", id)
	}
	if !tenant.Status.CanTransitionTo(status) {
		return errs.Newf(errs.CodeBadTransition, "cannot transition tenant from %s to %s", tenant.Status, status)
	}

	var tag pgconn.CommandTag
	if status == model.StatusDeleted {
		tag, err = r.db.Exec(ctx,
			`UPDATE tenants SET status = $3, deleted_at = now(), updated_at = now() WHERE id = $1 AND status = $2`,
			id, tenant.Status, status)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE tenants SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
			id, tenant.Status, status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.CodeNotFound, "tenant %s changed concurrently", id)
	}

	r.invalidate(ctx, tenant)
	return nil
}

// UpdateMetadata updates the mutable business metadata of a tenant. The code
// is immutable after provisioning and is deliberately absent here.
func (r *TenantRepository) UpdateMetadata(ctx context.Context, tenant *model.Tenant) error {
	if err := r.encryptEmail(tenant); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE tenants SET display_name = $2, encrypted_email = $3, email_iv = $4, contact_phone = $5, updated_at = now()
         WHERE id = $1 AND status <> $6`,
		tenant.ID, tenant.DisplayName, tenant.EncryptedEmail, tenant.EmailIV, tenant.ContactPhone, model.StatusDeleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.CodeNotFound, "tenant %s not found", tenant.ID)
	}
	r.invalidate(ctx, tenant)
	return nil
}

// CreateProvisioningLog appends one step of the provisioning audit trail.
func (r *TenantRepository) CreateProvisioningLog(ctx context.Context, tenantID uuid.UUID, step, status string, details any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO tenant_provisioning_logs (tenant_id, step, status, details, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		tenantID, step, status, detailsJSON, time.Now())
	return err
}

const selectColumns = `SELECT id, code, display_name, encrypted_email, email_iv, contact_phone, status, naming_generation, created_at, updated_at, deleted_at`

func (r *TenantRepository) scanOne(row pgx.Row) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.Code, &tenant.DisplayName, &tenant.EncryptedEmail, &tenant.EmailIV,
		&tenant.ContactPhone, &tenant.Status, &tenant.Generation, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.cipher != nil && len(tenant.EncryptedEmail) > 0 && len(tenant.EmailIV) > 0 {
		email, err := r.cipher.Decrypt(tenant.EncryptedEmail, tenant.EmailIV)
		if err != nil {
			return nil, err
		}
		tenant.ContactEmail = email
	}
	return tenant, nil
}

func (r *TenantRepository) encryptEmail(tenant *model.Tenant) error {
	if r.cipher == nil || tenant.ContactEmail == "" {
		return nil
	}
	encrypted, iv, err := r.cipher.Encrypt(tenant.ContactEmail)
	if err != nil {
		return err
	}
	tenant.EncryptedEmail = encrypted
	tenant.EmailIV = iv
	return nil
}

func cacheKeyID(id uuid.UUID) string {
	return fmt.Sprintf("tenant:id:%s", id)
}

func cacheKeyCode(code string) string {
	return fmt.Sprintf("tenant:code:%s", code)
}

func (r *TenantRepository) cached(ctx context.Context, key string) *model.Tenant {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	tenant := &model.Tenant{}
	if err := json.Unmarshal([]byte(data), tenant); err != nil {
		return nil
	}
	return tenant
}

func (r *TenantRepository) cacheSet(ctx context.Context, key string, tenant *model.Tenant) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	r.cache.SetEx(ctx, key, data, cacheTTL)
}

func (r *TenantRepository) invalidate(ctx context.Context, tenant *model.Tenant) {
	if r.cache == nil {
		return
	}
	r.cache.Del(ctx, cacheKeyID(tenant.ID), cacheKeyCode(tenant.Code))
}
