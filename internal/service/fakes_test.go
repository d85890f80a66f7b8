package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/model"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
	"github.com/salonsuite/tenant-management-service/internal/store"
)

// fakeRegistry is an in-memory Registry with the same uniqueness and
// transition semantics as the real repository.
type fakeRegistry struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*model.Tenant
	logs    []provLog
}

type provLog struct {
	tenantID uuid.UUID
	step     string
	status   string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tenants: make(map[uuid.UUID]*model.Tenant)}
}

func (r *fakeRegistry) Create(ctx context.Context, tenant *model.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tenants {
		if existing.Code == tenant.Code && existing.Status != model.StatusDeleted {
			return errs.Newf(errs.CodeDuplicateCode, "tenant code %q is already taken", tenant.Code)
		}
	}
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.Status == "" {
		tenant.Status = model.StatusActive
	}
	if tenant.Generation == "" {
		tenant.Generation = string(naming.GenerationCurrent)
	}
	clone := *tenant
	r.tenants[tenant.ID] = &clone
	return nil
}

func (r *fakeRegistry) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenant, ok := r.tenants[id]
	if !ok {
		return nil, nil
	}
	clone := *tenant
	return &clone, nil
}

func (r *fakeRegistry) FindByCode(ctx context.Context, code string) (*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tenant := range r.tenants {
		if tenant.Code == code && tenant.Status != model.StatusDeleted {
			clone := *tenant
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistry) List(ctx context.Context, filter store.ListFilter) ([]*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Tenant
	for _, tenant := range r.tenants {
		switch {
		case filter.Status != "" && tenant.Status != filter.Status:
		case filter.Status == "" && !filter.IncludeDeleted && tenant.Status == model.StatusDeleted:
		default:
			clone := *tenant
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRegistry) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenant, ok := r.tenants[id]
	if !ok {
		return errs.Newf(errs.CodeNotFound, "tenant %s not found", id)
	}
	if !tenant.Status.CanTransitionTo(status) {
		return errs.Newf(errs.CodeBadTransition, "cannot transition tenant from %s to %s", tenant.Status, status)
	}
	tenant.Status = status
	tenant.UpdatedAt = time.Now()
	if status == model.StatusDeleted {
		now := time.Now()
		tenant.DeletedAt = &now
	}
	return nil
}

func (r *fakeRegistry) CreateProvisioningLog(ctx context.Context, tenantID uuid.UUID, step, status string, details any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, provLog{tenantID: tenantID, step: step, status: status})
	return nil
}

func (r *fakeRegistry) nonDeletedCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tenant := range r.tenants {
		if tenant.Code == code && tenant.Status != model.StatusDeleted {
			n++
		}
	}
	return n
}

// fakeHandle records every statement executed against one tenant database.
// Failure injection is read from the owning server on every call, so a test
// can clear it between provisioning attempts.
type fakeHandle struct {
	mu       sync.Mutex
	srv      *fakeServer
	database string
	execs    []string
	closed   bool
}

func (h *fakeHandle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if fn := h.srv.execFailure(); fn != nil {
		if err := fn(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execs = append(h.execs, sql)
	return pgconn.NewCommandTag("EXEC"), nil
}

func (h *fakeHandle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errs.New(errs.CodeInternal, "not implemented")
}

func (h *fakeHandle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (h *fakeHandle) Ping(ctx context.Context) error { return nil }

func (h *fakeHandle) Close() { h.closed = true }

func (h *fakeHandle) executed(substr string) bool {
	for _, sql := range h.statements() {
		if strings.Contains(sql, substr) {
			return true
		}
	}
	return false
}

func (h *fakeHandle) statements() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.execs))
	copy(out, h.execs)
	return out
}

// fakeServer is an in-memory database server.
type fakeServer struct {
	mu      sync.Mutex
	sizes   map[string]int64
	handles map[string]*fakeHandle
	created []string
	dropped []string
	dropErr map[string]error
	execErr func(sql string) error
}

func newFakeServer(databases ...string) *fakeServer {
	s := &fakeServer{
		sizes:   make(map[string]int64),
		handles: make(map[string]*fakeHandle),
		dropErr: make(map[string]error),
	}
	for _, name := range databases {
		s.sizes[name] = 1024
	}
	return s
}

func (s *fakeServer) Open(ctx context.Context, database string) (router.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sizes[database]; !ok {
		return nil, errs.Newf(errs.CodeNotFound, "database %q does not exist", database)
	}
	h := &fakeHandle{srv: s, database: database}
	s.handles[database] = h
	return h, nil
}

func (s *fakeServer) ListDatabases(ctx context.Context) ([]router.DatabaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []router.DatabaseInfo
	for name, size := range s.sizes {
		out = append(out, router.DatabaseInfo{Name: name, SizeBytes: size})
	}
	return out, nil
}

func (s *fakeServer) DatabaseExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sizes[name]
	return ok, nil
}

func (s *fakeServer) CreateDatabase(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes[name] = 0
	s.created = append(s.created, name)
	return nil
}

func (s *fakeServer) DropDatabase(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dropErr[name]; err != nil {
		return err
	}
	delete(s.sizes, name)
	s.dropped = append(s.dropped, name)
	return nil
}

func (s *fakeServer) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name := range s.sizes {
		out = append(out, name)
	}
	return out
}

func (s *fakeServer) handle(database string) *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[database]
}

func (s *fakeServer) execFailure() func(sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execErr
}
