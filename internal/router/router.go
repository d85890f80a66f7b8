// Package router owns every live connection to the database server. One
// handle is cached per physical database name; all tenant-scoped code and
// the control-plane repository go through it.
package router

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/monitoring"
)

// DatabaseInfo describes one physical database present on the server.
type DatabaseInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// Handle is the per-database surface the rest of the service depends on.
// *pgxpool.Pool satisfies it.
type Handle interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Server abstracts the underlying database server: opening a handle to one
// of its databases and the administrative operations on databases as whole
// resources.
type Server interface {
	Open(ctx context.Context, database string) (Handle, error)
	ListDatabases(ctx context.Context) ([]DatabaseInfo, error)
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
}

// Router multiplexes many logical tenant databases over one server. Lookups
// for a cached name are lock-free apart from a short map access; a cache
// miss dials at most once per name, and dialing one name never blocks
// lookups for another.
type Router struct {
	server Server

	mu      sync.Mutex
	handles map[string]*entry
}

type entry struct {
	once   sync.Once
	handle Handle
	err    error
}

// New creates a Router over the given server.
func New(server Server) *Router {
	return &Router{
		server:  server,
		handles: make(map[string]*entry),
	}
}

// Get returns the cached handle for the named database, dialing it on first
// use. Concurrent calls for the same name share a single dial. Failed dials
// are not cached; the next call retries.
func (r *Router) Get(ctx context.Context, name string) (Handle, error) {
	r.mu.Lock()
	e, ok := r.handles[name]
	if !ok {
		e = &entry{}
		r.handles[name] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.handle, e.err = r.server.Open(ctx, name)
		if e.err == nil {
			monitoring.HandlesOpened.Inc()
		}
	})
	if e.err != nil {
		r.mu.Lock()
		if r.handles[name] == e {
			delete(r.handles, name)
		}
		r.mu.Unlock()
		return nil, errs.Wrap(e.err, errs.CodeConnection, "failed to open database "+name)
	}
	return e.handle, nil
}

// Evict closes and removes the cached handle for name, if any. The next Get
// dials fresh.
func (r *Router) Evict(name string) {
	r.mu.Lock()
	e, ok := r.handles[name]
	if ok {
		delete(r.handles, name)
	}
	r.mu.Unlock()
	if ok && e.handle != nil {
		e.handle.Close()
	}
}

// HealthCheck pings every cached handle and evicts the ones that fail, so
// they are re-dialed on next use. Returns the evicted names.
func (r *Router) HealthCheck(ctx context.Context) []string {
	r.mu.Lock()
	live := make(map[string]Handle, len(r.handles))
	for name, e := range r.handles {
		if e.handle != nil {
			live[name] = e.handle
		}
	}
	r.mu.Unlock()

	var evicted []string
	for name, h := range live {
		if err := h.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("database", name).Msg("Evicting unhealthy database handle")
			r.Evict(name)
			evicted = append(evicted, name)
		}
	}
	return evicted
}

// ListAllDatabases enumerates every physical database on the server with its
// size. Administrative use only; never reachable from tenant request paths.
func (r *Router) ListAllDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	dbs, err := r.server.ListDatabases(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeConnection, "failed to enumerate databases")
	}
	return dbs, nil
}

// EnsureDatabase creates the named database unless it already exists.
// Reports whether it had to create it.
func (r *Router) EnsureDatabase(ctx context.Context, name string) (bool, error) {
	exists, err := r.server.DatabaseExists(ctx, name)
	if err != nil {
		return false, errs.Wrap(err, errs.CodeConnection, "failed to check database "+name)
	}
	if exists {
		return false, nil
	}
	if err := r.server.CreateDatabase(ctx, name); err != nil {
		return false, errs.Wrap(err, errs.CodeConnection, "failed to create database "+name)
	}
	return true, nil
}

// DropDatabase irreversibly destroys the named database. Only the cleanup
// service calls this, behind its confirmation gate.
func (r *Router) DropDatabase(ctx context.Context, name string) error {
	r.Evict(name)
	if err := r.server.DropDatabase(ctx, name); err != nil {
		return errs.Wrap(err, errs.CodeConnection, "failed to drop database "+name)
	}
	return nil
}

// Close releases every cached handle.
func (r *Router) Close() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range handles {
		if e.handle != nil {
			e.handle.Close()
		}
	}
}
