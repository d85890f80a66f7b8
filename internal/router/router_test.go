package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/salonsuite/tenant-management-service/internal/errs"
)

type fakeHandle struct {
	name    string
	pingErr error
	closed  bool
}

func (h *fakeHandle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("EXEC"), nil
}

func (h *fakeHandle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (h *fakeHandle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (h *fakeHandle) Ping(ctx context.Context) error { return h.pingErr }

func (h *fakeHandle) Close() { h.closed = true }

type fakeServer struct {
	mu      sync.Mutex
	opens   map[string]int
	openErr map[string]error
	gates   map[string]chan struct{} // Open blocks on the gate when present

	databases []DatabaseInfo
	exists    map[string]bool
	created   []string
	dropped   []string
	dropErr   map[string]error

	handles map[string]*fakeHandle
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		opens:   make(map[string]int),
		openErr: make(map[string]error),
		gates:   make(map[string]chan struct{}),
		exists:  make(map[string]bool),
		dropErr: make(map[string]error),
		handles: make(map[string]*fakeHandle),
	}
}

func (s *fakeServer) Open(ctx context.Context, database string) (Handle, error) {
	s.mu.Lock()
	s.opens[database]++
	gate := s.gates[database]
	err := s.openErr[database]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	h := &fakeHandle{name: database}
	s.mu.Lock()
	s.handles[database] = h
	s.mu.Unlock()
	return h, nil
}

func (s *fakeServer) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	return s.databases, nil
}

func (s *fakeServer) DatabaseExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists[name], nil
}

func (s *fakeServer) CreateDatabase(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists[name] = true
	s.created = append(s.created, name)
	return nil
}

func (s *fakeServer) DropDatabase(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dropErr[name]; err != nil {
		return err
	}
	s.dropped = append(s.dropped, name)
	return nil
}

func (s *fakeServer) openCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[name]
}

func TestGetDialsOncePerName(t *testing.T) {
	srv := newFakeServer()
	r := New(srv)
	ctx := context.Background()

	const callers = 50
	handles := make([]Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Get(ctx, "salon_glow-salon")
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, srv.openCount("salon_glow-salon"))
	for i := 1; i < callers; i++ {
		assert.Same(t, handles[0], handles[i])
	}
}

func TestGetDistinctNamesDoNotBlockEachOther(t *testing.T) {
	srv := newFakeServer()
	gate := make(chan struct{})
	srv.gates["salon_slow"] = gate
	r := New(srv)
	ctx := context.Background()

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := r.Get(ctx, "salon_slow")
		assert.NoError(t, err)
	}()

	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, err := r.Get(ctx, "salon_fast")
		assert.NoError(t, err)
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Get for a different name blocked behind an in-flight dial")
	}

	close(gate)
	<-slowDone
	assert.Equal(t, 1, srv.openCount("salon_slow"))
}

func TestGetFailureIsNotCached(t *testing.T) {
	srv := newFakeServer()
	srv.openErr["salon_acme"] = errors.New("connection refused")
	r := New(srv)
	ctx := context.Background()

	_, err := r.Get(ctx, "salon_acme")
	assert.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConnection))

	srv.mu.Lock()
	delete(srv.openErr, "salon_acme")
	srv.mu.Unlock()

	h, err := r.Get(ctx, "salon_acme")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, srv.openCount("salon_acme"))
}

func TestHealthCheckEvictsBrokenHandles(t *testing.T) {
	srv := newFakeServer()
	r := New(srv)
	ctx := context.Background()

	h, err := r.Get(ctx, "salon_acme")
	assert.NoError(t, err)
	_, err = r.Get(ctx, "salon_glow")
	assert.NoError(t, err)

	h.(*fakeHandle).pingErr = errors.New("server closed the connection")
	evicted := r.HealthCheck(ctx)
	assert.Equal(t, []string{"salon_acme"}, evicted)
	assert.True(t, h.(*fakeHandle).closed)

	// Next request re-dials instead of serving the broken handle.
	h2, err := r.Get(ctx, "salon_acme")
	assert.NoError(t, err)
	assert.NotSame(t, h, h2)
	assert.Equal(t, 2, srv.openCount("salon_acme"))
	assert.Equal(t, 1, srv.openCount("salon_glow"))
}

func TestDropDatabaseEvictsHandle(t *testing.T) {
	srv := newFakeServer()
	r := New(srv)
	ctx := context.Background()

	h, err := r.Get(ctx, "salon_closing")
	assert.NoError(t, err)

	assert.NoError(t, r.DropDatabase(ctx, "salon_closing"))
	assert.True(t, h.(*fakeHandle).closed)
	assert.Equal(t, []string{"salon_closing"}, srv.dropped)
}

func TestEnsureDatabase(t *testing.T) {
	srv := newFakeServer()
	r := New(srv)
	ctx := context.Background()

	created, err := r.EnsureDatabase(ctx, "salon_new")
	assert.NoError(t, err)
	assert.True(t, created)

	created, err = r.EnsureDatabase(ctx, "salon_new")
	assert.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"salon_new"}, srv.created)
}

func TestCloseReleasesHandles(t *testing.T) {
	srv := newFakeServer()
	r := New(srv)
	ctx := context.Background()

	h, err := r.Get(ctx, "salon_acme")
	assert.NoError(t, err)

	r.Close()
	assert.True(t, h.(*fakeHandle).closed)

	// Router stays usable after Close; a new handle is dialed.
	_, err = r.Get(ctx, "salon_acme")
	assert.NoError(t, err)
	assert.Equal(t, 2, srv.openCount("salon_acme"))
}
