package router

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgServer implements Server against one PostgreSQL server. All tenants
// share this server; isolation is at the database-name level.
type PgServer struct {
	connString string
	admin      *pgxpool.Pool
}

// NewPgServer connects the administrative pool to the control-plane database
// of the server addressed by connString. The same connection string, with
// the database swapped, is used for every tenant handle.
func NewPgServer(ctx context.Context, connString, controlPlane string) (*PgServer, error) {
	cfg, err := poolConfig(connString, controlPlane)
	if err != nil {
		return nil, err
	}
	admin, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin pool: %w", err)
	}
	if err := admin.Ping(ctx); err != nil {
		admin.Close()
		return nil, fmt.Errorf("failed to reach database server: %w", err)
	}
	return &PgServer{connString: connString, admin: admin}, nil
}

func poolConfig(connString, database string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.ConnConfig.Database = database
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	return cfg, nil
}

// Admin returns the pool connected to the control-plane database.
func (s *PgServer) Admin() *pgxpool.Pool {
	return s.admin
}

// Open dials a pool for one physical database and verifies it is reachable.
func (s *PgServer) Open(ctx context.Context, database string) (Handle, error) {
	cfg, err := poolConfig(s.connString, database)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ListDatabases returns every non-template database with its on-disk size.
func (s *PgServer) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	rows, err := s.admin.Query(ctx,
		`SELECT datname, pg_database_size(datname)
		 FROM pg_database
		 WHERE datistemplate = false
		 ORDER BY datname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dbs []DatabaseInfo
	for rows.Next() {
		var info DatabaseInfo
		if err := rows.Scan(&info.Name, &info.SizeBytes); err != nil {
			return nil, err
		}
		dbs = append(dbs, info)
	}
	return dbs, rows.Err()
}

// DatabaseExists checks for the named database in the server catalog.
func (s *PgServer) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.admin.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	return exists, err
}

// CreateDatabase creates the named database. DDL cannot be parameterized, so
// the name is quoted as an identifier.
func (s *PgServer) CreateDatabase(ctx context.Context, name string) error {
	_, err := s.admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	return err
}

// DropDatabase destroys the named database and every object inside it.
func (s *PgServer) DropDatabase(ctx context.Context, name string) error {
	_, err := s.admin.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize())
	return err
}

// Close closes the administrative pool.
func (s *PgServer) Close() {
	s.admin.Close()
}
