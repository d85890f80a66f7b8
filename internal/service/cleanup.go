package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/monitoring"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
)

// CleanupService removes legacy-named and orphaned databases in bulk. It is
// only ever invoked by an operator; nothing schedules it. Operational
// precondition: no provisioning runs concurrently, since a database created
// mid-enumeration could be misclassified.
type CleanupService struct {
	router *router.Router
	scheme naming.Scheme
}

// NewCleanupService creates a CleanupService.
func NewCleanupService(rtr *router.Router, scheme naming.Scheme) *CleanupService {
	return &CleanupService{router: rtr, scheme: scheme}
}

// CleanupFailure records one database that could not be dropped.
type CleanupFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// CleanupResult summarizes an ExecuteCleanup run. On a dry run only Planned
// is populated.
type CleanupResult struct {
	DryRun  bool             `json:"dry_run"`
	Planned []string         `json:"planned"`
	Deleted []string         `json:"deleted"`
	Failed  []CleanupFailure `json:"failed"`
}

// PlanCleanup enumerates every database on the server and returns the ones
// eligible for deletion: not named in retain, and never the control plane or
// the server's own databases. It mutates nothing.
func (s *CleanupService) PlanCleanup(ctx context.Context, retain map[string]struct{}) ([]router.DatabaseInfo, error) {
	all, err := s.router.ListAllDatabases(ctx)
	if err != nil {
		return nil, err
	}

	var plan []router.DatabaseInfo
	for _, db := range all {
		if _, kept := retain[db.Name]; kept {
			continue
		}
		if !s.scheme.Classify(db.Name).Deletable() {
			continue
		}
		plan = append(plan, db)
	}
	return plan, nil
}

// ExecuteCleanup drops every database in the plan, one at a time, when
// confirmed is true. Without confirmation it reports the plan and mutates
// nothing; confirmation is never inferred. Individual drop failures are
// collected and do not abort the remaining drops.
func (s *CleanupService) ExecuteCleanup(ctx context.Context, plan []router.DatabaseInfo, confirmed bool) CleanupResult {
	result := CleanupResult{DryRun: !confirmed}
	for _, db := range plan {
		result.Planned = append(result.Planned, db.Name)
	}
	if !confirmed {
		log.Info().Int("databases", len(plan)).Msg("Cleanup dry run, nothing dropped")
		return result
	}

	for _, db := range plan {
		// Re-check even a handed-in plan; protected names are never dropped.
		if !s.scheme.Classify(db.Name).Deletable() {
			result.Failed = append(result.Failed, CleanupFailure{Name: db.Name, Error: "refusing to drop protected database"})
			continue
		}
		if err := s.router.DropDatabase(ctx, db.Name); err != nil {
			log.Error().Err(err).Str("database", db.Name).Msg("Failed to drop database")
			monitoring.DatabasesDropped.WithLabelValues("failed").Inc()
			result.Failed = append(result.Failed, CleanupFailure{Name: db.Name, Error: err.Error()})
			continue
		}
		log.Info().Str("database", db.Name).Int64("size_bytes", db.SizeBytes).Msg("Dropped database")
		monitoring.DatabasesDropped.WithLabelValues("success").Inc()
		result.Deleted = append(result.Deleted, db.Name)
	}
	return result
}
