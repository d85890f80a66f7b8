package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TenantsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenants_provisioned_total",
			Help: "Total number of tenant provisioning attempts by outcome",
		},
		[]string{"outcome"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provisioning_duration_seconds",
			Help:    "Duration of tenant provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)
	DatabasesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_databases_dropped_total",
			Help: "Total number of databases dropped by the cleanup service by outcome",
		},
		[]string{"outcome"},
	)
	HandlesOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_database_handles_opened_total",
			Help: "Total number of underlying database handles opened by the router",
		},
	)
)

func InitMetrics() {
	for _, c := range []prometheus.Collector{
		TenantsProvisioned,
		ProvisioningDuration,
		DatabasesDropped,
		HandlesOpened,
	} {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("Failed to register metric")
		}
	}
}
