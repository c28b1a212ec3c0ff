package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forestry_operation_seconds",
		Help:    "Time spent in a public tree operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CascadeRewritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forestry_cascade_rewrites_total",
		Help: "Total number of descendant paths rewritten by move cascades.",
	})

	OrphansResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forestry_orphans_resolved_total",
		Help: "Total number of descendants handled on ancestor deletion, by strategy.",
	}, []string{"strategy"})

	IntegrityViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forestry_integrity_violations_total",
		Help: "Total number of integrity violations reported, by kind.",
	}, []string{"kind"})

	RestoreRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forestry_restore_repairs_total",
		Help: "Total number of repairs applied by integrity restoration, by action.",
	}, []string{"action"})

	DepthRebuildRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forestry_depth_rebuild_rows_total",
		Help: "Total number of rows whose cached depth was recomputed.",
	})

	MigratedPathsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forestry_migrated_paths_total",
		Help: "Total number of paths materialized from a legacy parent column.",
	})
)
