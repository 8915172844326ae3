// Package metrics exposes Prometheus counters and gauges for the agent's
// reconcile and watchdog activity, scraped from the PushEndpoint's
// /metrics route.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReconcileRuns counts completed reconcile calls by outcome: "ok",
	// "busy", or "error".
	ReconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sliverd",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total reconcile calls, partitioned by outcome.",
	}, []string{"outcome"})

	// VolumesReconciled counts per-volume reconcile outcomes.
	VolumesReconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sliverd",
		Subsystem: "reconcile",
		Name:      "volumes_total",
		Help:      "Per-volume reconcile outcomes.",
	}, []string{"result"})

	// GatewaysRunning tracks the last-observed count of running
	// watchdogs by kind.
	GatewaysRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sliverd",
		Subsystem: "gateway",
		Name:      "running",
		Help:      "Number of running gateway watchdogs, by kind.",
	}, []string{"kind"})

	// WatchdogRespawns counts every time a Watchdog respawns its child.
	WatchdogRespawns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sliverd",
		Subsystem: "watchdog",
		Name:      "respawns_total",
		Help:      "Total number of gateway child respawns across all watchdogs.",
	})
)

func init() {
	prometheus.MustRegister(ReconcileRuns, VolumesReconciled, GatewaysRunning, WatchdogRespawns)
}
