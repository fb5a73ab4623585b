package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webaudit"

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	PlanResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlements",
		Name:      "plan_resolutions_total",
		Help:      "Plan resolutions by the strategy that produced the plan.",
	}, []string{"strategy"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlements",
		Name:      "cache_lookups_total",
		Help:      "Feature decision cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	FeatureDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlements",
		Name:      "feature_decisions_total",
		Help:      "Feature access decisions by outcome.",
	}, []string{"decision"})

	ExpiryRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan_expiry",
		Name:      "runs_total",
		Help:      "Plan expiry job runs by status.",
	}, []string{"status"})

	ExpiryUsers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan_expiry",
		Name:      "users_total",
		Help:      "Users handled by the plan expiry job by outcome.",
	}, []string{"outcome"})

	ExpiryLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "plan_expiry",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed plan expiry run.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PlanResolutions,
		CacheLookups,
		FeatureDecisions,
		ExpiryRuns,
		ExpiryUsers,
		ExpiryLastRun,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
