package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PolicyDecisions counts access evaluations by final decision.
	PolicyDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Total number of access evaluations by final decision",
		},
		[]string{"decision"},
	)

	// PolicyViolations counts recorded violations by rule.
	PolicyViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_violations_total",
			Help:      "Total number of policy violations recorded",
		},
		[]string{"rule_id"},
	)

	// PolicyEvaluationDuration measures a single access evaluation.
	PolicyEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "policy_evaluation_duration_seconds",
			Help:      "Access evaluation duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// RoutesTotal counts routing decisions by functional domain.
	RoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Total number of intents routed, by functional domain",
		},
		[]string{"domain", "matched"},
	)

	// ScaffoldTransitions counts scaffold step results by step and status.
	ScaffoldTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scaffold_transitions_total",
			Help:      "Total number of scaffold step results recorded",
		},
		[]string{"step", "status"},
	)

	// TasksActive tracks tasks that have not completed all steps.
	TasksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active",
			Help:      "Number of scaffold tasks that are not complete",
		},
	)

	// LedgerAppends counts witnessing ledger appends by outcome.
	LedgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_appends_total",
			Help:      "Total number of witnessing ledger appends",
		},
		[]string{"status"},
	)

	// LedgerHeight is the sequence number of the newest ledger entry.
	LedgerHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_height",
			Help:      "Sequence number of the newest witnessing ledger entry",
		},
	)
)

func registerDomainMetrics() error {
	return register(
		PolicyDecisions,
		PolicyViolations,
		PolicyEvaluationDuration,
		RoutesTotal,
		ScaffoldTransitions,
		TasksActive,
		LedgerAppends,
		LedgerHeight,
	)
}
