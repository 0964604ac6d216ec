// Package metrics defines the orchestrator's Prometheus instruments:
// a healing actions counter, a per-node drift gauge, and a per-node
// risk score gauge, grounded on the fleet-metrics patterns used across
// the infra-operator examples in the pack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is Chimera's private Prometheus registry; callers mount it
// behind promhttp.HandlerFor rather than registering on the global
// default registry, so multiple orchestrator instances in tests don't
// collide.
var Registry = prometheus.NewRegistry()

var (
	// HealingActionsTotal counts healing commands executed, by node and
	// outcome.
	HealingActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chimera_healing_actions_total",
		Help: "Total healing actions executed, labeled by node and outcome.",
	}, []string{"node", "outcome"})

	// DriftSeverity reports each node's current drift severity as a
	// numeric gauge (0=none, 1=low, 2=medium, 3=high, 4=critical).
	DriftSeverity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chimera_drift_severity",
		Help: "Current drift severity per node (0=none .. 4=critical).",
	}, []string{"node"})

	// RiskScore reports each node's predicted-risk score from the
	// analytics service.
	RiskScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chimera_risk_score",
		Help: "Current predictive risk score per node, in [0, 1].",
	}, []string{"node"})

	// ConnectedAgents reports the number of agents currently registered.
	ConnectedAgents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chimera_connected_agents",
		Help: "Number of agents currently present in the registry.",
	})
)

func init() {
	Registry.MustRegister(HealingActionsTotal, DriftSeverity, RiskScore, ConnectedAgents)
}

// SeverityValue maps a drift severity string to the numeric scale
// DriftSeverity uses.
func SeverityValue(severity string) float64 {
	switch severity {
	case "LOW":
		return 1
	case "MEDIUM":
		return 2
	case "HIGH":
		return 3
	case "CRITICAL":
		return 4
	default:
		return 0
	}
}
