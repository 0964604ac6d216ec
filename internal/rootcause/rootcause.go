// Package rootcause implements Chimera's heuristic root-cause analyzer:
// temporal clustering, spatial correlation, deploy-proximity
// correlation, and health-signal correlation over a set of drift
// reports, classified deterministically into a probable cause category
// with a confidence score and a narrative causal chain.
package rootcause

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultTemporalWindow is the window within which drift events are
// considered temporally correlated.
const DefaultTemporalWindow = 60 * time.Second

// DefaultUpstreamThresholdRatio is the minimum summed temporal-cluster
// weight (when more than one node drifted) required to classify the
// cause as an upstream config change.
const DefaultUpstreamThresholdRatio = 0.5

// CauseCategory is the high-level classification of a root cause.
type CauseCategory int

const (
	CauseUnknown CauseCategory = iota
	CauseLocalIssue
	CauseUpstreamConfigChange
	CauseDeployRelated
	CauseNetworkPartition
)

func (c CauseCategory) String() string {
	switch c {
	case CauseLocalIssue:
		return "LOCAL_ISSUE"
	case CauseUpstreamConfigChange:
		return "UPSTREAM_CONFIG_CHANGE"
	case CauseDeployRelated:
		return "DEPLOY_RELATED"
	case CauseNetworkPartition:
		return "NETWORK_PARTITION"
	default:
		return "UNKNOWN"
	}
}

// HealthStatus mirrors the subset of agent statuses the analyzer reads.
type HealthStatus int

const (
	HealthHealthy HealthStatus = iota
	HealthDegraded
	HealthUnreachable
)

// DriftReport is the minimal drift observation the analyzer consumes.
type DriftReport struct {
	NodeID     string
	Severity   string // "LOW", "MEDIUM", "HIGH", "CRITICAL"
	DetectedAt time.Time
}

// NodeHealth is the minimal health snapshot the analyzer consumes.
type NodeHealth struct {
	NodeID string
	Status HealthStatus
}

// CausalFactor is one contributing signal in the analysis.
type CausalFactor struct {
	Description string
	Weight      float64
	Evidence    string
}

// CausalChain is an ordered narrative from root cause to observed
// symptom.
type CausalChain struct {
	Steps            []string
	AffectedNodeIDs  []string
}

// Report is the complete root-cause analysis result.
type Report struct {
	ProbableCause       CauseCategory
	Confidence          float64
	Summary             string
	CausalChain         CausalChain
	ContributingFactors []CausalFactor
	AffectedNodeIDs     []string
	AnalyzedAt          time.Time
}

// IsHighConfidence reports whether the analysis confidence is >= 0.7.
func (r Report) IsHighConfidence() bool {
	return r.Confidence >= 0.7
}

// Analyzer performs heuristic root-cause analysis.
type Analyzer struct {
	temporalWindow          time.Duration
	upstreamThresholdRatio float64
}

// NewAnalyzer constructs an Analyzer with the default thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		temporalWindow:         DefaultTemporalWindow,
		upstreamThresholdRatio: DefaultUpstreamThresholdRatio,
	}
}

// Analyze runs root cause analysis over drift reports, health
// snapshots, optional deploy timestamps, and an optional node-id to
// group map.
func (a *Analyzer) Analyze(reports []DriftReport, snapshots []NodeHealth, deployTimestamps []time.Time, nodeGroups map[string]string) Report {
	if len(reports) == 0 {
		return Report{
			ProbableCause: CauseUnknown,
			Confidence:    0,
			Summary:       "no drift reports provided for analysis",
			CausalChain:   CausalChain{Steps: []string{"no events to analyze"}},
			AnalyzedAt:    time.Now().UTC(),
		}
	}

	var factors []CausalFactor

	clusters := findTemporalClusters(reports, a.temporalWindow)
	factors = append(factors, evaluateTemporal(clusters, reports, a.temporalWindow)...)

	if len(nodeGroups) > 0 {
		factors = append(factors, evaluateSpatial(reports, nodeGroups)...)
	}

	if len(deployTimestamps) > 0 {
		factors = append(factors, evaluateDeployProximity(reports, deployTimestamps, a.temporalWindow)...)
	}

	factors = append(factors, evaluateHealthSignals(snapshots)...)
	factors = append(factors, evaluateSeverity(reports)...)

	cause := a.classifyCause(factors, reports)
	confidence := computeConfidence(factors)
	chain := buildCausalChain(cause, reports)
	affected := distinctNodeIDs(reports)
	summary := generateSummary(cause, confidence, reports, factors)

	return Report{
		ProbableCause:       cause,
		Confidence:          confidence,
		Summary:             summary,
		CausalChain:         chain,
		ContributingFactors: factors,
		AffectedNodeIDs:     affected,
		AnalyzedAt:          time.Now().UTC(),
	}
}

func distinctNodeIDs(reports []DriftReport) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range reports {
		if !seen[r.NodeID] {
			seen[r.NodeID] = true
			ids = append(ids, r.NodeID)
		}
	}
	sort.Strings(ids)
	return ids
}

func findTemporalClusters(reports []DriftReport, window time.Duration) [][]DriftReport {
	sorted := make([]DriftReport, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DetectedAt.Before(sorted[j].DetectedAt) })

	clusters := [][]DriftReport{{sorted[0]}}
	for _, r := range sorted[1:] {
		last := clusters[len(clusters)-1]
		if r.DetectedAt.Sub(last[len(last)-1].DetectedAt) <= window {
			clusters[len(clusters)-1] = append(last, r)
		} else {
			clusters = append(clusters, []DriftReport{r})
		}
	}
	return clusters
}

func evaluateTemporal(clusters [][]DriftReport, allReports []DriftReport, window time.Duration) []CausalFactor {
	var factors []CausalFactor
	totalNodes := len(distinctNodeIDs(allReports))
	if totalNodes == 0 {
		totalNodes = 1
	}

	for _, cluster := range clusters {
		nodeSet := distinctNodeIDs(cluster)
		size := len(nodeSet)

		if size > 1 {
			ratio := float64(size) / float64(totalNodes)
			weight := math.Min(ratio, 1.0)
			factors = append(factors, CausalFactor{
				Description: fmt.Sprintf("%d nodes drifted within %.0fs window", size, window.Seconds()),
				Weight:      weight,
				Evidence:    "correlated nodes: " + strings.Join(nodeSet, ", "),
			})
		} else {
			factors = append(factors, CausalFactor{
				Description: "single node drift (isolated event)",
				Weight:      0.3,
				Evidence:    "node: " + cluster[0].NodeID,
			})
		}
	}
	return factors
}

func evaluateSpatial(reports []DriftReport, nodeGroups map[string]string) []CausalFactor {
	groupHits := make(map[string][]string)
	for _, r := range reports {
		group, ok := nodeGroups[r.NodeID]
		if !ok {
			group = "unknown"
		}
		groupHits[group] = append(groupHits[group], r.NodeID)
	}

	groups := make([]string, 0, len(groupHits))
	for g := range groupHits {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var factors []CausalFactor
	for _, group := range groups {
		if group == "unknown" {
			continue
		}
		nodeIDs := groupHits[group]
		if len(nodeIDs) > 1 {
			sorted := append([]string{}, nodeIDs...)
			sort.Strings(sorted)
			factors = append(factors, CausalFactor{
				Description: fmt.Sprintf("multiple drifts in group '%s' (%d nodes)", group, len(nodeIDs)),
				Weight:      math.Min(float64(len(nodeIDs))*0.2, 0.8),
				Evidence:    "affected nodes: " + strings.Join(sorted, ", "),
			})
		}
	}
	return factors
}

func evaluateDeployProximity(reports []DriftReport, deployTimestamps []time.Time, window time.Duration) []CausalFactor {
	var factors []CausalFactor
	for _, r := range reports {
		for _, deployTS := range deployTimestamps {
			delta := r.DetectedAt.Sub(deployTS)
			if delta < 0 {
				delta = -delta
			}
			if delta <= window {
				weight := math.Max(0.3, 1.0-delta.Seconds()/window.Seconds())
				factors = append(factors, CausalFactor{
					Description: fmt.Sprintf("drift on %s detected %.0fs after a deployment", r.NodeID, delta.Seconds()),
					Weight:      weight,
					Evidence:    fmt.Sprintf("deploy at %s, drift at %s", deployTS.Format(time.RFC3339), r.DetectedAt.Format(time.RFC3339)),
				})
				break
			}
		}
	}
	return factors
}

func evaluateHealthSignals(snapshots []NodeHealth) []CausalFactor {
	var factors []CausalFactor

	var unreachable []string
	var degraded []string
	for _, s := range snapshots {
		switch s.Status {
		case HealthUnreachable:
			unreachable = append(unreachable, s.NodeID)
		case HealthDegraded:
			degraded = append(degraded, s.NodeID)
		}
	}

	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		factors = append(factors, CausalFactor{
			Description: fmt.Sprintf("%d node(s) unreachable (possible network partition)", len(unreachable)),
			Weight:      math.Min(float64(len(unreachable))*0.25, 0.8),
			Evidence:    "unreachable nodes: " + strings.Join(unreachable, ", "),
		})
	}
	if len(degraded) > 0 {
		sort.Strings(degraded)
		factors = append(factors, CausalFactor{
			Description: fmt.Sprintf("%d node(s) in degraded state", len(degraded)),
			Weight:      math.Min(float64(len(degraded))*0.15, 0.6),
			Evidence:    "degraded nodes: " + strings.Join(degraded, ", "),
		})
	}
	return factors
}

func evaluateSeverity(reports []DriftReport) []CausalFactor {
	critical := 0
	for _, r := range reports {
		if r.Severity == "CRITICAL" {
			critical++
		}
	}
	if critical == 0 {
		return nil
	}
	return []CausalFactor{{
		Description: fmt.Sprintf("%d critical-severity drift(s) detected", critical),
		Weight:      math.Min(float64(critical)*0.2, 0.6),
		Evidence:    fmt.Sprintf("critical drifts: %d/%d", critical, len(reports)),
	}}
}

func (a *Analyzer) classifyCause(factors []CausalFactor, reports []DriftReport) CauseCategory {
	distinctNodes := distinctNodeIDs(reports)

	var partitionWeight, deployWeight, temporalWeight float64
	for _, f := range factors {
		lower := strings.ToLower(f.Description)
		if strings.Contains(lower, "unreachable") || strings.Contains(lower, "network partition") {
			partitionWeight += f.Weight
		}
		if strings.Contains(lower, "deployment") || strings.Contains(lower, "deploy") {
			deployWeight += f.Weight
		}
		if strings.Contains(lower, "nodes drifted within") {
			temporalWeight += f.Weight
		}
	}

	if partitionWeight >= 0.5 {
		return CauseNetworkPartition
	}
	if deployWeight >= 0.5 {
		return CauseDeployRelated
	}
	if len(distinctNodes) > 1 && temporalWeight >= a.upstreamThresholdRatio {
		return CauseUpstreamConfigChange
	}
	if len(distinctNodes) == 1 {
		return CauseLocalIssue
	}
	if len(distinctNodes) > 1 {
		return CauseUpstreamConfigChange
	}
	return CauseUnknown
}

func computeConfidence(factors []CausalFactor) float64 {
	if len(factors) == 0 {
		return 0
	}
	var total float64
	for _, f := range factors {
		total += f.Weight
	}
	avg := total / float64(len(factors))
	bonus := math.Min(float64(len(factors))*0.03, 0.15)
	confidence := math.Min(avg+bonus, 1.0)
	return math.Round(confidence*1000) / 1000
}

func buildCausalChain(cause CauseCategory, reports []DriftReport) CausalChain {
	affected := distinctNodeIDs(reports)
	nodeList := strings.Join(affected, ", ")
	var steps []string

	switch cause {
	case CauseUpstreamConfigChange:
		steps = []string{
			"upstream configuration source changed",
			fmt.Sprintf("new configuration propagated to %d node(s)", len(affected)),
			"configuration drift detected on: " + nodeList,
		}
	case CauseLocalIssue:
		nodeID := ""
		if len(affected) > 0 {
			nodeID = affected[0]
		}
		steps = []string{
			fmt.Sprintf("local state diverged on node %s", nodeID),
			"node configuration no longer matches expected fingerprint",
			"drift detected on: " + nodeID,
		}
	case CauseDeployRelated:
		steps = []string{
			"deployment executed on the fleet",
			"post-deploy state does not match expected configuration",
			"drift detected on: " + nodeList,
		}
	case CauseNetworkPartition:
		steps = []string{
			"network connectivity disrupted",
			"nodes became unreachable or reported stale state",
			"drift/unreachability observed on: " + nodeList,
		}
	default:
		steps = []string{
			"root cause undetermined",
			"drift observed on: " + nodeList,
		}
	}

	return CausalChain{Steps: steps, AffectedNodeIDs: affected}
}

func generateSummary(cause CauseCategory, confidence float64, reports []DriftReport, factors []CausalFactor) string {
	nodeCount := len(distinctNodeIDs(reports))
	causeLabel := strings.ToLower(strings.ReplaceAll(cause.String(), "_", " "))
	pct := int(confidence * 100)
	return fmt.Sprintf(
		"root cause analysis identified '%s' as the probable cause with %d%% confidence. %d node(s) affected, %d corroborating signal(s) evaluated.",
		causeLabel, pct, nodeCount, len(factors),
	)
}
