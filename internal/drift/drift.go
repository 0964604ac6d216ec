// Package drift implements Chimera's drift detection and analysis
// service: per-node and fleet-wide congruence analysis, severity
// classification, healing-action selection, and blast-radius
// computation.
package drift

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jbouey/chimera/internal/domain"
)

// Severity classifies how far a node's actual configuration diverges
// from what is expected.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// HealingAction is the remediation the drift service recommends for a
// given severity.
type HealingAction int

const (
	ActionNone HealingAction = iota
	ActionRollback
	ActionRebuild
	ActionRestartService
)

func (a HealingAction) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionRollback:
		return "ROLLBACK"
	case ActionRebuild:
		return "REBUILD"
	case ActionRestartService:
		return "RESTART_SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Detector is the capability the drift service checks nodes through.
type Detector interface {
	CheckNode(ctx context.Context, node domain.Node, expected domain.Fingerprint) (domain.CongruenceReport, error)
	GetActualFingerprint(ctx context.Context, node domain.Node) (*domain.Fingerprint, error)
}

// Analysis is the result of analyzing one node for drift.
type Analysis struct {
	Node           domain.Node
	Expected       domain.Fingerprint
	Actual         *domain.Fingerprint
	Severity       Severity
	HealingAction  HealingAction
	BlastRadius    []domain.Node
	Recommendation string
	DetectedAt     time.Time
}

// NeedsHealing reports whether this analysis recommends any action.
func (a Analysis) NeedsHealing() bool {
	return a.HealingAction != ActionNone
}

// IsCritical reports whether this analysis's severity is CRITICAL.
func (a Analysis) IsCritical() bool {
	return a.Severity == SeverityCritical
}

// Service performs drift detection and analysis over a Detector
// capability.
type Service struct {
	detector Detector
}

// NewService constructs a drift Service backed by the given Detector.
func NewService(detector Detector) *Service {
	return &Service{detector: detector}
}

// Analyze performs drift analysis on a single node with no fleet
// context, so its blast radius is always empty.
func (s *Service) Analyze(ctx context.Context, node domain.Node, expected domain.Fingerprint) (Analysis, error) {
	return s.analyzeWithFleet(ctx, node, expected, nil)
}

func (s *Service) analyzeWithFleet(ctx context.Context, node domain.Node, expected domain.Fingerprint, fleet []domain.Node) (Analysis, error) {
	report, err := s.detector.CheckNode(ctx, node, expected)
	if err != nil {
		return Analysis{}, fmt.Errorf("drift: check node %s: %w", node, err)
	}

	if report.IsCongruent {
		return Analysis{
			Node:           node,
			Expected:       expected,
			Actual:         &expected,
			Severity:       SeverityLow,
			HealingAction:  ActionNone,
			Recommendation: "no action needed - system is congruent",
			DetectedAt:     time.Now().UTC(),
		}, nil
	}

	actual := report.Actual
	severity := calculateSeverity(expected, actual)
	action := determineHealingAction(severity)
	recommendation := generateRecommendation(action, node)

	return Analysis{
		Node:           node,
		Expected:       expected,
		Actual:         actual,
		Severity:       severity,
		HealingAction:  action,
		BlastRadius:    blastRadius(node, fleet),
		Recommendation: recommendation,
		DetectedAt:     time.Now().UTC(),
	}, nil
}

func calculateSeverity(expected domain.Fingerprint, actual *domain.Fingerprint) Severity {
	if actual == nil {
		return SeverityCritical
	}
	if actual.IsZero() || actual.String() == domain.ZeroFingerprint {
		return SeverityHigh
	}
	if actual.Equal(expected) {
		return SeverityLow
	}
	return SeverityMedium
}

func determineHealingAction(severity Severity) HealingAction {
	switch severity {
	case SeverityCritical:
		return ActionRollback
	case SeverityHigh:
		return ActionRebuild
	case SeverityMedium:
		return ActionRestartService
	default:
		return ActionNone
	}
}

func generateRecommendation(action HealingAction, node domain.Node) string {
	switch action {
	case ActionNone:
		return "no fix required"
	case ActionRollback:
		return fmt.Sprintf("rollback node %s to previous generation: critical drift detected, immediate rollback recommended", node.Host)
	case ActionRebuild:
		return fmt.Sprintf("rebuild node %s with expected configuration: significant drift detected, full rebuild required", node.Host)
	case ActionRestartService:
		return fmt.Sprintf("restart affected services on %s: minor drift detected, service restart should resolve", node.Host)
	default:
		return "manual intervention required"
	}
}

// blastRadius returns the other fleet nodes sharing node's host prefix.
func blastRadius(node domain.Node, fleet []domain.Node) []domain.Node {
	prefix := node.HostPrefix()
	var affected []domain.Node
	for _, n := range fleet {
		if n == node {
			continue
		}
		if n.HostPrefix() == prefix {
			affected = append(affected, n)
		}
	}
	return affected
}

// severityRank orders severities CRITICAL < HIGH < MEDIUM < LOW for the
// stable sort in AnalyzeFleet.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// AnalyzeFleet analyzes every node concurrently, with blast radius
// computed against the full fleet, and returns the results sorted by
// severity (CRITICAL first), stably.
func (s *Service) AnalyzeFleet(ctx context.Context, nodes []domain.Node, expected domain.Fingerprint) ([]Analysis, error) {
	results := make([]Analysis, len(nodes))
	errs := make([]error, len(nodes))

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node domain.Node) {
			defer wg.Done()
			a, err := s.analyzeWithFleet(ctx, node, expected, nodes)
			results[i] = a
			errs[i] = err
		}(i, node)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return severityRank(results[i].Severity) < severityRank(results[j].Severity)
	})
	return results, nil
}

// HealingPlan groups analyses by recommended healing action, always
// populating all four buckets even when empty.
func HealingPlan(analyses []Analysis) map[HealingAction][]Analysis {
	plan := map[HealingAction][]Analysis{
		ActionRollback:        {},
		ActionRebuild:         {},
		ActionRestartService:  {},
		ActionNone:            {},
	}
	for _, a := range analyses {
		plan[a.HealingAction] = append(plan[a.HealingAction], a)
	}
	return plan
}
