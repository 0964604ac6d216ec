package rootcause

import (
	"testing"
	"time"
)

func TestAnalyzeNoReportsReturnsUnknown(t *testing.T) {
	a := NewAnalyzer()
	report := a.Analyze(nil, nil, nil, nil)
	if report.ProbableCause != CauseUnknown || report.Confidence != 0 {
		t.Fatalf("expected zero-confidence UNKNOWN, got %+v", report)
	}
}

func TestAnalyzeSingleNodeIsLocalIssue(t *testing.T) {
	a := NewAnalyzer()
	now := time.Now().UTC()
	reports := []DriftReport{{NodeID: "web-1", Severity: "MEDIUM", DetectedAt: now}}
	report := a.Analyze(reports, nil, nil, nil)
	if report.ProbableCause != CauseLocalIssue {
		t.Fatalf("expected LOCAL_ISSUE, got %s", report.ProbableCause)
	}
}

func TestAnalyzeMultiNodeSimultaneousIsUpstream(t *testing.T) {
	a := NewAnalyzer()
	now := time.Now().UTC()
	reports := []DriftReport{
		{NodeID: "web-1", Severity: "MEDIUM", DetectedAt: now},
		{NodeID: "web-2", Severity: "MEDIUM", DetectedAt: now.Add(5 * time.Second)},
		{NodeID: "web-3", Severity: "MEDIUM", DetectedAt: now.Add(10 * time.Second)},
	}
	report := a.Analyze(reports, nil, nil, nil)
	if report.ProbableCause != CauseUpstreamConfigChange {
		t.Fatalf("expected UPSTREAM_CONFIG_CHANGE, got %s", report.ProbableCause)
	}
}

func TestAnalyzeUnreachableNodesIsNetworkPartition(t *testing.T) {
	a := NewAnalyzer()
	now := time.Now().UTC()
	reports := []DriftReport{
		{NodeID: "web-1", Severity: "MEDIUM", DetectedAt: now},
		{NodeID: "web-2", Severity: "MEDIUM", DetectedAt: now.Add(time.Second)},
	}
	health := []NodeHealth{
		{NodeID: "web-1", Status: HealthUnreachable},
		{NodeID: "web-2", Status: HealthUnreachable},
		{NodeID: "web-3", Status: HealthUnreachable},
	}
	report := a.Analyze(reports, health, nil, nil)
	if report.ProbableCause != CauseNetworkPartition {
		t.Fatalf("expected NETWORK_PARTITION, got %s", report.ProbableCause)
	}
}

func TestAnalyzeDeployProximityIsDeployRelated(t *testing.T) {
	a := NewAnalyzer()
	deployTime := time.Now().UTC()
	reports := []DriftReport{{NodeID: "web-1", Severity: "LOW", DetectedAt: deployTime.Add(2 * time.Second)}}
	report := a.Analyze(reports, nil, []time.Time{deployTime}, nil)
	if report.ProbableCause != CauseDeployRelated {
		t.Fatalf("expected DEPLOY_RELATED, got %s", report.ProbableCause)
	}
}
