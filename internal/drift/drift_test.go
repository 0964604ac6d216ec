package drift

import (
	"context"
	"testing"

	"github.com/jbouey/chimera/internal/domain"
)

type stubDetector struct {
	reports map[string]domain.CongruenceReport
}

func (s *stubDetector) CheckNode(ctx context.Context, node domain.Node, expected domain.Fingerprint) (domain.CongruenceReport, error) {
	return s.reports[node.Host], nil
}

func (s *stubDetector) GetActualFingerprint(ctx context.Context, node domain.Node) (*domain.Fingerprint, error) {
	r := s.reports[node.Host]
	return r.Actual, nil
}

func mustFingerprint(t *testing.T, v string) domain.Fingerprint {
	t.Helper()
	fp, err := domain.NewFingerprint(v)
	if err != nil {
		t.Fatalf("NewFingerprint(%q): %v", v, err)
	}
	return fp
}

func mustNode(t *testing.T, s string) domain.Node {
	t.Helper()
	n, err := domain.ParseNode(s)
	if err != nil {
		t.Fatalf("ParseNode(%q): %v", s, err)
	}
	return n
}

func TestAnalyzeCongruentIsLowSeverity(t *testing.T) {
	expected := mustFingerprint(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	node := mustNode(t, "root@web-1:22")
	det := &stubDetector{reports: map[string]domain.CongruenceReport{
		"web-1": domain.CongruentReport(node, expected),
	}}
	svc := NewService(det)

	analysis, err := svc.Analyze(context.Background(), node, expected)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Severity != SeverityLow || analysis.HealingAction != ActionNone {
		t.Fatalf("expected LOW/NONE, got %s/%s", analysis.Severity, analysis.HealingAction)
	}
}

func TestAnalyzeMissingActualIsCritical(t *testing.T) {
	expected := mustFingerprint(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	node := mustNode(t, "root@web-1:22")
	det := &stubDetector{reports: map[string]domain.CongruenceReport{
		"web-1": domain.DriftedReport(node, expected, nil, "unreachable"),
	}}
	svc := NewService(det)

	analysis, err := svc.Analyze(context.Background(), node, expected)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Severity != SeverityCritical || analysis.HealingAction != ActionRollback {
		t.Fatalf("expected CRITICAL/ROLLBACK, got %s/%s", analysis.Severity, analysis.HealingAction)
	}
}

func TestAnalyzeZeroFingerprintIsHigh(t *testing.T) {
	expected := mustFingerprint(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	zero := mustFingerprint(t, domain.ZeroFingerprint)
	node := mustNode(t, "root@web-1:22")
	det := &stubDetector{reports: map[string]domain.CongruenceReport{
		"web-1": domain.DriftedReport(node, expected, &zero, "placeholder fingerprint"),
	}}
	svc := NewService(det)

	analysis, err := svc.Analyze(context.Background(), node, expected)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Severity != SeverityHigh || analysis.HealingAction != ActionRebuild {
		t.Fatalf("expected HIGH/REBUILD, got %s/%s", analysis.Severity, analysis.HealingAction)
	}
}

func TestAnalyzeOtherMismatchIsMedium(t *testing.T) {
	expected := mustFingerprint(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	actual := mustFingerprint(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	node := mustNode(t, "root@web-1:22")
	det := &stubDetector{reports: map[string]domain.CongruenceReport{
		"web-1": domain.DriftedReport(node, expected, &actual, "mismatch"),
	}}
	svc := NewService(det)

	analysis, err := svc.Analyze(context.Background(), node, expected)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Severity != SeverityMedium || analysis.HealingAction != ActionRestartService {
		t.Fatalf("expected MEDIUM/RESTART_SERVICE, got %s/%s", analysis.Severity, analysis.HealingAction)
	}
}

func TestAnalyzeFleetSortsBySeverityAndComputesBlastRadius(t *testing.T) {
	expected := mustFingerprint(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	actual := mustFingerprint(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	web1 := mustNode(t, "root@web-1:22")
	web2 := mustNode(t, "root@web-2:22")
	db1 := mustNode(t, "root@db-1:22")

	det := &stubDetector{reports: map[string]domain.CongruenceReport{
		"web-1": domain.DriftedReport(web1, expected, &actual, "mismatch"),
		"web-2": domain.DriftedReport(web2, expected, nil, "unreachable"),
		"db-1":  domain.CongruentReport(db1, expected),
	}}
	svc := NewService(det)

	analyses, err := svc.AnalyzeFleet(context.Background(), []domain.Node{web1, web2, db1}, expected)
	if err != nil {
		t.Fatalf("AnalyzeFleet: %v", err)
	}
	if len(analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(analyses))
	}
	if analyses[0].Severity != SeverityCritical {
		t.Fatalf("expected first result CRITICAL, got %s", analyses[0].Severity)
	}
	if analyses[0].Node != web2 {
		t.Fatalf("expected web-2 (critical) first, got %v", analyses[0].Node)
	}
	foundBlast := false
	for _, a := range analyses {
		if a.Node == web2 {
			for _, n := range a.BlastRadius {
				if n == web1 {
					foundBlast = true
				}
			}
		}
	}
	if !foundBlast {
		t.Fatalf("expected web-1 in web-2's blast radius")
	}
}

func TestHealingPlanPopulatesAllFourBuckets(t *testing.T) {
	plan := HealingPlan(nil)
	for _, action := range []HealingAction{ActionNone, ActionRollback, ActionRebuild, ActionRestartService} {
		if _, ok := plan[action]; !ok {
			t.Fatalf("expected bucket for %s", action)
		}
	}
}
