package domain

import (
	"testing"
	"time"
)

func TestSLOReportHealthyWithNoViolations(t *testing.T) {
	s := NewSLO("api-availability", 0.999, 24*time.Hour)
	now := time.Now()
	report := s.Report(now)
	if report.Status != SLOHealthy {
		t.Fatalf("Status = %v, want Healthy", report.Status)
	}
	if report.Availability != 1.0 {
		t.Fatalf("Availability = %v, want 1.0", report.Availability)
	}
}

func TestSLOReportExhaustedWhenDowntimeFarExceedsBudget(t *testing.T) {
	s := NewSLO("api-availability", 0.99, time.Hour)
	now := time.Now()
	// 10min downtime in a 1h window against a 1% (36s) budget burns the
	// entire budget and then some, clamping remaining to 0.
	s = s.RecordViolation(Violation{Start: now.Add(-30 * time.Minute), End: now.Add(-20 * time.Minute)})
	report := s.Report(now)
	if report.Status != SLOExhausted {
		t.Fatalf("Status = %v, want Exhausted (10min downtime in 1h window vs 1%% budget)", report.Status)
	}
	if report.ErrorBudgetRemaining != 0 {
		t.Fatalf("ErrorBudgetRemaining = %v, want 0 (clamped)", report.ErrorBudgetRemaining)
	}
}

func TestSLOReportViolatedWithZeroAllowedDowntime(t *testing.T) {
	s := NewSLO("api-availability", 1.0, time.Hour)
	now := time.Now()
	// A 100% target allows zero downtime, so the error budget fraction
	// is defined as fully remaining (nothing to divide by); any
	// violation still drops availability below target and must report
	// VIOLATED rather than EXHAUSTED.
	s = s.RecordViolation(Violation{Start: now.Add(-time.Second), End: now})
	report := s.Report(now)
	if report.Status != SLOViolated {
		t.Fatalf("Status = %v, want Violated", report.Status)
	}
	if report.ErrorBudgetRemaining != 1.0 {
		t.Fatalf("ErrorBudgetRemaining = %v, want 1.0 (undefined ratio treated as full budget)", report.ErrorBudgetRemaining)
	}
}

func TestSLOReportClipsViolationsToWindow(t *testing.T) {
	s := NewSLO("api-availability", 0.5, time.Hour)
	now := time.Now()
	s = s.RecordViolation(Violation{Start: now.Add(-3 * time.Hour), End: now.Add(-2 * time.Hour)})
	report := s.Report(now)
	if report.Availability != 1.0 {
		t.Fatalf("Availability = %v, want 1.0 (violation entirely outside trailing window)", report.Availability)
	}
}

func TestSLOReportAtRiskNearBudgetExhaustion(t *testing.T) {
	s := NewSLO("api-availability", 0.99, time.Hour)
	now := time.Now()
	// 30s downtime in a 1h window against a 1% (36s) budget burns >80% of it.
	s = s.RecordViolation(Violation{Start: now.Add(-30 * time.Second), End: now})
	report := s.Report(now)
	if report.Status != SLOAtRisk {
		t.Fatalf("Status = %v, want AtRisk", report.Status)
	}
}
