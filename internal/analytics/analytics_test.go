package analytics

import (
	"testing"
	"time"
)

func TestAssessRiskEmptyHistoryIsLowRisk(t *testing.T) {
	s := NewStore()
	score := s.AssessRisk("web-1", time.Now())
	if score.Level != RiskLow || score.Score != 0.0 {
		t.Fatalf("score = %+v, want zero-score Low", score)
	}
}

func TestAssessRiskWeightsRecentSevereDriftHigher(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.RecordDrift("web-1", SeverityCritical, now.Add(-time.Hour))

	score := s.AssessRisk("web-1", now)
	if score.Score <= 0 {
		t.Fatalf("Score = %v, want > 0", score.Score)
	}
	if score.PredictedDriftProbability <= 0 {
		t.Fatalf("PredictedDriftProbability = %v, want > 0", score.PredictedDriftProbability)
	}
}

func TestAssessRiskFrequentDriftScoresHigherThanSingle(t *testing.T) {
	s := NewStore()
	now := time.Now()
	frequent := NewStore()
	for i := 0; i < 8; i++ {
		frequent.RecordDrift("web-2", SeverityMedium, now.Add(-time.Duration(i)*time.Hour))
	}
	s.RecordDrift("web-1", SeverityMedium, now.Add(-time.Hour))

	single := s.AssessRisk("web-1", now)
	many := frequent.AssessRisk("web-2", now)
	if many.Score <= single.Score {
		t.Fatalf("frequent drift score %v should exceed single drift score %v", many.Score, single.Score)
	}
}

func TestRecordResolutionMarksMostRecentUnresolvedEntry(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.RecordDrift("web-1", SeverityLow, now.Add(-2*time.Hour))
	s.RecordDrift("web-1", SeverityLow, now.Add(-time.Hour))

	s.RecordResolution("web-1", 120)

	mttr, ok := s.MeanTimeToResolution("web-1")
	if !ok {
		t.Fatal("expected a resolved entry")
	}
	if mttr != 120 {
		t.Fatalf("MeanTimeToResolution = %v, want 120", mttr)
	}
}

func TestAssessFleetSortsDescendingByScore(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.RecordDrift("quiet", SeverityLow, now.Add(-100*time.Hour))
	for i := 0; i < 5; i++ {
		s.RecordDrift("noisy", SeverityCritical, now.Add(-time.Duration(i)*time.Hour))
	}

	fleet := s.AssessFleet(now)
	if len(fleet) != 2 {
		t.Fatalf("AssessFleet returned %d entries, want 2", len(fleet))
	}
	if fleet[0].NodeID != "noisy" {
		t.Fatalf("fleet[0] = %s, want noisy to rank highest", fleet[0].NodeID)
	}
}

func TestIsTrendingUpDetectsAccelerratingDrift(t *testing.T) {
	s := NewStore()
	now := time.Now()
	// Recent half of the window gets many more events than the older half.
	for i := 0; i < 10; i++ {
		s.RecordDrift("web-1", SeverityMedium, now.Add(-time.Duration(i)*time.Hour))
	}
	s.RecordDrift("web-1", SeverityMedium, now.Add(-150*time.Hour))

	if !s.IsTrendingUp("web-1", now) {
		t.Fatal("expected trending up given a recent burst of drift")
	}
}

func TestMeanTimeToResolutionNoResolvedEntriesReturnsFalse(t *testing.T) {
	s := NewStore()
	s.RecordDrift("web-1", SeverityLow, time.Now())
	if _, ok := s.MeanTimeToResolution("web-1"); ok {
		t.Fatal("expected ok=false with no resolved entries")
	}
}
