package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/domain"
)

func TestUpdateHealthMarksHealthy(t *testing.T) {
	r := New()
	r.UpdateHealth("web-1", capability.NodeHealth{Healthy: true})
	rec, ok := r.GetAgent("web-1")
	if !ok {
		t.Fatal("expected agent record to exist")
	}
	if rec.Status != StatusHealthy {
		t.Fatalf("Status = %v, want Healthy", rec.Status)
	}
}

func TestUpdateHealthUnhealthyMarksUnreachable(t *testing.T) {
	r := New()
	r.UpdateHealth("web-1", capability.NodeHealth{Healthy: false})
	rec, _ := r.GetAgent("web-1")
	if rec.Status != StatusUnreachable {
		t.Fatalf("Status = %v, want Unreachable", rec.Status)
	}
}

func TestUpdateDriftOverridesHealthStatus(t *testing.T) {
	r := New()
	r.UpdateHealth("web-1", capability.NodeHealth{Healthy: true})
	r.UpdateDrift("web-1", capability.DriftPayload{Severity: "HIGH"})
	rec, _ := r.GetAgent("web-1")
	if rec.Status != StatusDriftDetected {
		t.Fatalf("Status = %v, want DriftDetected", rec.Status)
	}

	// A subsequent healthy heartbeat should not clobber drift status.
	r.UpdateHealth("web-1", capability.NodeHealth{Healthy: true})
	rec, _ = r.GetAgent("web-1")
	if rec.Status != StatusDriftDetected {
		t.Fatalf("Status after heartbeat = %v, want DriftDetected to persist", rec.Status)
	}
}

func TestHealingCommandIsOneShot(t *testing.T) {
	r := New()
	cmd := capability.HealingCommand{ID: "cmd-1", NodeHost: "web-1"}
	r.SetHealingCommand("web-1", cmd)

	got := r.PopHealingCommand("web-1")
	if got == nil || got.ID != "cmd-1" {
		t.Fatalf("PopHealingCommand = %v, want cmd-1", got)
	}
	if got := r.PopHealingCommand("web-1"); got != nil {
		t.Fatalf("second pop should return nil, got %v", got)
	}
}

func TestAcknowledgeHealingSuccessClearsDrift(t *testing.T) {
	r := New()
	r.UpdateDrift("web-1", capability.DriftPayload{Severity: "HIGH"})
	r.AcknowledgeHealing("web-1", true)
	rec, _ := r.GetAgent("web-1")
	if rec.DriftReport != nil {
		t.Fatalf("DriftReport should be cleared on successful ack, got %v", rec.DriftReport)
	}
	if rec.Status != StatusHealthy {
		t.Fatalf("Status = %v, want Healthy", rec.Status)
	}
}

func TestGetStaleExcludesRecentRecords(t *testing.T) {
	r := New()
	r.UpdateHealth("fresh", capability.NodeHealth{Healthy: true})

	r.mu.Lock()
	r.records["old"] = &AgentRecord{NodeID: "old", Status: StatusHealthy, LastSeen: time.Now().Add(-2 * StaleWindow)}
	r.mu.Unlock()

	stale := r.GetStale(time.Now())
	if len(stale) != 1 || stale[0].NodeID != "old" {
		t.Fatalf("GetStale = %v, want only 'old'", stale)
	}
}

func TestConnectedCountReflectsDistinctNodes(t *testing.T) {
	r := New()
	r.UpdateHealth("a", capability.NodeHealth{Healthy: true})
	r.UpdateHealth("b", capability.NodeHealth{Healthy: true})
	if got := r.ConnectedCount(); got != 2 {
		t.Fatalf("ConnectedCount = %d, want 2", got)
	}
}

func TestInProcessClientReportsThroughToRegistryAndPersister(t *testing.T) {
	r := New()
	p := &stubPersister{}
	client := NewInProcessClient(r, p)

	node, _ := domain.ParseNode("root@web-1")
	expected, _ := domain.NewFingerprint("abcdef0123456789abcdef0123456789")
	err := client.ReportDrift(context.Background(), capability.DriftPayload{Node: node, Expected: expected, Severity: "HIGH"})
	if err != nil {
		t.Fatalf("ReportDrift: %v", err)
	}
	if p.driftCalls != 1 {
		t.Fatalf("persister drift calls = %d, want 1", p.driftCalls)
	}
	rec, ok := r.GetAgent("web-1")
	if !ok || rec.Status != StatusDriftDetected {
		t.Fatalf("registry not updated: %+v", rec)
	}
}

type stubPersister struct {
	driftCalls   int
	healingCalls int
}

func (s *stubPersister) RecordDriftEvent(ctx context.Context, nodeID, expected, actual, severity string, detectedAt time.Time, details string) error {
	s.driftCalls++
	return nil
}

func (s *stubPersister) RecordHealingAction(ctx context.Context, nodeID, actionType, command string, success bool, executedAt time.Time, durationSeconds float64, output string) error {
	s.healingCalls++
	return nil
}
