// Package registry implements Chimera's orchestrator-side agent
// registry: a shared map of node id to agent record, serialized under a
// single writer lock with copy-on-read snapshots for concurrent
// readers.
package registry

import (
	"sync"
	"time"

	"github.com/jbouey/chimera/internal/capability"
)

// StaleWindow is the freshness window used by GetStale/GetHealthy: a
// record older than this is considered stale.
const StaleWindow = 60 * time.Second

// Status is an agent's last-known state from the orchestrator's point
// of view.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusDriftDetected
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "HEALTHY"
	case StatusDriftDetected:
		return "DRIFT_DETECTED"
	case StatusUnreachable:
		return "UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

// AgentRecord is one node's registry entry.
type AgentRecord struct {
	NodeID          string
	Status          Status
	Health          *capability.NodeHealth
	DriftReport     *capability.DriftPayload
	LastSeen        time.Time
	PendingCommand  *capability.HealingCommand
}

// Registry is the shared map of node id to AgentRecord.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*AgentRecord
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{records: make(map[string]*AgentRecord)}
}

func (r *Registry) getOrCreate(nodeID string) *AgentRecord {
	rec, ok := r.records[nodeID]
	if !ok {
		rec = &AgentRecord{NodeID: nodeID, Status: StatusUnknown}
		r.records[nodeID] = rec
	}
	return rec
}

// UpdateHealth upserts the record's health snapshot and bumps LastSeen.
func (r *Registry) UpdateHealth(nodeID string, health capability.NodeHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getOrCreate(nodeID)
	rec.Health = &health
	rec.LastSeen = time.Now()
	if rec.Status != StatusDriftDetected {
		if health.Healthy {
			rec.Status = StatusHealthy
		} else {
			rec.Status = StatusUnreachable
		}
	}
}

// UpdateDrift upserts the record's drift report and bumps LastSeen.
func (r *Registry) UpdateDrift(nodeID string, drift capability.DriftPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getOrCreate(nodeID)
	rec.DriftReport = &drift
	rec.Status = StatusDriftDetected
	rec.LastSeen = time.Now()
}

// SetHealingCommand places a one-shot outbox command for a node.
func (r *Registry) SetHealingCommand(nodeID string, cmd capability.HealingCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getOrCreate(nodeID)
	rec.PendingCommand = &cmd
}

// PopHealingCommand returns and clears a node's pending command. Popping
// a missing record returns nil.
func (r *Registry) PopHealingCommand(nodeID string) *capability.HealingCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[nodeID]
	if !ok {
		return nil
	}
	cmd := rec.PendingCommand
	rec.PendingCommand = nil
	return cmd
}

// AcknowledgeHealing bumps LastSeen and, on success, clears the node's
// drift report.
func (r *Registry) AcknowledgeHealing(nodeID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[nodeID]
	if !ok {
		return
	}
	rec.LastSeen = time.Now()
	if success {
		rec.DriftReport = nil
		rec.Status = StatusHealthy
	}
}

// snapshot copies a record for safe return to callers outside the lock.
func snapshot(rec *AgentRecord) AgentRecord {
	return *rec
}

// GetAgent returns a read snapshot of a node's record, or false if
// unknown.
func (r *Registry) GetAgent(nodeID string) (AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[nodeID]
	if !ok {
		return AgentRecord{}, false
	}
	return snapshot(rec), true
}

// AllAgents returns a read snapshot of every record.
func (r *Registry) AllAgents() []AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, snapshot(rec))
	}
	return out
}

// GetHealthy returns all records whose status is HEALTHY and whose
// LastSeen is within the freshness window.
func (r *Registry) GetHealthy(now time.Time) []AgentRecord {
	return r.filter(now, func(rec AgentRecord, fresh bool) bool {
		return fresh && rec.Status == StatusHealthy
	})
}

// GetDrifted returns all records whose status is DRIFT_DETECTED,
// regardless of freshness.
func (r *Registry) GetDrifted() []AgentRecord {
	return r.filter(time.Time{}, func(rec AgentRecord, fresh bool) bool {
		return rec.Status == StatusDriftDetected
	})
}

// GetStale returns all records whose LastSeen falls outside the
// freshness window.
func (r *Registry) GetStale(now time.Time) []AgentRecord {
	return r.filter(now, func(rec AgentRecord, fresh bool) bool {
		return !fresh
	})
}

func (r *Registry) filter(now time.Time, pred func(rec AgentRecord, fresh bool) bool) []AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AgentRecord
	for _, rec := range r.records {
		s := snapshot(rec)
		fresh := !now.IsZero() && now.Sub(s.LastSeen) <= StaleWindow
		if pred(s, fresh) {
			out = append(out, s)
		}
	}
	return out
}

// ConnectedCount returns the number of registered agent records.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
