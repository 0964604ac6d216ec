// Package pgjournal implements Chimera's persisted state over
// PostgreSQL: the four tables the spec fixes the shape of
// (drift_events, playbook_runs, slo_violations, healing_actions) plus a
// capability.EventBus backed by the same pool.
package pgjournal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
)

var log = chimeralog.New("pgjournal")

// Schema is the DDL pgjournal expects to already exist (migrations are
// an operator concern, not something this adapter runs itself).
const Schema = `
CREATE TABLE IF NOT EXISTS drift_events (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL,
	expected TEXT NOT NULL,
	actual TEXT,
	severity TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	resolution_seconds DOUBLE PRECISION,
	details TEXT
);

CREATE TABLE IF NOT EXISTS playbook_runs (
	id TEXT PRIMARY KEY,
	playbook_id TEXT NOT NULL,
	playbook_name TEXT NOT NULL,
	node_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	step_results_json JSONB
);

CREATE TABLE IF NOT EXISTS slo_violations (
	id TEXT PRIMARY KEY,
	slo_name TEXT NOT NULL,
	target DOUBLE PRECISION NOT NULL,
	actual DOUBLE PRECISION NOT NULL,
	violated_at TIMESTAMPTZ NOT NULL,
	window_hours DOUBLE PRECISION NOT NULL,
	details TEXT
);

CREATE TABLE IF NOT EXISTS healing_actions (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	command TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL,
	output TEXT
);

CREATE TABLE IF NOT EXISTS journal_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload_json JSONB
);
`

// Journal is the Postgres-backed implementation of capability.EventBus
// plus the four persisted-state tables, satisfying the same interface
// the in-memory journal.Journal does.
type Journal struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	subs map[string][]func(capability.Event)
}

// New constructs a Journal backed by an existing pgx pool. Callers are
// expected to have already applied Schema.
func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool, subs: make(map[string][]func(capability.Event))}
}

var _ capability.EventBus = (*Journal)(nil)

// Publish inserts each event into journal_events, then notifies local
// in-process subscribers of that event's type.
func (j *Journal) Publish(events ...capability.Event) {
	ctx := context.Background()
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		payload, err := json.Marshal(events[i].Payload)
		if err != nil {
			log.Printf("marshal event payload for %s: %v", events[i].Type, err)
			payload = []byte("null")
		}
		_, err = j.pool.Exec(ctx,
			`INSERT INTO journal_events (id, type, aggregate_id, occurred_at, payload_json) VALUES ($1, $2, $3, $4, $5)`,
			events[i].ID, events[i].Type, events[i].AggregateID, events[i].OccurredAt, payload,
		)
		if err != nil {
			log.Printf("insert journal_events failed: %v", err)
		}
	}

	j.mu.Lock()
	handlers := make(map[string][]func(capability.Event), len(j.subs))
	for t, hs := range j.subs {
		handlers[t] = append([]func(capability.Event){}, hs...)
	}
	j.mu.Unlock()

	for _, evt := range events {
		for _, h := range handlers[evt.Type] {
			h(evt)
		}
	}
}

// Subscribe registers a local in-process handler for future events of
// the given type.
func (j *Journal) Subscribe(eventType string, handler func(capability.Event)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs[eventType] = append(j.subs[eventType], handler)
}

// RecordDriftEvent inserts a row into drift_events.
func (j *Journal) RecordDriftEvent(ctx context.Context, nodeID, expected, actual, severity string, detectedAt time.Time, details string) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO drift_events (id, node_id, expected, actual, severity, detected_at, details) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), nodeID, expected, actual, severity, detectedAt, details,
	)
	if err != nil {
		return fmt.Errorf("pgjournal: record drift event: %w", err)
	}
	return nil
}

// RecordPlaybookRun inserts a row into playbook_runs.
func (j *Journal) RecordPlaybookRun(ctx context.Context, playbookID, playbookName, nodeID, status string, startedAt time.Time, completedAt *time.Time, stepResultsJSON []byte) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO playbook_runs (id, playbook_id, playbook_name, node_id, status, started_at, completed_at, step_results_json) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), playbookID, playbookName, nodeID, status, startedAt, completedAt, stepResultsJSON,
	)
	if err != nil {
		return fmt.Errorf("pgjournal: record playbook run: %w", err)
	}
	return nil
}

// RecordSLOViolation inserts a row into slo_violations.
func (j *Journal) RecordSLOViolation(ctx context.Context, sloName string, target, actual float64, violatedAt time.Time, windowHours float64, details string) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO slo_violations (id, slo_name, target, actual, violated_at, window_hours, details) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), sloName, target, actual, violatedAt, windowHours, details,
	)
	if err != nil {
		return fmt.Errorf("pgjournal: record slo violation: %w", err)
	}
	return nil
}

// RecordHealingAction inserts a row into healing_actions.
func (j *Journal) RecordHealingAction(ctx context.Context, nodeID, actionType, command string, success bool, executedAt time.Time, durationSeconds float64, output string) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO healing_actions (id, node_id, action_type, command, success, executed_at, duration_seconds, output) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), nodeID, actionType, command, success, executedAt, durationSeconds, output,
	)
	if err != nil {
		return fmt.Errorf("pgjournal: record healing action: %w", err)
	}
	return nil
}
