// Package offlinequeue buffers events on an agent's local disk when the
// orchestrator is unreachable, grounded on the teacher's
// transport.OfflineQueue. Backed by modernc.org/sqlite in WAL mode
// rather than the teacher's cgo sqlite3 driver, so agent binaries stay
// cross-compilable without a C toolchain.
package offlinequeue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
)

var log = chimeralog.New("offlinequeue")

const (
	// DefaultMaxSize is the maximum number of events retained.
	DefaultMaxSize = 10000
	// DefaultMaxAge is the maximum age of an event before pruning.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// ErrQueueFull is never returned directly by Enqueue; the queue prunes
// to make room instead, matching the teacher's best-effort posture.
var ErrQueueFull = fmt.Errorf("offlinequeue: queue is full")

// Options configures a Queue.
type Options struct {
	MaxSize int
	MaxAge  time.Duration
}

// Queue stores capability.Event values on disk when an agent cannot
// reach the orchestrator, and replays them once connectivity returns.
type Queue struct {
	db      *sql.DB
	mu      sync.Mutex
	maxSize int
	maxAge  time.Duration
}

// New opens (creating if necessary) the offline queue database under
// dataDir.
func New(dataDir string) (*Queue, error) {
	return NewWithOptions(dataDir, Options{})
}

// NewWithOptions is New with explicit size/age limits.
func NewWithOptions(dataDir string, opts Options) (*Queue, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}

	dbPath := dataDir + "/offline_queue.db"
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("offlinequeue: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("offlinequeue: create table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("offlinequeue: create index: %w", err)
	}

	return &Queue{db: db, maxSize: opts.MaxSize, maxAge: opts.MaxAge}, nil
}

// Enqueue stores event, pruning stale or excess entries first.
func (q *Queue) Enqueue(event capability.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.enforceLimit(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("offlinequeue: marshal event: %w", err)
	}

	if _, err := q.db.Exec(
		"INSERT INTO events (event_type, payload) VALUES (?, ?)",
		event.Type, payload,
	); err != nil {
		return fmt.Errorf("offlinequeue: enqueue: %w", err)
	}
	return nil
}

// enforceLimit prunes aged-out entries, then the oldest 10% if still at
// capacity. Must be called with mu held.
func (q *Queue) enforceLimit() error {
	cutoff := time.Now().Add(-q.maxAge)
	if _, err := q.db.Exec("DELETE FROM events WHERE created_at < ?", cutoff); err != nil {
		log.Printf("prune old events: %v", err)
	}

	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return fmt.Errorf("offlinequeue: count events: %w", err)
	}

	if count >= q.maxSize {
		toDelete := q.maxSize / 10
		if toDelete < 1 {
			toDelete = 1
		}
		_, err := q.db.Exec(`
			DELETE FROM events WHERE id IN (
				SELECT id FROM events ORDER BY created_at ASC LIMIT ?
			)
		`, toDelete)
		if err != nil {
			return fmt.Errorf("offlinequeue: prune to make room: %w", err)
		}
	}
	return nil
}

// Dequeue removes and returns the oldest queued event.
func (q *Queue) Dequeue() (capability.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var id int64
	var payload []byte
	row := q.db.QueryRow(`SELECT id, payload FROM events ORDER BY created_at ASC LIMIT 1`)
	if err := row.Scan(&id, &payload); err != nil {
		return capability.Event{}, false
	}

	if _, err := q.db.Exec("DELETE FROM events WHERE id = ?", id); err != nil {
		log.Printf("delete dequeued event %d: %v", id, err)
	}

	var event capability.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return capability.Event{}, false
	}
	return event, true
}

// DrainAll removes and returns up to limit queued events, oldest first.
func (q *Queue) DrainAll(limit int) ([]capability.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.Query(`SELECT id, payload FROM events ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("offlinequeue: query: %w", err)
	}
	defer rows.Close()

	var events []capability.Event
	var ids []int64
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			continue
		}
		var event capability.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		events = append(events, event)
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		args := make([]interface{}, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args[i] = id
		}
		query := fmt.Sprintf("DELETE FROM events WHERE id IN (%s)", strings.Join(placeholders, ","))
		if _, err := q.db.Exec(query, args...); err != nil {
			log.Printf("delete %d drained events: %v", len(ids), err)
		}
	}
	return events, nil
}

// Count returns the number of currently queued events.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Stats describes the queue's current occupancy.
type Stats struct {
	Count      int
	MaxSize    int
	MaxAge     time.Duration
	OldestAge  time.Duration
	UsageRatio float64
}

// Stats reports the queue's current occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{MaxSize: q.maxSize, MaxAge: q.maxAge}
	if err := q.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&stats.Count); err != nil {
		return stats
	}
	if q.maxSize > 0 {
		stats.UsageRatio = float64(stats.Count) / float64(q.maxSize)
	}

	var oldest time.Time
	row := q.db.QueryRow("SELECT created_at FROM events ORDER BY created_at ASC LIMIT 1")
	if err := row.Scan(&oldest); err == nil {
		stats.OldestAge = time.Since(oldest)
	}
	return stats
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}
