// Package journal records alarm transitions in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Kind is the type of a journal entry.
type Kind string

const (
	KindRaised       Kind = "raised"
	KindCleared      Kind = "cleared"
	KindAcknowledged Kind = "acknowledged"
)

// Event is one alarm transition.
type Event struct {
	Timestamp time.Time
	Channel   int // 0-based
	Kind      Kind
	Value     float64
	AlarmMin  float64
	AlarmMax  float64
}

// DefaultBufferSize is the number of events queued for the writer.
const DefaultBufferSize = 64

const timeFormat = "2006-01-02 15:04:05.000"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS alarm_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    channel INTEGER NOT NULL,
    event TEXT NOT NULL,
    value REAL,
    alarm_min REAL,
    alarm_max REAL
);`

const insertSQL = `INSERT INTO alarm_events(timestamp, channel, event, value, alarm_min, alarm_max) VALUES(?, ?, ?, ?, ?, ?)`

// Journal owns the database and a writer goroutine.
type Journal struct {
	db     *sql.DB
	log    *zap.Logger
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open creates or opens the database at path and starts the writer.
func Open(path string, bufSize int, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// One writer and the occasional reader; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal table in %s: %w", path, err)
	}

	j := &Journal{
		db:     db,
		log:    log,
		events: make(chan Event, bufSize),
		done:   make(chan struct{}),
	}
	go j.writer()
	log.Info("alarm journal opened", zap.String("path", path))
	return j, nil
}

// Record queues ev for writing. It never blocks; events are dropped when the queue is full
// or the journal is closed.
func (j *Journal) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.events <- ev:
	default:
		j.log.Warn("journal queue full, dropping event", zap.Int("channel", ev.Channel+1), zap.String("event", string(ev.Kind)))
	}
}

// writer drains the queue until it is closed.
func (j *Journal) writer() {
	defer close(j.done)

	stmt, err := j.db.Prepare(insertSQL)
	if err != nil {
		j.log.Error("failed to prepare journal insert", zap.Error(err))
		for range j.events {
		}
		return
	}
	defer stmt.Close()

	for ev := range j.events {
		_, err := stmt.Exec(ev.Timestamp.Local().Format(timeFormat), ev.Channel, string(ev.Kind), ev.Value, ev.AlarmMin, ev.AlarmMax)
		if err != nil {
			j.log.Error("failed to write journal event", zap.Error(err))
		}
	}
}

// Recent returns up to n of the newest events, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT timestamp, channel, event, value, alarm_min, alarm_max FROM alarm_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev   Event
			ts   string
			kind string
		)
		if err := rows.Scan(&ts, &ev.Channel, &kind, &ev.Value, &ev.AlarmMin, &ev.AlarmMax); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		ev.Kind = Kind(kind)
		ev.Timestamp, err = time.ParseInLocation(timeFormat, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("bad journal timestamp %q: %w", ts, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close flushes queued events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.events)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}
