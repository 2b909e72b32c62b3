// Package observability provides SQLite-native monitoring for the defense
// engine: a per-action event log and a buffered metrics timeseries. Both
// write to a dedicated database kept apart from the settings store to avoid
// write contention.
//
// All persistence is async and non-blocking: a failing observability store
// never blocks or fails the engine.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mugenyume/mugenblock/idgen"
)

// Event types recorded by the engine and its surfaces.
const (
	EventHide      = "hide"       // element suppressed
	EventBlock     = "block"      // capability or navigation blocked
	EventClick     = "click"      // suspicious click cancelled
	EventBreakage  = "breakage"   // user breakage report
	EventSession   = "session"    // page session lifecycle
	EventRuleCheck = "rule_check" // stylesheet heal fired
)

// DefenseEvent is one recorded engine action.
type DefenseEvent struct {
	EventType string
	Site      string
	SessionID string
	XPath     string
	Detail    string // optional JSON
	Success   bool
}

// EventLogger writes defense events and manages retention cleanup.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a defense event. Errors are logged via slog but do not
// propagate.
func (l *EventLogger) LogEvent(ctx context.Context, event DefenseEvent) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO defense_event_logs (
			event_id, event_type, site, session_id, xpath, detail, success, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.Site, event.SessionID,
		event.XPath, event.Detail, boolInt(event.Success), time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed",
			"error", err, "event_type", event.EventType)
	}
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventLogsDays  int
	MetricsDays    int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	if cfg.EventLogsDays > 0 {
		cutoff := now - int64(cfg.EventLogsDays*86400)
		if _, err := db.ExecContext(ctx,
			`DELETE FROM defense_event_logs WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if cfg.MetricsDays > 0 {
		cutoff := now - int64(cfg.MetricsDays*86400)
		if _, err := db.ExecContext(ctx,
			`DELETE FROM metrics_timeseries WHERE timestamp < ?`, cutoff); err != nil {
			return err
		}
	}
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
