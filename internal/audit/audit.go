// Package audit is the compliance event log: every proposal, risk decision
// and execution in the federation lands here.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// EventType classifies audit events
type EventType string

const (
	EventTypeProposal     EventType = "proposal"
	EventTypeRiskDecision EventType = "risk_decision"
	EventTypeExecution    EventType = "execution"
	EventTypeError        EventType = "error"
	EventTypeSystem       EventType = "system"
)

// Severity levels an event can carry
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ValidEventType reports whether t is one of the known types
func ValidEventType(t EventType) bool {
	switch t {
	case EventTypeProposal, EventTypeRiskDecision, EventTypeExecution, EventTypeError, EventTypeSystem:
		return true
	}
	return false
}

// Event is a single audit record
type Event struct {
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	AgentName string         `json:"agent_name"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Severity  Severity       `json:"severity"`
}

// DBExecutor is the slice of a pgx pool the write-behind needs
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Log is the in-memory audit trail with an optional database write-behind
type Log struct {
	mu     sync.Mutex
	events []Event
	nextID int

	db  DBExecutor // nil disables persistence
	log zerolog.Logger
}

// NewLog creates an audit log. db may be nil.
func NewLog(db DBExecutor) *Log {
	return &Log{
		nextID: 1,
		db:     db,
		log:    config.NewMCPLogger("compliance"),
	}
}

// Record appends an event, assigning its monotone id. Unknown severities
// fall back to info.
func (l *Log) Record(ctx context.Context, eventType EventType, agentName, action string, details map[string]any, severity Severity) (Event, error) {
	if !ValidEventType(eventType) {
		return Event{}, fmt.Errorf("unknown event type %q", eventType)
	}
	switch severity {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
	default:
		severity = SeverityInfo
	}

	l.mu.Lock()
	ev := Event{
		EventID:   fmt.Sprintf("EVT_%06d", l.nextID),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AgentName: agentName,
		Action:    action,
		Details:   details,
		Severity:  severity,
	}
	l.nextID++
	l.events = append(l.events, ev)
	l.mu.Unlock()

	l.mirror(ev)
	metrics.RecordAuditEvent(string(eventType), string(severity))

	if l.db != nil {
		l.persist(ctx, ev)
	}
	return ev, nil
}

// mirror writes the event to the structured log at the matching level
func (l *Log) mirror(ev Event) {
	entry := l.log.With().
		Str("event_id", ev.EventID).
		Str("event_type", string(ev.EventType)).
		Str("agent", ev.AgentName).
		Str("action", ev.Action).
		Logger()

	switch ev.Severity {
	case SeverityCritical, SeverityError:
		entry.Error().Msg("Audit event")
	case SeverityWarning:
		entry.Warn().Msg("Audit event")
	default:
		entry.Info().Msg("Audit event")
	}
}

func (l *Log) persist(ctx context.Context, ev Event) {
	start := time.Now()

	var detailsJSON []byte
	if ev.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(ev.Details)
		if err != nil {
			detailsJSON = []byte("{}")
		}
	}

	_, err := l.db.Exec(ctx,
		`INSERT INTO audit_events (event_id, timestamp, event_type, agent_name, action, details, severity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.EventID, ev.Timestamp, string(ev.EventType), ev.AgentName, ev.Action, detailsJSON, string(ev.Severity))

	metrics.AuditLogLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAuditLogFailure("persist_error", string(ev.EventType))
		l.log.Error().Err(err).Str("event_id", ev.EventID).Msg("Audit persistence failed")
	}
}

// ReportFilters narrow a report or query
type ReportFilters struct {
	StartTime time.Time
	EndTime   time.Time
	EventType EventType
	AgentName string
}

func (f ReportFilters) match(ev Event) bool {
	if !f.StartTime.IsZero() && ev.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && ev.Timestamp.After(f.EndTime) {
		return false
	}
	if f.EventType != "" && ev.EventType != f.EventType {
		return false
	}
	if f.AgentName != "" && ev.AgentName != f.AgentName {
		return false
	}
	return true
}

// reportTail caps how many events a report embeds
const reportTail = 50

// Report summarizes the filtered trail
func (l *Log) Report(filters ReportFilters) map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	byType := map[string]int{}
	byAgent := map[string]int{}
	bySeverity := map[string]int{}
	approvals, rejections := 0, 0

	matched := []Event{}
	for _, ev := range l.events {
		if !filters.match(ev) {
			continue
		}
		matched = append(matched, ev)
		byType[string(ev.EventType)]++
		byAgent[ev.AgentName]++
		bySeverity[string(ev.Severity)]++

		if ev.EventType == EventTypeRiskDecision {
			if approved, ok := ev.Details["approved"].(bool); ok && approved {
				approvals++
			} else {
				rejections++
			}
		}
	}

	approvalRate := 0.0
	if approvals+rejections > 0 {
		approvalRate = float64(approvals) / float64(approvals+rejections)
	}

	tail := matched
	if len(tail) > reportTail {
		tail = tail[len(tail)-reportTail:]
	}

	return map[string]any{
		"total_events":  len(matched),
		"by_type":       byType,
		"by_agent":      byAgent,
		"by_severity":   bySeverity,
		"approvals":     approvals,
		"rejections":    rejections,
		"approval_rate": approvalRate,
		"events":        tail,
		"generated_at":  time.Now().UTC(),
	}
}

// Recent returns the newest events, newest last
func (l *Log) Recent(limit int, eventType EventType) []Event {
	if limit <= 0 {
		limit = 20
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]Event, 0, limit)
	for _, ev := range l.events {
		if eventType != "" && ev.EventType != eventType {
			continue
		}
		matched = append(matched, ev)
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Metrics computes the compliance rollup
func (l *Log) Metrics() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	byType := map[string]int{}
	approvals, rejections := 0, 0
	execOK, execFail := 0, 0

	for _, ev := range l.events {
		byType[string(ev.EventType)]++
		switch ev.EventType {
		case EventTypeRiskDecision:
			if approved, ok := ev.Details["approved"].(bool); ok && approved {
				approvals++
			} else {
				rejections++
			}
		case EventTypeExecution:
			if success, ok := ev.Details["success"].(bool); ok && success {
				execOK++
			} else {
				execFail++
			}
		}
	}

	approvalRate := 0.0
	if approvals+rejections > 0 {
		approvalRate = float64(approvals) / float64(approvals+rejections)
	}
	successRate := 0.0
	if execOK+execFail > 0 {
		successRate = float64(execOK) / float64(execOK+execFail)
	}

	return map[string]any{
		"total_events":           len(l.events),
		"by_type":                byType,
		"approvals":              approvals,
		"rejections":             rejections,
		"approval_rate":          approvalRate,
		"executions_succeeded":   execOK,
		"executions_failed":      execFail,
		"execution_success_rate": successRate,
	}
}

// Clear wipes the trail. Event ids keep counting up so references in
// downstream systems stay unique.
func (l *Log) Clear() int {
	l.mu.Lock()
	n := len(l.events)
	l.events = nil
	l.mu.Unlock()

	l.log.Warn().Int("cleared", n).Msg("Audit log cleared")
	return n
}
