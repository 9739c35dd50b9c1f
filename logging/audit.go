// Package logging provides audit logging for admin actions on engine state.
package logging

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Zone configuration events
	AuditEventZoneCreated AuditEventType = "zone.created"
	AuditEventZoneToggled AuditEventType = "zone.toggled"
	AuditEventZoneDeleted AuditEventType = "zone.deleted"

	// Fare configuration events
	AuditEventFareRuleUpserted AuditEventType = "fare.rule_upserted"
	AuditEventFareRuleDeleted  AuditEventType = "fare.rule_deleted"

	// Driver roster events
	AuditEventDriverSuspended   AuditEventType = "driver.suspended"
	AuditEventDriverReactivated AuditEventType = "driver.reactivated"
	AuditEventDriverClaimed     AuditEventType = "driver.claimed"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	ActorID   string            `json:"actor_id,omitempty"`
	Resource  string            `json:"resource"`
	Outcome   string            `json:"outcome"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditLogger emits structured audit events alongside regular logs.
type AuditLogger struct {
	logger *Logger
}

// NewAuditLogger creates an audit logger on top of a base logger.
func NewAuditLogger(logger *Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With("log_type", "audit")}
}

// Record writes an audit event. Missing IDs and timestamps are filled in.
func (a *AuditLogger) Record(event AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}

	attrs := []any{
		slog.String("audit_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.String("resource", event.Resource),
		slog.String("outcome", event.Outcome),
		slog.Time("event_time", event.Timestamp),
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	for k, v := range event.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}

	a.logger.Info("audit", attrs...)
}

// RecordFailure writes an audit event for a failed action.
func (a *AuditLogger) RecordFailure(event AuditEvent, err error) {
	event.Outcome = "failure"
	if event.Details == nil {
		event.Details = make(map[string]string)
	}
	event.Details["error"] = err.Error()
	a.Record(event)
}
