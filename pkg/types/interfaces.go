package types

import "context"

// Rule is the one genuinely open-ended interface in the system: the rule
// catalog is loaded by name from a JSON configuration file, so new rule
// types are added without touching the engine itself.
type Rule interface {
	Name() string
	Apply(snapshot DoorSnapshot, event DockEvent) []Outcome
}

// AlertSink delivers a formatted alert message to a human channel. The
// webhook dispatcher is the only production implementation.
type AlertSink interface {
	Send(ctx context.Context, message string) error
}

// AuditStore persists audit rows and consolidated records to the local
// database.
type AuditStore interface {
	InsertAuditRecords(ctx context.Context, records []AuditRecord) error
	InsertConsolidatedEvent(ctx context.Context, event ConsolidatedEvent) error
	Close() error
}
