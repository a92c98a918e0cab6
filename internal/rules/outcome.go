// Package rules implements the rule engine: an ordered, JSON-configured
// set of rules evaluated over (door, event) pairs, each producing a vector
// of outcomes.
package rules

import (
	"time"

	"dockmonitor/pkg/types"
)

func alertOutcome(tag types.AlertKindTag, door string, shipmentID *string, duration *time.Duration, reason string, severity int, extra map[string]string) types.Outcome {
	return types.Outcome{
		Kind: types.OutcomeAlert,
		Alert: types.AlertKind{
			Tag:        tag,
			DoorName:   door,
			ShipmentID: shipmentID,
			Duration:   duration,
			Reason:     reason,
			Severity:   severity,
			Extra:      extra,
		},
	}
}

func logOutcome(rec types.AuditRecord) types.Outcome {
	return types.Outcome{Kind: types.OutcomeLog, Log: rec}
}

func dbInsertOutcome(rec types.AuditRecord) types.Outcome {
	return types.Outcome{Kind: types.OutcomeDbInsert, DbInsert: rec}
}

func stateTransitionOutcome(s types.DoorState) types.Outcome {
	return types.Outcome{Kind: types.OutcomeStateTransition, NewDoorState: s}
}

func consolidatedOutcome(ce types.ConsolidatedEvent) types.Outcome {
	return types.Outcome{Kind: types.OutcomeConsolidatedUpdate, Consolidated: ce}
}

func strPtr(s string) *string { return &s }

func auditRow(ts time.Time, plant, door, eventType string, success bool, notes string, severity int, shipmentID *string) types.AuditRecord {
	return types.AuditRecord{
		LogDttm:    ts,
		Plant:      plant,
		DoorName:   door,
		ShipmentID: shipmentID,
		EventType:  eventType,
		Success:    success,
		Notes:      notes,
		Severity:   severity,
	}
}
