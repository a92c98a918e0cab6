package rules

import (
	"dockmonitor/pkg/types"
)

// ConsolidatedDataRule is the system of record for the consolidated-event
// aggregator: it alone
// builds and emits the per-shipment timing summary, entirely from the
// current door snapshot's already-tracked timestamps plus the terminal
// event's own timestamp, on WMS LGV_START_LOADING.
type ConsolidatedDataRule struct{}

func NewConsolidatedDataRule(params map[string]interface{}) (*ConsolidatedDataRule, error) {
	return &ConsolidatedDataRule{}, nil
}

func (r *ConsolidatedDataRule) Name() string { return "ConsolidatedDataRule" }

func (r *ConsolidatedDataRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventWmsEvent || event.Wms.MessageType != types.MsgLgvStartLoading {
		return nil
	}

	shipmentID := parseShipmentID(event.Wms.ShipmentID)

	ce := types.ConsolidatedEvent{
		Plant:      door.PlantID,
		DoorName:   door.DockName,
		ShipmentID: shipmentID,

		ShipmentAssigned: door.AssignmentDttm,
		DockAssignment:   door.DockAssignment,
		TrailerDocking:   door.DockingTime,
		StartedShipment:  door.ShipmentStartedDttm,
		DockReady:        door.LastDockReadyTime,
		LgvStartLoading:  &event.Timestamp,

		IsPreload: door.IsPreload,
	}

	// dock_assignment falls back to shipment_assigned, and symmetrically
	// trailer_docking falls back to dock_ready for the inspection-time
	// calculation: an unknown dock assignment is approximated by the
	// shipment assignment.
	dockAssignment := firstNonNil(ce.DockAssignment, ce.ShipmentAssigned)
	trailerDocking := firstNonNil(ce.TrailerDocking, ce.DockReady)

	ce.DockingTimeMinutes = minutesBetween(dockAssignment, ce.TrailerDocking)
	ce.InspectionTimeMinutes = minutesBetween(trailerDocking, ce.StartedShipment)
	ce.EnqueuedTimeMinutes = minutesBetween(ce.StartedShipment, ce.LgvStartLoading)

	return []types.Outcome{consolidatedOutcome(ce)}
}

func parseShipmentID(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
