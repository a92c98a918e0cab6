package rules

import "dockmonitor/pkg/types"

// DockReadyRule fires when RH_DOCK_READY transitions 0->1.
type DockReadyRule struct{}

func NewDockReadyRule(params map[string]interface{}) (*DockReadyRule, error) {
	return &DockReadyRule{}, nil
}

func (r *DockReadyRule) Name() string { return "DockReadyRule" }

func (r *DockReadyRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventSensorChanged || event.SensorName != "RH_DOCK_READY" {
		return nil
	}
	if !isEdge(event.OldInt, event.NewInt, 0, 1) {
		return nil
	}

	outcomes := []types.Outcome{
		alertOutcome(types.AlertDockReady, door.DockName, shipmentPtr(door), nil, "", 0, nil),
	}

	rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "DOCK_READY", true, "", 0, shipmentPtr(door))
	rec.PreviousState = strPtr(types.DoorTrailerDocked.String())
	outcomes = append(outcomes, logOutcome(rec))
	return outcomes
}

func isEdge(old, new *int, from, to int) bool {
	return old != nil && *old == from && new != nil && *new == to
}

func shipmentPtr(door types.DoorSnapshot) *string {
	return door.CurrentShipment
}
