package rules

import "dockmonitor/pkg/types"

// WmsShipmentStatusRule unconditionally logs shipment-assignment and
// loading-status transitions as audit rows.
type WmsShipmentStatusRule struct{}

func NewWmsShipmentStatusRule(params map[string]interface{}) (*WmsShipmentStatusRule, error) {
	return &WmsShipmentStatusRule{}, nil
}

func (r *WmsShipmentStatusRule) Name() string { return "WmsShipmentStatusRule" }

func (r *WmsShipmentStatusRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	switch event.Kind {
	case types.EventShipmentAssigned:
		return []types.Outcome{logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "SHIPMENT_ASSIGNED", true, "", 0, event.NewShipment))}
	case types.EventShipmentUnassigned:
		return []types.Outcome{logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "SHIPMENT_UNASSIGNED", true, "", 0, event.PreviousShipment))}
	case types.EventLoadingStatusChanged:
		rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "LOADING_STATUS_CHANGED", true, event.NewLoadingStatus.String(), 0, door.CurrentShipment)
		rec.PreviousState = strPtr(event.OldLoadingStatus.String())
		return []types.Outcome{logOutcome(rec)}
	default:
		return nil
	}
}
