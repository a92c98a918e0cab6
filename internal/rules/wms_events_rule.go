package rules

import "dockmonitor/pkg/types"

// WmsEventsRule maps every WMS-event-bearing DockEvent to one DbInsert row,
// the generic audit trail for the raw WMS event stream.
type WmsEventsRule struct{}

func NewWmsEventsRule(params map[string]interface{}) (*WmsEventsRule, error) {
	return &WmsEventsRule{}, nil
}

func (r *WmsEventsRule) Name() string { return "WmsEventsRule" }

func (r *WmsEventsRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventWmsEvent {
		return nil
	}

	wms := event.Wms
	rec := types.AuditRecord{
		LogDttm:   event.Timestamp,
		Plant:     door.PlantID,
		DoorName:  door.DockName,
		EventType: string(wms.MessageType),
		Success:   wms.ResultCode == 0,
		Notes:     wms.MessageNotes,
	}
	if wms.ShipmentID != "" {
		id := wms.ShipmentID
		rec.ShipmentID = &id
	}
	if wms.MessageType.CarriesUser() {
		if user := firstDashToken(wms.MessageNotes); user != "" {
			rec.User = &user
		}
	}

	return []types.Outcome{dbInsertOutcome(rec)}
}
