package handler

import "dockmonitor/pkg/types"

// applyDoorSelfHandle is the door's own small handle-event table: it
// updates state/trailer/shipment fields directly from the event kind,
// independent of whatever the rule outcomes did. Sensor and WMS processors
// already persist their own diffs before emitting; this covers fields only
// the event itself carries (the raw WMS event stream never touches the
// repository directly).
func applyDoorSelfHandle(door *types.DockDoor, event types.DockEvent) {
	switch event.Kind {
	case types.EventShipmentAssigned:
		door.PreviousShipment = event.PreviousShipment
		door.CurrentShipment = event.NewShipment
		if door.AssignmentDttm == nil {
			ts := event.Timestamp
			door.AssignmentDttm = &ts
		}

	case types.EventShipmentUnassigned:
		door.PreviousShipment = event.PreviousShipment
		door.CurrentShipment = nil
		ts := event.Timestamp
		door.UnassignmentDttm = &ts

	case types.EventDoorStateChanged:
		door.PreviousDoorState = event.OldDoorState
		door.DoorState = event.NewDoorState
		if event.NewDoorState == types.DoorReady {
			ts := event.Timestamp
			door.LastDockReadyTime = &ts
		}

	case types.EventTrailerStateChanged:
		door.PreviousTrailerState = event.OldTrailerState
		door.TrailerState = event.NewTrailerState
		door.TrailerStateChanged = event.Timestamp

	case types.EventLoadingStatusChanged:
		door.PreviousLoadingStatus = event.OldLoadingStatus
		door.LoadingStatus = event.NewLoadingStatus

	case types.EventWmsEvent:
		switch event.Wms.MessageType {
		case types.MsgStartedShipment:
			ts := event.Timestamp
			door.ShipmentStartedDttm = &ts
		case types.MsgDockAssignment:
			ts := event.Timestamp
			door.DockAssignment = &ts
		case types.MsgCompletedLoad:
			ts := event.Timestamp
			door.PreviousCompletedDttm = &ts
		}
		door.WmsEvents = append(door.WmsEvents, event.Wms)
	}

	door.LastUpdated = event.Timestamp
}
