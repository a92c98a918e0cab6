package processing

import (
	"dockmonitor/internal/repository"
	apperrors "dockmonitor/pkg/errors"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// WmsProcessor diffs the polled WMS door-status snapshot against the
// repository and dispatches the raw WMS event stream into typed
// DockEvents.
type WmsProcessor struct {
	repo   *repository.Repository
	logger *logrus.Logger
}

func NewWmsProcessor(repo *repository.Repository, logger *logrus.Logger) *WmsProcessor {
	return &WmsProcessor{repo: repo, logger: logger}
}

// Process diffs every row of the snapshot against the repository, emitting
// shipment-assignment and loading-status change events.
func (p *WmsProcessor) Process(snapshot []types.WmsDoorStatus) []types.DockEvent {
	events := make([]types.DockEvent, 0)

	for _, row := range snapshot {
		door, ok := p.repo.Get(row.Plant, row.DoorName)
		if !ok {
			err := apperrors.NotFound("processing.wms", "Process", "door not found").
				WithMetadata("plant", row.Plant).WithMetadata("door", row.DoorName)
			p.logger.Warn(err.Error())
			continue
		}

		derived, ok := p.processOne(&door, row)
		if !ok {
			continue
		}
		events = append(events, derived...)
		door.LastUpdated = row.LogDttm
		p.repo.Update(door.PlantID, door)
	}

	return events
}

func (p *WmsProcessor) processOne(door *types.DockDoor, row types.WmsDoorStatus) ([]types.DockEvent, bool) {
	events := make([]types.DockEvent, 0, 2)

	if shipmentChanged(door.CurrentShipment, row.AssignedShipment) {
		previous := door.CurrentShipment
		if row.AssignedShipment != nil {
			events = append(events, types.DockEvent{
				Kind: types.EventShipmentAssigned, Plant: door.PlantID, Door: door.DockName,
				Timestamp: row.LogDttm, NewShipment: row.AssignedShipment, PreviousShipment: previous,
			})
			door.PreviousShipment = previous
			door.CurrentShipment = row.AssignedShipment
			door.AssignmentDttm = row.AssignmentDttm
			if door.AssignmentDttm == nil {
				ts := row.LogDttm
				door.AssignmentDttm = &ts
			}
			door.DockAssignment = door.AssignmentDttm
		} else {
			events = append(events, types.DockEvent{
				Kind: types.EventShipmentUnassigned, Plant: door.PlantID, Door: door.DockName,
				Timestamp: row.LogDttm, PreviousShipment: previous,
			})
			door.PreviousShipment = previous
			door.CurrentShipment = nil
			ts := row.LogDttm
			door.UnassignmentDttm = &ts
		}
	}

	if row.LoadingStatus != "" {
		newStatus, ok := types.ParseLoadingStatus(row.LoadingStatus)
		if !ok {
			err := apperrors.Parse("processing.wms", "processOne", "unknown loading_status").
				WithMetadata("value", row.LoadingStatus)
			p.logger.WithField("door", door.DockName).Warn(err.Error())
			return events, len(events) > 0
		}

		if newStatus != door.LoadingStatus {
			old := door.LoadingStatus
			events = append(events, types.DockEvent{
				Kind: types.EventLoadingStatusChanged, Plant: door.PlantID, Door: door.DockName,
				Timestamp: row.LogDttm, OldLoadingStatus: old, NewLoadingStatus: newStatus,
			})
			door.PreviousLoadingStatus = old
			door.LoadingStatus = newStatus

			if newDoorState, changed := newStatus.DerivedDoorState(door.DoorState); changed && newDoorState != door.DoorState {
				oldDoorState := door.DoorState
				door.PreviousDoorState = oldDoorState
				door.DoorState = newDoorState
				events = append(events, types.DockEvent{
					Kind: types.EventDoorStateChanged, Plant: door.PlantID, Door: door.DockName,
					Timestamp: row.LogDttm, OldDoorState: oldDoorState, NewDoorState: newDoorState,
				})
			}
		}
	}

	door.WmsShipmentStatus = row.WmsShipmentStatus
	return events, true
}

func shipmentChanged(current, next *string) bool {
	if current == nil && next == nil {
		return false
	}
	if current == nil || next == nil {
		return true
	}
	return *current != *next
}

// DispatchWmsEvents maps raw WMS event-stream rows into DockEvents, one
// per row. The message_type string has already been classified into a
// WmsMessageType (falling through to MsgUnknown) by the query layer via
// types.ParseWmsMessageType.
func (p *WmsProcessor) DispatchWmsEvents(rows []types.WmsEvent) []types.DockEvent {
	events := make([]types.DockEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, types.DockEvent{
			Kind:      types.EventWmsEvent,
			Plant:     row.Plant,
			Door:      row.DockName,
			Timestamp: row.LogDttm,
			Wms:       row,
		})
	}
	return events
}
