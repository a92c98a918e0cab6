// Package processing diffs sensor-reading batches and WMS snapshot rows
// against the door repository and emits typed domain events.
package processing

import (
	"time"

	"dockmonitor/internal/repository"
	apperrors "dockmonitor/pkg/errors"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// SensorProcessor implements C3.
type SensorProcessor struct {
	repo   *repository.Repository
	logger *logrus.Logger
}

func NewSensorProcessor(repo *repository.Repository, logger *logrus.Logger) *SensorProcessor {
	return &SensorProcessor{repo: repo, logger: logger}
}

// Process diffs every reading in the batch against the repository and
// returns the events derived from the genuine changes. A reading whose
// door is unknown is logged as NotFound and dropped; it never aborts the
// batch.
func (p *SensorProcessor) Process(batch []types.SensorReading) []types.DockEvent {
	events := make([]types.DockEvent, 0)

	for _, reading := range batch {
		door, ok := p.repo.Get(reading.Plant, reading.Door)
		if !ok {
			err := apperrors.NotFound("processing.sensor", "Process", "door not found").
				WithMetadata("plant", reading.Plant).WithMetadata("door", reading.Door)
			p.logger.WithFields(logrus.Fields{"plant": reading.Plant, "door": reading.Door}).
				Warn(err.Error())
			continue
		}

		derived := p.processOne(door, reading)
		events = append(events, derived...)
	}

	return events
}

func (p *SensorProcessor) processOne(door types.DockDoor, reading types.SensorReading) []types.DockEvent {
	events := make([]types.DockEvent, 0, 2)

	sensor, exists := door.Sensors[reading.SensorName]
	if !exists {
		// Sensor tag not in this door's configured set; nothing to do.
		return events
	}

	firstObservation := sensor.CurrentValue == nil
	newVal := reading.Value

	changed := !firstObservation && *sensor.CurrentValue != newVal

	if !firstObservation && !changed {
		// Value unchanged: no state mutation, no event.
		return events
	}

	oldVal := sensor.CurrentValue
	sensor.PreviousValue = sensor.CurrentValue
	sensor.CurrentValue = &newVal
	sensor.LastUpdated = reading.Timestamp
	door.Sensors[reading.SensorName] = sensor

	if changed {
		events = append(events, types.DockEvent{
			Kind:       types.EventSensorChanged,
			Plant:      door.PlantID,
			Door:       door.DockName,
			Timestamp:  reading.Timestamp,
			SensorName: reading.SensorName,
			OldInt:     oldVal,
			NewInt:     &newVal,
		})
	}

	// Projection runs on every observation, including the first, using old==nil as "no prior edge" for edge-triggered
	// rules below.
	events = append(events, p.applyProjection(&door, reading.SensorName, oldVal, newVal, reading.Timestamp)...)

	door.LastUpdated = reading.Timestamp
	p.repo.Update(door.PlantID, door)
	return events
}

// applyProjection maps one sensor observation onto the door's derived
// state fields, one case per configured tag.
func (p *SensorProcessor) applyProjection(door *types.DockDoor, tag string, old *int, new int, ts time.Time) []types.DockEvent {
	events := make([]types.DockEvent, 0, 1)
	edge := func(from, to int) bool { return old != nil && *old == from && new == to }

	switch tag {
	case "AUTO_DISENGAGING":
		if new == 1 {
			door.RestraintState = types.RestraintUnlocking
		} else {
			door.RestraintState = types.RestraintUnlocked
		}

	case "AUTO_ENGAGING":
		if new == 1 {
			door.RestraintState = types.RestraintLocking
		} else {
			door.RestraintState = types.RestraintLocked
		}

	case "FAULT_PRESENCE":
		if new == 1 {
			door.FaultState = types.FaultPresent
		} else {
			door.FaultState = types.NoFault
		}

	case "FAULT_TRAILER_DOORS":
		door.TrailerDoorFault = new == 1

	case "RH_DOCK_READY":
		if edge(0, 1) && (door.DoorState == types.DoorTrailerDocked || door.DoorState == types.DoorUnassigned) {
			old := door.DoorState
			door.DoorState = types.DoorReady
			door.PreviousDoorState = old
			events = append(events, types.DockEvent{
				Kind: types.EventDoorStateChanged, Plant: door.PlantID, Door: door.DockName,
				Timestamp: ts, OldDoorState: old, NewDoorState: types.DoorReady,
			})
		}

	case "RH_DOKLOCK_FAULT":
		door.DockLockFault = new == 1

	case "RH_DOOR_FAULT":
		door.DoorFault = new == 1

	case "RH_DOOR_OPEN":
		if new == 1 {
			door.DoorPosition = types.DoorOpen
		} else {
			door.DoorPosition = types.DoorClosed
		}

	case "RH_ESTOP":
		if new == 1 {
			door.EmergencyStop = true
			door.ManualMode = types.ManualModeEnabled
		}

	case "RH_LEVELER_FAULT":
		door.LevelerFault = new == 1

	case "RH_LEVELR_READY":
		if new == 1 {
			door.LevelerPosition = types.LevelerExtended
		} else {
			door.LevelerPosition = types.LevelerStored
		}

	case "RH_MANUAL_MODE":
		if new == 1 {
			door.ManualMode = types.ManualModeEnabled
		} else {
			door.ManualMode = types.ManualModeDisabled
		}

	case "RH_RESTRAINT_ENGAGED":
		if new == 1 {
			door.DockLockState = types.DockLockEngaged
		} else {
			door.DockLockState = types.DockLockDisengaged
		}

	case "TRAILER_ANGLE", "TRAILER_CENTERING", "TRAILER_DISTANCE":
		if new == 0 {
			door.TrailerPosition = types.TrailerPositionProper
		} else {
			door.TrailerPosition = types.TrailerPositionImproper
		}

	case "TRAILER_AT_DOOR":
		if edge(0, 1) {
			now := ts
			door.DockingTime = &now
			oldTrailer := door.TrailerState
			door.TrailerState = types.TrailerDocked
			door.PreviousTrailerState = oldTrailer
			door.TrailerStateChanged = ts
			events = append(events, types.DockEvent{
				Kind: types.EventTrailerStateChanged, Plant: door.PlantID, Door: door.DockName,
				Timestamp: ts, OldTrailerState: oldTrailer, NewTrailerState: types.TrailerDocked,
			})
			oldDoor := door.DoorState
			door.DoorState = types.DoorTrailerDocked
			door.PreviousDoorState = oldDoor
			events = append(events, types.DockEvent{
				Kind: types.EventDoorStateChanged, Plant: door.PlantID, Door: door.DockName,
				Timestamp: ts, OldDoorState: oldDoor, NewDoorState: types.DoorTrailerDocked,
			})
		} else if edge(1, 0) {
			door.DockingTime = nil
			oldTrailer := door.TrailerState
			door.TrailerState = types.TrailerUndocked
			door.PreviousTrailerState = oldTrailer
			door.TrailerStateChanged = ts
			events = append(events, types.DockEvent{
				Kind: types.EventTrailerStateChanged, Plant: door.PlantID, Door: door.DockName,
				Timestamp: ts, OldTrailerState: oldTrailer, NewTrailerState: types.TrailerUndocked,
			})
		}
	}

	return events
}
