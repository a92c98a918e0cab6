package rules

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"dockmonitor/pkg/types"
)

// trailerDockingParams is the rule-local configuration schema: the sensor
// values and WMS statuses that together define a successful docking.
type trailerDockingParams struct {
	RequiredSensors          map[string]int `json:"required_sensors"`
	AcceptableLoadingStatus  []string       `json:"acceptable_loading_statuses"`
	AcceptableWmsStatus      []string       `json:"acceptable_wms_shipment_statuses"`
}

var sensorReasonText = map[string]string{
	"TRAILER_ANGLE":     "Trailer angle issue",
	"TRAILER_DISTANCE":  "Trailer distance issue",
	"TRAILER_CENTERING": "Trailer centering issue",
}

// TrailerDockingRule evaluates docking success against a configured set
// of required sensor values and acceptable loading/shipment statuses.
type TrailerDockingRule struct {
	params trailerDockingParams

	// One physical docking edge surfaces as both the raw sensor change and
	// the derived trailer-state change; both carry the reading's
	// timestamp, so remembering it dedupes the evaluation.
	mu            sync.Mutex
	lastEvaluated map[string]time.Time
}

func NewTrailerDockingRule(raw json.RawMessage) (*TrailerDockingRule, error) {
	var p trailerDockingParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	return &TrailerDockingRule{params: p, lastEvaluated: make(map[string]time.Time)}, nil
}

func (r *TrailerDockingRule) Name() string { return "TrailerDockingRule" }

func (r *TrailerDockingRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	terminal := door.DoorState == types.DoorLoadingCompleted || door.DoorState == types.DoorWaitingForExit

	trailerJustDocked := event.Kind == types.EventTrailerStateChanged &&
		event.OldTrailerState == types.TrailerUndocked && event.NewTrailerState == types.TrailerDocked
	sensorJustDocked := event.Kind == types.EventSensorChanged && event.SensorName == "TRAILER_AT_DOOR" &&
		isEdge(event.OldInt, event.NewInt, 0, 1) && !terminal

	var outcomes []types.Outcome

	if (trailerJustDocked || sensorJustDocked) && r.firstSightingOfEdge(door, event.Timestamp) {
		outcomes = append(outcomes, r.evaluateDocking(door, event)...)
	}

	if event.Kind == types.EventSensorChanged && event.SensorName == "RH_DOCK_READY" &&
		isEdge(event.OldInt, event.NewInt, 0, 1) && r.dockingSuccessful(door) {
		rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "DOCK_READY", true, "", 0, door.CurrentShipment)
		outcomes = append(outcomes, logOutcome(rec))
	}

	return outcomes
}

func (r *TrailerDockingRule) firstSightingOfEdge(door types.DoorSnapshot, ts time.Time) bool {
	key := door.PlantID + "/" + door.DockName
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastEvaluated[key].Equal(ts) {
		return false
	}
	r.lastEvaluated[key] = ts
	return true
}

func (r *TrailerDockingRule) evaluateDocking(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	success, reasons := r.dockingSuccessfulWithReasons(door)

	rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "TRAILER_DOCKING", success, strings.Join(reasons, ", "), 0, door.CurrentShipment)
	outcomes := []types.Outcome{logOutcome(rec)}

	if manual, ok := door.Sensors["RH_MANUAL_MODE"]; ok && manual.CurrentValue != nil && *manual.CurrentValue == 1 {
		if atDoor, ok := door.Sensors["TRAILER_AT_DOOR"]; ok && atDoor.CurrentValue != nil && *atDoor.CurrentValue == 1 {
			if r.otherTrailerSensorsOK(door) {
				outcomes = append(outcomes, alertOutcome(types.AlertManualMode, door.DockName, door.CurrentShipment, nil, "", 0, nil))
			}
		}
	}

	return outcomes
}

func (r *TrailerDockingRule) dockingSuccessful(door types.DoorSnapshot) bool {
	ok, _ := r.dockingSuccessfulWithReasons(door)
	return ok
}

func (r *TrailerDockingRule) dockingSuccessfulWithReasons(door types.DoorSnapshot) (bool, []string) {
	var reasons []string

	for tag, wantValue := range r.params.RequiredSensors {
		sensor, ok := door.Sensors[tag]
		if !ok || sensor.CurrentValue == nil || *sensor.CurrentValue != wantValue {
			if text, ok := sensorReasonText[tag]; ok {
				reasons = append(reasons, text)
			} else {
				reasons = append(reasons, tag+" issue")
			}
		}
	}

	if door.CurrentShipment == nil {
		reasons = append(reasons, "No shipment assigned")
	}

	if len(r.params.AcceptableLoadingStatus) > 0 && !containsFold(r.params.AcceptableLoadingStatus, door.LoadingStatus.String()) {
		reasons = append(reasons, "Loading status not valid")
	}
	if len(r.params.AcceptableWmsStatus) > 0 && !containsFold(r.params.AcceptableWmsStatus, door.WmsShipmentStatus) {
		reasons = append(reasons, "WMS shipment status not valid")
	}

	return len(reasons) == 0, reasons
}

func (r *TrailerDockingRule) otherTrailerSensorsOK(door types.DoorSnapshot) bool {
	for _, tag := range []string{"TRAILER_ANGLE", "TRAILER_CENTERING", "TRAILER_DISTANCE"} {
		sensor, ok := door.Sensors[tag]
		if !ok || sensor.CurrentValue == nil || *sensor.CurrentValue != 0 {
			return false
		}
	}
	return true
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
