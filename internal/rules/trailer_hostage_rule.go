package rules

import (
	"encoding/json"
	"time"

	"dockmonitor/pkg/types"
)

type trailerHostageParams struct {
	AlertThresholdSecs uint64 `json:"alert_threshold"`
	RepeatIntervalSecs uint64 `json:"repeat_interval"`
}

// TrailerHostageRule detects a trailer that finished loading yet remains
// docked with manual mode engaged.
type TrailerHostageRule struct {
	threshold time.Duration
	repeat    time.Duration
	cd        *cooldown
}

func NewTrailerHostageRule(raw json.RawMessage) (*TrailerHostageRule, error) {
	var p trailerHostageParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	return &TrailerHostageRule{
		threshold: time.Duration(p.AlertThresholdSecs) * time.Second,
		repeat:    time.Duration(p.RepeatIntervalSecs) * time.Second,
		cd:        newCooldown(),
	}, nil
}

func (r *TrailerHostageRule) Name() string { return "TrailerHostageRule" }

func (r *TrailerHostageRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	relevant := (event.Kind == types.EventSensorChanged && event.SensorName == "RH_MANUAL_MODE") ||
		event.Kind == types.EventLoadingStatusChanged ||
		event.Kind == types.EventTrailerStateChanged

	if !relevant {
		return nil
	}

	hostage := (door.LoadingStatus == types.LoadingCompleted || door.LoadingStatus == types.LoadingWaitingForExit) &&
		door.TrailerState == types.TrailerDocked &&
		door.ManualMode == types.ManualModeEnabled

	if !hostage {
		return nil
	}

	duration := event.Timestamp.Sub(door.TrailerStateChanged)
	if duration <= r.threshold {
		return nil
	}

	if !r.cd.Allow(door.PlantID+"/"+door.DockName, r.repeat, event.Timestamp) {
		return nil
	}

	return []types.Outcome{
		alertOutcome(types.AlertTrailerHostage, door.DockName, door.CurrentShipment, &duration, "", 0, nil),
		logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "TRAILER_HOSTAGE", false, "", 2, door.CurrentShipment)),
	}
}
