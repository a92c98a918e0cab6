package rules

import (
	"sync"
	"time"

	"dockmonitor/pkg/types"
)

// TrailerUndockingRule logs every trailer-undocked transition, whether it
// arrives as a TrailerStateChanged or the raw sensor edge. When one edge
// produces both events they share a timestamp, so the second is skipped.
type TrailerUndockingRule struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewTrailerUndockingRule(params map[string]interface{}) (*TrailerUndockingRule, error) {
	return &TrailerUndockingRule{lastSeen: make(map[string]time.Time)}, nil
}

func (r *TrailerUndockingRule) Name() string { return "TrailerUndockingRule" }

func (r *TrailerUndockingRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	stateUndocked := event.Kind == types.EventTrailerStateChanged &&
		event.OldTrailerState == types.TrailerDocked && event.NewTrailerState == types.TrailerUndocked
	sensorUndocked := event.Kind == types.EventSensorChanged && event.SensorName == "TRAILER_AT_DOOR" &&
		event.NewInt != nil && *event.NewInt == 0

	if !stateUndocked && !sensorUndocked {
		return nil
	}

	key := door.PlantID + "/" + door.DockName
	r.mu.Lock()
	duplicate := r.lastSeen[key].Equal(event.Timestamp)
	r.lastSeen[key] = event.Timestamp
	r.mu.Unlock()
	if duplicate {
		return nil
	}

	rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "TRAILER_UNDOCKING", true, "", 0, door.CurrentShipment)
	return []types.Outcome{logOutcome(rec)}
}
