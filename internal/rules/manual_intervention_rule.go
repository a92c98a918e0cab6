package rules

import (
	"encoding/json"
	"sync"
	"time"

	"dockmonitor/pkg/types"
)

type manualInterventionParams struct {
	MaxChecks int `json:"max_checks"`
}

type manualInterventionState struct {
	startedAt  time.Time
	shipment   *string
	checkCount int
}

// ManualInterventionRule tracks how long a door stays in manual mode,
// emitting a success log when it clears and a timeout alert if a periodic
// Sweep finds it still engaged after MaxChecks.
type ManualInterventionRule struct {
	maxChecks int
	mu        sync.Mutex
	tracked   map[string]*manualInterventionState
}

func NewManualInterventionRule(raw json.RawMessage) (*ManualInterventionRule, error) {
	var p manualInterventionParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.MaxChecks == 0 {
		p.MaxChecks = 10
	}
	return &ManualInterventionRule{
		maxChecks: p.MaxChecks,
		tracked:   make(map[string]*manualInterventionState),
	}, nil
}

func (r *ManualInterventionRule) Name() string { return "ManualInterventionRule" }

func (r *ManualInterventionRule) key(door types.DoorSnapshot) string {
	return door.PlantID + "/" + door.DockName
}

func (r *ManualInterventionRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	key := r.key(door)

	manualEngaged := event.Kind == types.EventSensorChanged && event.SensorName == "RH_MANUAL_MODE" &&
		isEdge(event.OldInt, event.NewInt, 0, 1)
	manualCleared := event.Kind == types.EventSensorChanged && event.SensorName == "RH_MANUAL_MODE" &&
		isEdge(event.OldInt, event.NewInt, 1, 0)
	dockReady := event.Kind == types.EventSensorChanged && event.SensorName == "RH_DOCK_READY" &&
		isEdge(event.OldInt, event.NewInt, 0, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if manualEngaged {
		r.tracked[key] = &manualInterventionState{startedAt: event.Timestamp, shipment: door.CurrentShipment}
		return []types.Outcome{logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "MANUAL_INTERVENTION_STARTED", true, "", 0, door.CurrentShipment))}
	}

	state, tracking := r.tracked[key]
	if !tracking {
		return nil
	}

	if manualCleared || dockReady {
		delete(r.tracked, key)
		duration := event.Timestamp.Sub(state.startedAt)
		rec := auditRow(event.Timestamp, door.PlantID, door.DockName, "MANUAL_INTERVENTION_SUCCESS", true, duration.String(), 0, state.shipment)
		return []types.Outcome{logOutcome(rec)}
	}

	return nil
}

// Sweep increments the check count of every tracked door, firing a timeout
// alert+log and dropping the tracking entry once MaxChecks is reached. It
// is invoked by the process's periodic monitoring tick rather than by
// Apply, since it runs independent of any specific event.
func (r *ManualInterventionRule) Sweep(now time.Time) []types.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var outcomes []types.Outcome
	for key, state := range r.tracked {
		state.checkCount++
		if state.checkCount < r.maxChecks {
			continue
		}

		plant, door := splitKey(key)
		outcomes = append(outcomes,
			alertOutcome(types.AlertManualInterventionTimeout, door, state.shipment, durationPtr(now.Sub(state.startedAt)), "", 2, nil),
			logOutcome(auditRow(now, plant, door, "MANUAL_INTERVENTION_FAILURE", false, "", 2, state.shipment)),
		)
		delete(r.tracked, key)
	}
	return outcomes
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func splitKey(key string) (plant, door string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
