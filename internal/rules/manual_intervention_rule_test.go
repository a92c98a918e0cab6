package rules

import (
	"encoding/json"
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInterventionRule(t *testing.T, maxChecks int) *ManualInterventionRule {
	t.Helper()
	params, _ := json.Marshal(map[string]int{"max_checks": maxChecks})
	rule, err := NewManualInterventionRule(params)
	require.NoError(t, err)
	return rule
}

func TestInterventionStartLogged(t *testing.T) {
	rule := newInterventionRule(t, 3)
	door := testDoor()
	door.CurrentShipment = strPtr("42")

	outcomes := rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, time.Now()))

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "MANUAL_INTERVENTION_STARTED", logs[0].Log.EventType)
	assert.True(t, logs[0].Log.Success)
	assert.Equal(t, "42", *logs[0].Log.ShipmentID)
}

func TestInterventionClearedByManualModeOff(t *testing.T) {
	rule := newInterventionRule(t, 3)
	door := testDoor()
	t0 := time.Now()

	rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, t0))
	outcomes := rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 1, 0, t0.Add(90*time.Second)))

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "MANUAL_INTERVENTION_SUCCESS", logs[0].Log.EventType)
	assert.Contains(t, logs[0].Log.Notes, "1m30s")
}

func TestInterventionClearedByDockReady(t *testing.T) {
	rule := newInterventionRule(t, 3)
	door := testDoor()
	t0 := time.Now()

	rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, t0))
	outcomes := rule.Apply(door, sensorEvent("RH_DOCK_READY", 0, 1, t0.Add(time.Minute)))

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "MANUAL_INTERVENTION_SUCCESS", logs[0].Log.EventType)

	// Tracking stopped: a second clear produces nothing.
	assert.Empty(t, rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 1, 0, t0.Add(2*time.Minute))))
}

func TestInterventionDockReadyWithoutTrackingIgnored(t *testing.T) {
	rule := newInterventionRule(t, 3)
	assert.Empty(t, rule.Apply(testDoor(), sensorEvent("RH_DOCK_READY", 0, 1, time.Now())))
}

func TestInterventionTimeoutViaSweep(t *testing.T) {
	rule := newInterventionRule(t, 3)
	door := testDoor()
	door.CurrentShipment = strPtr("42")
	t0 := time.Now()

	rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, t0))

	// First two sweeps only count.
	assert.Empty(t, rule.Sweep(t0.Add(time.Minute)))
	assert.Empty(t, rule.Sweep(t0.Add(2*time.Minute)))

	outcomes := rule.Sweep(t0.Add(3 * time.Minute))

	alerts := outcomesOfKind(outcomes, types.OutcomeAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertManualInterventionTimeout, alerts[0].Alert.Tag)
	assert.Equal(t, "42", *alerts[0].Alert.ShipmentID)

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "MANUAL_INTERVENTION_FAILURE", logs[0].Log.EventType)
	assert.Equal(t, 2, logs[0].Log.Severity)
	assert.Equal(t, "P1", logs[0].Log.Plant)
	assert.Equal(t, "D1", logs[0].Log.DoorName)

	// Monitoring stopped after the timeout fired.
	assert.Empty(t, rule.Sweep(t0.Add(4*time.Minute)))
}
