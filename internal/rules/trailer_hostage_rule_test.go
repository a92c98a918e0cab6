package rules

import (
	"encoding/json"
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHostageRule(t *testing.T, thresholdSecs, repeatSecs uint64) *TrailerHostageRule {
	t.Helper()
	params, _ := json.Marshal(map[string]uint64{
		"alert_threshold": thresholdSecs,
		"repeat_interval": repeatSecs,
	})
	rule, err := NewTrailerHostageRule(params)
	require.NoError(t, err)
	return rule
}

func hostageDoor(stateChangedAgo time.Duration) types.DockDoor {
	door := testDoor()
	door.LoadingStatus = types.LoadingCompleted
	door.TrailerState = types.TrailerDocked
	door.ManualMode = types.ManualModeEnabled
	door.TrailerStateChanged = time.Now().Add(-stateChangedAgo)
	door.CurrentShipment = strPtr("123")
	return door
}

func TestHostageAlertPastThreshold(t *testing.T) {
	rule := newHostageRule(t, 300, 600)
	door := hostageDoor(301 * time.Second)

	outcomes := rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, time.Now()))

	alerts := outcomesOfKind(outcomes, types.OutcomeAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertTrailerHostage, alerts[0].Alert.Tag)
	require.NotNil(t, alerts[0].Alert.Duration)
	assert.InDelta(t, 301.0, alerts[0].Alert.Duration.Seconds(), 2.0)

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "TRAILER_HOSTAGE", logs[0].Log.EventType)
	assert.Equal(t, 2, logs[0].Log.Severity)
	assert.False(t, logs[0].Log.Success)
}

func TestHostageBelowThresholdSilent(t *testing.T) {
	rule := newHostageRule(t, 300, 600)
	door := hostageDoor(10 * time.Second)

	assert.Empty(t, rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, time.Now())))
}

func TestHostageRequiresAllThreeConditions(t *testing.T) {
	rule := newHostageRule(t, 0, 600)
	ts := time.Now()

	undocked := hostageDoor(time.Hour)
	undocked.TrailerState = types.TrailerUndocked
	assert.Empty(t, rule.Apply(undocked, sensorEvent("RH_MANUAL_MODE", 0, 1, ts)))

	automatic := hostageDoor(time.Hour)
	automatic.ManualMode = types.ManualModeDisabled
	assert.Empty(t, rule.Apply(automatic, sensorEvent("RH_MANUAL_MODE", 1, 0, ts)))

	loading := hostageDoor(time.Hour)
	loading.LoadingStatus = types.LoadingLoading
	assert.Empty(t, rule.Apply(loading, sensorEvent("RH_MANUAL_MODE", 0, 1, ts)))

	waiting := hostageDoor(time.Hour)
	waiting.LoadingStatus = types.LoadingWaitingForExit
	assert.NotEmpty(t, rule.Apply(waiting, sensorEvent("RH_MANUAL_MODE", 0, 1, ts)))
}

func TestHostageIgnoresUnrelatedEvents(t *testing.T) {
	rule := newHostageRule(t, 0, 600)
	door := hostageDoor(time.Hour)

	assert.Empty(t, rule.Apply(door, sensorEvent("RH_DOOR_OPEN", 0, 1, time.Now())))
	assert.Empty(t, rule.Apply(door, wmsEvent(types.MsgStartedShipment, "1", "", time.Now())))
}

func TestHostageThrottled(t *testing.T) {
	rule := newHostageRule(t, 0, 600)
	door := hostageDoor(time.Hour)
	t0 := time.Now()

	first := rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 0, 1, t0))
	second := rule.Apply(door, sensorEvent("RH_MANUAL_MODE", 1, 0, t0.Add(time.Second)))

	assert.NotEmpty(t, outcomesOfKind(first, types.OutcomeAlert))
	assert.Empty(t, second)
}
