package rules

import (
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDockReadyRisingEdge(t *testing.T) {
	rule, _ := NewDockReadyRule(nil)
	door := testDoor()
	door.CurrentShipment = strPtr("123")

	outcomes := rule.Apply(door, sensorEvent("RH_DOCK_READY", 0, 1, time.Now()))

	alerts := outcomesOfKind(outcomes, types.OutcomeAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertDockReady, alerts[0].Alert.Tag)
	assert.Equal(t, "123", *alerts[0].Alert.ShipmentID)

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "DOCK_READY", logs[0].Log.EventType)
	assert.True(t, logs[0].Log.Success)
	require.NotNil(t, logs[0].Log.PreviousState)
	assert.Equal(t, "TrailerDocked", *logs[0].Log.PreviousState)
}

func TestDockReadyFallingEdgeIgnored(t *testing.T) {
	rule, _ := NewDockReadyRule(nil)
	assert.Empty(t, rule.Apply(testDoor(), sensorEvent("RH_DOCK_READY", 1, 0, time.Now())))
}

func TestDockReadyFirstObservationIgnored(t *testing.T) {
	rule, _ := NewDockReadyRule(nil)
	one := 1
	event := types.DockEvent{
		Kind: types.EventSensorChanged, Plant: "P1", Door: "D1", Timestamp: time.Now(),
		SensorName: "RH_DOCK_READY", OldInt: nil, NewInt: &one,
	}
	assert.Empty(t, rule.Apply(testDoor(), event))
}

func TestDockReadyOtherSensorsIgnored(t *testing.T) {
	rule, _ := NewDockReadyRule(nil)
	assert.Empty(t, rule.Apply(testDoor(), sensorEvent("RH_DOOR_OPEN", 0, 1, time.Now())))
}
