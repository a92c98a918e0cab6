package rules

import (
	"encoding/json"
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSuspendedRule(t *testing.T, repeatSecs uint64) *SuspendedDoorRule {
	t.Helper()
	params, _ := json.Marshal(map[string]uint64{"repeat_interval": repeatSecs})
	rule, err := NewSuspendedDoorRule(params)
	require.NoError(t, err)
	return rule
}

func TestSuspendedDoorIgnoresOtherEvents(t *testing.T) {
	rule := newSuspendedRule(t, 600)
	assert.Empty(t, rule.Apply(testDoor(), wmsEvent(types.MsgStartedShipment, "1", "", time.Now())))
	assert.Empty(t, rule.Apply(testDoor(), sensorEvent("RH_MANUAL_MODE", 0, 1, time.Now())))
}

func TestSuspendedDoorAlertAndLog(t *testing.T) {
	rule := newSuspendedRule(t, 600)
	door := testDoor()
	assigned := time.Now().Add(-45 * time.Minute)
	door.AssignmentDttm = &assigned
	door.CurrentShipment = strPtr("123")

	ts := time.Now()
	outcomes := rule.Apply(door, wmsEvent(types.MsgSuspendedShipment, "123", "jsmith - operator hold", ts))

	logs := outcomesOfKind(outcomes, types.OutcomeLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "SUSPENDED_DOOR_WMS", logs[0].Log.EventType)
	assert.Equal(t, 2, logs[0].Log.Severity)

	alerts := outcomesOfKind(outcomes, types.OutcomeAlert)
	require.Len(t, alerts, 1)
	alert := alerts[0].Alert
	assert.Equal(t, types.AlertSuspendedDoor, alert.Tag)
	assert.Equal(t, "123", *alert.ShipmentID)
	assert.Equal(t, "jsmith", alert.Extra["user"])
	require.NotNil(t, alert.Duration)
	assert.InDelta(t, (45 * time.Minute).Seconds(), alert.Duration.Seconds(), 1.0)
}

// Three suspensions at t, t+1s, t+601s with a 600s cooldown: alerts fire at
// t and t+601s only, but every event produces its audit row.
func TestSuspendedDoorCooldownWindow(t *testing.T) {
	rule := newSuspendedRule(t, 600)
	door := testDoor()
	t0 := time.Now()

	first := rule.Apply(door, wmsEvent(types.MsgSuspendedShipment, "1", "", t0))
	second := rule.Apply(door, wmsEvent(types.MsgSuspendedShipment, "1", "", t0.Add(time.Second)))
	third := rule.Apply(door, wmsEvent(types.MsgSuspendedShipment, "1", "", t0.Add(601*time.Second)))

	assert.Len(t, outcomesOfKind(first, types.OutcomeAlert), 1)
	assert.Len(t, outcomesOfKind(second, types.OutcomeAlert), 0)
	assert.Len(t, outcomesOfKind(third, types.OutcomeAlert), 1)

	assert.Len(t, outcomesOfKind(first, types.OutcomeLog), 1)
	assert.Len(t, outcomesOfKind(second, types.OutcomeLog), 1)
	assert.Len(t, outcomesOfKind(third, types.OutcomeLog), 1)
}

func TestSuspendedDoorCooldownIsPerDoor(t *testing.T) {
	rule := newSuspendedRule(t, 600)
	t0 := time.Now()

	doorA := testDoor()
	doorB := testDoor()
	doorB.DockName = "D2"

	eventB := wmsEvent(types.MsgSuspendedShipment, "1", "", t0.Add(time.Second))
	eventB.Door = "D2"
	eventB.Wms.DockName = "D2"

	first := rule.Apply(doorA, wmsEvent(types.MsgSuspendedShipment, "1", "", t0))
	second := rule.Apply(doorB, eventB)

	assert.Len(t, outcomesOfKind(first, types.OutcomeAlert), 1)
	assert.Len(t, outcomesOfKind(second, types.OutcomeAlert), 1)
}

func TestFirstDashToken(t *testing.T) {
	assert.Equal(t, "jsmith", firstDashToken("jsmith - hold requested"))
	assert.Equal(t, "jsmith", firstDashToken("jsmith"))
	assert.Equal(t, "", firstDashToken(""))
	assert.Equal(t, "a b", firstDashToken(" a b - c - d"))
}
