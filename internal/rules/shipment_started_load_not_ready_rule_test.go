package rules

import (
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyDoor() types.DockDoor {
	door := testDoor()
	door.DockLockState = types.DockLockEngaged
	door.LevelerPosition = types.LevelerExtended
	door.DoorPosition = types.DoorOpen
	return door
}

func TestNotReadyAllPredicatesPassSilent(t *testing.T) {
	rule, _ := NewShipmentStartedLoadNotReadyRule(nil)
	assert.Empty(t, rule.Apply(readyDoor(), wmsEvent(types.MsgStartedShipment, "1", "", time.Now())))
}

func TestNotReadySingleFailure(t *testing.T) {
	rule, _ := NewShipmentStartedLoadNotReadyRule(nil)
	door := readyDoor()
	door.DoorPosition = types.DoorClosed

	outcomes := rule.Apply(door, wmsEvent(types.MsgStartedShipment, "1", "", time.Now()))

	require.Len(t, outcomes, 1)
	assert.Equal(t, types.AlertShipmentStartedLoadNotReady, outcomes[0].Alert.Tag)
	assert.Equal(t, "Door not open", outcomes[0].Alert.Reason)
}

func TestNotReadyAllFailuresConcatenated(t *testing.T) {
	rule, _ := NewShipmentStartedLoadNotReadyRule(nil)
	door := testDoor()

	outcomes := rule.Apply(door, wmsEvent(types.MsgStartedShipment, "1", "", time.Now()))

	require.Len(t, outcomes, 1)
	reason := outcomes[0].Alert.Reason
	assert.Contains(t, reason, "Restraint not engaged")
	assert.Contains(t, reason, "Leveler not extended")
	assert.Contains(t, reason, "Door not open")
}

func TestNotReadyOnlyOnStartedShipment(t *testing.T) {
	rule, _ := NewShipmentStartedLoadNotReadyRule(nil)
	assert.Empty(t, rule.Apply(testDoor(), wmsEvent(types.MsgSuspendedShipment, "1", "", time.Now())))
}
