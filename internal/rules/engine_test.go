package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDoor builds a door snapshot with every sensor slot primed to 0.
func testDoor() types.DockDoor {
	door := types.DockDoor{
		PlantID:  "P1",
		DockName: "D1",
		DockIP:   "10.0.0.1",
		Sensors:  make(map[string]types.Sensor, len(types.SensorTagNames)),
	}
	zero := 0
	for _, tag := range types.SensorTagNames {
		v := zero
		door.Sensors[tag] = types.Sensor{CurrentValue: &v}
	}
	return door
}

func setSensor(door *types.DockDoor, tag string, value int) {
	v := value
	door.Sensors[tag] = types.Sensor{CurrentValue: &v}
}

func sensorEvent(tag string, old, new int, ts time.Time) types.DockEvent {
	o, n := old, new
	return types.DockEvent{
		Kind: types.EventSensorChanged, Plant: "P1", Door: "D1", Timestamp: ts,
		SensorName: tag, OldInt: &o, NewInt: &n,
	}
}

func wmsEvent(msgType types.WmsMessageType, shipment, notes string, ts time.Time) types.DockEvent {
	return types.DockEvent{
		Kind: types.EventWmsEvent, Plant: "P1", Door: "D1", Timestamp: ts,
		Wms: types.WmsEvent{
			Plant: "P1", DockName: "D1", ShipmentID: shipment,
			LogDttm: ts, MessageType: msgType, MessageNotes: notes,
		},
	}
}

func outcomesOfKind(outcomes []types.Outcome, kind types.OutcomeKind) []types.Outcome {
	var out []types.Outcome
	for _, o := range outcomes {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

type recordingRule struct {
	name  string
	calls int
}

func (r *recordingRule) Name() string { return r.name }

func (r *recordingRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	r.calls++
	return []types.Outcome{logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, r.name, true, "", 0, nil))}
}

func TestEngineRunsRulesInOrder(t *testing.T) {
	first := &recordingRule{name: "first"}
	second := &recordingRule{name: "second"}
	engine := NewEngine([]types.Rule{first, second})

	outcomes := engine.Apply(testDoor(), sensorEvent("RH_DOOR_OPEN", 0, 1, time.Now()))

	require.Len(t, outcomes, 2)
	assert.Equal(t, "first", outcomes[0].Log.EventType)
	assert.Equal(t, "second", outcomes[1].Log.EventType)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestLoadEngineBuildsConfiguredRules(t *testing.T) {
	ruleJSON := `[
		{"rule_type": "DockReadyRule", "parameters": {}},
		{"rule_type": "TrailerDockingRule", "parameters": {
			"required_sensors": {"TRAILER_ANGLE": 0, "TRAILER_DISTANCE": 0, "TRAILER_CENTERING": 0},
			"acceptable_loading_statuses": ["CSO", "WhseInspection"]
		}},
		{"rule_type": "SuspendedDoorRule", "parameters": {"repeat_interval": 600}},
		{"rule_type": "ConsolidatedDataRule", "parameters": {}}
	]`
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(ruleJSON), 0o644))

	engine, err := LoadEngine(path)
	require.NoError(t, err)
	require.Len(t, engine.list, 4)
	assert.Equal(t, "DockReadyRule", engine.list[0].Name())
	assert.Equal(t, "TrailerDockingRule", engine.list[1].Name())
	assert.Equal(t, "SuspendedDoorRule", engine.list[2].Name())
	assert.Equal(t, "ConsolidatedDataRule", engine.list[3].Name())
}

func TestLoadEngineUnknownRuleTypeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"rule_type": "TeleportRule"}]`), 0o644))

	_, err := LoadEngine(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TeleportRule")
}

func TestLoadEngineMalformedJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"`), 0o644))

	_, err := LoadEngine(path)
	assert.Error(t, err)
}

func TestLoadEngineMissingFileFails(t *testing.T) {
	_, err := LoadEngine(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
