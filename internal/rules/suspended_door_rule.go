package rules

import (
	"encoding/json"
	"strings"
	"time"

	"dockmonitor/pkg/types"
)

type suspendedDoorParams struct {
	RepeatIntervalSecs uint64 `json:"repeat_interval"`
}

// SuspendedDoorRule emits a throttled alert plus an unconditional audit row
// on every SUSPENDED_SHIPMENT WMS event.
type SuspendedDoorRule struct {
	repeatInterval time.Duration
	cd             *cooldown
}

func NewSuspendedDoorRule(raw json.RawMessage) (*SuspendedDoorRule, error) {
	var p suspendedDoorParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.RepeatIntervalSecs == 0 {
		p.RepeatIntervalSecs = 600
	}
	return &SuspendedDoorRule{
		repeatInterval: time.Duration(p.RepeatIntervalSecs) * time.Second,
		cd:             newCooldown(),
	}, nil
}

func (r *SuspendedDoorRule) Name() string { return "SuspendedDoorRule" }

func (r *SuspendedDoorRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventWmsEvent || event.Wms.MessageType != types.MsgSuspendedShipment {
		return nil
	}

	var duration time.Duration
	if door.AssignmentDttm != nil {
		duration = event.Timestamp.Sub(*door.AssignmentDttm)
	}

	user := firstDashToken(event.Wms.MessageNotes)

	outcomes := []types.Outcome{
		logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "SUSPENDED_DOOR_WMS", true, event.Wms.MessageNotes, 2, door.CurrentShipment)),
	}

	if r.cd.Allow(door.PlantID+"/"+door.DockName, r.repeatInterval, event.Timestamp) {
		extra := map[string]string{}
		if user != "" {
			extra["user"] = user
		}
		outcomes = append(outcomes, alertOutcome(types.AlertSuspendedDoor, door.DockName, door.CurrentShipment, &duration, "", 0, extra))
	}

	return outcomes
}

// firstDashToken returns message_notes' first dash-separated token,
// trimmed; suspension and cancellation notes lead with the user name.
func firstDashToken(notes string) string {
	parts := strings.SplitN(notes, "-", 2)
	return strings.TrimSpace(parts[0])
}
