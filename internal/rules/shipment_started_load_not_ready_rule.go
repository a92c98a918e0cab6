package rules

import (
	"strings"

	"dockmonitor/pkg/types"
)

// ShipmentStartedLoadNotReadyRule checks door readiness at the moment a
// shipment is reported started, concatenating every failing predicate into
// one alert reason.
type ShipmentStartedLoadNotReadyRule struct{}

func NewShipmentStartedLoadNotReadyRule(params map[string]interface{}) (*ShipmentStartedLoadNotReadyRule, error) {
	return &ShipmentStartedLoadNotReadyRule{}, nil
}

func (r *ShipmentStartedLoadNotReadyRule) Name() string {
	return "ShipmentStartedLoadNotReadyRule"
}

func (r *ShipmentStartedLoadNotReadyRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventWmsEvent || event.Wms.MessageType != types.MsgStartedShipment {
		return nil
	}

	var failures []string
	if door.DockLockState != types.DockLockEngaged {
		failures = append(failures, "Restraint not engaged")
	}
	if door.LevelerPosition != types.LevelerExtended {
		failures = append(failures, "Leveler not extended")
	}
	if door.DoorPosition != types.DoorOpen {
		failures = append(failures, "Door not open")
	}

	if len(failures) == 0 {
		return nil
	}

	reason := strings.Join(failures, ", ")
	return []types.Outcome{alertOutcome(types.AlertShipmentStartedLoadNotReady, door.DockName, door.CurrentShipment, nil, reason, 0, nil)}
}
