package rules

import (
	"encoding/json"

	"dockmonitor/pkg/types"
)

type newShipmentPreviousTrailerPresentParams struct {
	CompletionStatuses []string `json:"completion_statuses"`
}

// NewShipmentPreviousTrailerPresentRule flags a new shipment assignment
// while the previous trailer is still physically docked and its WMS status
// already reads as complete — a likely sign the door wasn't actually
// cleared.
type NewShipmentPreviousTrailerPresentRule struct {
	completionStatuses map[string]bool
}

func NewNewShipmentPreviousTrailerPresentRule(raw json.RawMessage) (*NewShipmentPreviousTrailerPresentRule, error) {
	var p newShipmentPreviousTrailerPresentParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	set := make(map[string]bool, len(p.CompletionStatuses))
	for _, s := range p.CompletionStatuses {
		set[s] = true
	}
	return &NewShipmentPreviousTrailerPresentRule{completionStatuses: set}, nil
}

func (r *NewShipmentPreviousTrailerPresentRule) Name() string {
	return "NewShipmentPreviousTrailerPresentRule"
}

func (r *NewShipmentPreviousTrailerPresentRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventShipmentAssigned {
		return nil
	}

	if door.TrailerState != types.TrailerDocked {
		return nil
	}

	if !r.completionStatuses[door.WmsShipmentStatus] {
		return nil
	}

	return []types.Outcome{
		alertOutcome(types.AlertTrailerDockedNotStarted, door.DockName, event.NewShipment, nil, "", 2, nil),
		logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "NEW_SHIPMENT_PREVIOUS_TRAILER_PRESENT", false, "", 2, event.NewShipment)),
	}
}
