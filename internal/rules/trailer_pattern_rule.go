package rules

import (
	"encoding/json"
	"strconv"
	"strings"

	"dockmonitor/pkg/types"
)

type trailerPatternParams struct {
	SeverityThreshold int `json:"severity_threshold"`
}

// TrailerPatternRule parses the integer severity carried in a TRK_PTRN
// event's notes and alerts when it exceeds the configured threshold.
type TrailerPatternRule struct {
	threshold int
}

func NewTrailerPatternRule(raw json.RawMessage) (*TrailerPatternRule, error) {
	var p trailerPatternParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	return &TrailerPatternRule{threshold: p.SeverityThreshold}, nil
}

func (r *TrailerPatternRule) Name() string { return "TrailerPatternRule" }

func (r *TrailerPatternRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	if event.Kind != types.EventWmsEvent || event.Wms.MessageType != types.MsgTrkPtrn {
		return nil
	}

	severity, err := strconv.Atoi(strings.TrimSpace(event.Wms.MessageNotes))
	if err != nil {
		return nil
	}

	if severity <= r.threshold {
		return nil
	}

	extra := map[string]string{"severity": strconv.Itoa(severity)}
	outcomes := []types.Outcome{
		alertOutcome(types.AlertTrailerPatternIssue, door.DockName, door.CurrentShipment, nil, "", severity, extra),
		logOutcome(auditRow(event.Timestamp, door.PlantID, door.DockName, "TRAILER_PATTERN_ISSUE", false, event.Wms.MessageNotes, severity, door.CurrentShipment)),
	}
	return outcomes
}
