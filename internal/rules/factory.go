package rules

import (
	"encoding/json"
	"os"

	apperrors "dockmonitor/pkg/errors"
	"dockmonitor/pkg/types"
)

// ruleConfigEntry is one element of the JSON rule-configuration array:
// {"rule_type": "...", "parameters": {...}}.
type ruleConfigEntry struct {
	RuleType   string          `json:"rule_type"`
	Parameters json.RawMessage `json:"parameters"`
}

// LoadEngine reads the JSON rule file and builds an Engine in file order.
// An unknown rule_type fails fast.
func LoadEngine(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.FatalConfig("rules", "LoadEngine", "failed to read rule config file").Wrap(err)
	}

	var entries []ruleConfigEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.FatalConfig("rules", "LoadEngine", "failed to parse rule config file").Wrap(err)
	}

	list := make([]types.Rule, 0, len(entries))
	for _, entry := range entries {
		rule, err := build(entry)
		if err != nil {
			return nil, err
		}
		list = append(list, rule)
	}

	return NewEngine(list), nil
}

func build(entry ruleConfigEntry) (types.Rule, error) {
	asMap := func() map[string]interface{} {
		if len(entry.Parameters) == 0 {
			return nil
		}
		var m map[string]interface{}
		_ = json.Unmarshal(entry.Parameters, &m)
		return m
	}

	switch entry.RuleType {
	case "DockReadyRule":
		return NewDockReadyRule(asMap())
	case "TrailerDockingRule":
		return NewTrailerDockingRule(entry.Parameters)
	case "TrailerUndockingRule":
		return NewTrailerUndockingRule(asMap())
	case "SuspendedDoorRule":
		return NewSuspendedDoorRule(entry.Parameters)
	case "LongLoadingStartRule":
		return NewLongLoadingStartRule(entry.Parameters)
	case "ShipmentStartedLoadNotReadyRule":
		return NewShipmentStartedLoadNotReadyRule(asMap())
	case "TrailerHostageRule":
		return NewTrailerHostageRule(entry.Parameters)
	case "TrailerPatternRule":
		return NewTrailerPatternRule(entry.Parameters)
	case "NewShipmentPreviousTrailerPresentRule":
		return NewNewShipmentPreviousTrailerPresentRule(entry.Parameters)
	case "ManualInterventionRule":
		return NewManualInterventionRule(entry.Parameters)
	case "WmsShipmentStatusRule":
		return NewWmsShipmentStatusRule(asMap())
	case "WmsEventsRule":
		return NewWmsEventsRule(asMap())
	case "ConsolidatedDataRule":
		return NewConsolidatedDataRule(asMap())
	default:
		return nil, apperrors.FatalConfig("rules", "build", "unknown rule_type: "+entry.RuleType)
	}
}
