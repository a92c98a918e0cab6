package rules

import (
	"encoding/json"
	"time"

	"dockmonitor/pkg/types"
)

type longLoadingStartParams struct {
	AlertThresholdSecs uint64 `json:"alert_threshold"`
	RepeatIntervalSecs uint64 `json:"repeat_interval"`
}

// LongLoadingStartRule alerts when a shipment's loading start is already
// stale by the time the event is observed — a sign the pipeline or the WMS
// itself is lagging.
type LongLoadingStartRule struct {
	threshold time.Duration
	repeat    time.Duration
	cd        *cooldown
	now       func() time.Time
}

func NewLongLoadingStartRule(raw json.RawMessage) (*LongLoadingStartRule, error) {
	var p longLoadingStartParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.RepeatIntervalSecs == 0 {
		p.RepeatIntervalSecs = 300
	}
	return &LongLoadingStartRule{
		threshold: time.Duration(p.AlertThresholdSecs) * time.Second,
		repeat:    time.Duration(p.RepeatIntervalSecs) * time.Second,
		cd:        newCooldown(),
		now:       time.Now,
	}, nil
}

func (r *LongLoadingStartRule) Name() string { return "LongLoadingStartRule" }

func (r *LongLoadingStartRule) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	loadingStatusHit := event.Kind == types.EventLoadingStatusChanged && event.NewLoadingStatus == types.LoadingLoading
	wmsHit := event.Kind == types.EventWmsEvent && event.Wms.MessageType == types.MsgStartedShipment

	if !loadingStatusHit && !wmsHit {
		return nil
	}

	if r.now().Sub(event.Timestamp) <= r.threshold {
		return nil
	}

	if !r.cd.Allow(door.PlantID+"/"+door.DockName, r.repeat, r.now()) {
		return nil
	}

	return []types.Outcome{alertOutcome(types.AlertLongLoadingStart, door.DockName, door.CurrentShipment, nil, "", 0, nil)}
}
