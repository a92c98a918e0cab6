// Package alerting implements the alert manager's dedupe/throttle layer
// and the monitoring queue's recurring re-check worker.
package alerting

import (
	"context"
	"strconv"
	"sync"
	"time"

	"dockmonitor/internal/metrics"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// alwaysMonitored alerts bypass the manager's cooldown entirely; they are
// the three kinds the monitoring queue re-evaluates on its own timer.
var alwaysMonitored = map[types.AlertKindTag]bool{
	types.AlertSuspendedDoor:               true,
	types.AlertTrailerDockedNotStarted:     true,
	types.AlertShipmentStartedLoadNotReady: true,
}

// Manager dedupes and throttles alerts per (alert_type, door) key before
// dispatching them to a per-plant webhook sink.
type Manager struct {
	mu       sync.Mutex
	lastSent map[string]time.Time

	repeatIntervals map[types.AlertKindTag]time.Duration
	sinks           map[string]types.AlertSink
	logger          *logrus.Logger
}

// NewManager builds a Manager from the per-category alert thresholds and a
// per-plant set of webhook sinks.
func NewManager(alerts types.AlertSettings, sinks map[string]types.AlertSink, logger *logrus.Logger) *Manager {
	repeats := map[types.AlertKindTag]time.Duration{
		types.AlertSuspendedDoor:               secs(alerts.SuspendedDoor.RepeatInterval),
		types.AlertTrailerPatternIssue:         secs(alerts.TrailerPattern.RepeatInterval),
		types.AlertLongLoadingStart:            secs(alerts.LongLoadingStart.RepeatInterval),
		types.AlertShipmentStartedLoadNotReady: secs(alerts.ShipmentStartedLoadNotReady.RepeatInterval),
		types.AlertTrailerHostage:              secs(alerts.TrailerHostage.RepeatInterval),
		types.AlertDockReady:                   secs(alerts.DockReady.RepeatInterval),
		types.AlertManualMode:                  secs(alerts.ManualMode.RepeatInterval),
		types.AlertManualInterventionTimeout:   secs(alerts.ManualIntervention.RepeatInterval),
		types.AlertTrailerDockedNotStarted:     secs(alerts.TrailerDocked.RepeatInterval),
	}

	return &Manager{
		lastSent:        make(map[string]time.Time),
		repeatIntervals: repeats,
		sinks:           sinks,
		logger:          logger,
	}
}

func secs(n uint64) time.Duration {
	if n == 0 {
		return 300 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Handle is the cooldown-checked path used for alerts produced by rule
// outcomes.
func (m *Manager) Handle(ctx context.Context, plant string, alert types.AlertKind) {
	if alwaysMonitored[alert.Tag] {
		m.dispatch(ctx, plant, alert)
		return
	}

	key := alertKey(alert.Tag, alert.DoorName)
	repeat := m.repeatIntervals[alert.Tag]
	if repeat == 0 {
		repeat = 300 * time.Second
	}

	m.mu.Lock()
	now := time.Now()
	last, ok := m.lastSent[key]
	if ok && now.Sub(last) <= repeat {
		m.mu.Unlock()
		metrics.RecordAlert(plant, "throttled")
		return
	}
	m.lastSent[key] = now
	m.mu.Unlock()

	m.dispatch(ctx, plant, alert)
}

// Dispatch sends unconditionally, bypassing the cooldown — the deliberate
// "heartbeat" channel used by the Monitoring Queue worker.
func (m *Manager) Dispatch(ctx context.Context, plant string, alert types.AlertKind) {
	m.dispatch(ctx, plant, alert)
}

func (m *Manager) dispatch(ctx context.Context, plant string, alert types.AlertKind) {
	sink, ok := m.sinks[plant]
	if !ok {
		m.logger.WithField("plant", plant).Warn("no alert sink configured for plant")
		return
	}

	message := FormatAlert(alert)
	if err := sink.Send(ctx, message); err != nil {
		m.logger.WithFields(logrus.Fields{"plant": plant, "door": alert.DoorName, "error": err}).
			Warn("webhook alert delivery failed")
		metrics.RecordAlert(plant, "failed")
		return
	}
	metrics.RecordAlert(plant, "sent")
}

func alertKey(tag types.AlertKindTag, door string) string {
	return strconv.Itoa(int(tag)) + "/" + door
}
