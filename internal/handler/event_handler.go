// Package handler implements the event handler: the single consumer of
// the events channel. It applies the rule engine, persists derived audit
// rows, routes alerts, and maintains the consolidated-event introspection
// map.
package handler

import (
	"context"
	"sync"
	"time"

	"dockmonitor/internal/alerting"
	"dockmonitor/internal/metrics"
	"dockmonitor/internal/repository"
	"dockmonitor/internal/rules"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// EventHandler receives events, consults the rule engine, persists
// derived log rows, routes alerts, and maintains door state.
type EventHandler struct {
	repo      *repository.Repository
	engine    *rules.Engine
	alertMgr  *alerting.Manager
	monitor   *alerting.MonitoringQueue
	store     types.AuditStore
	batchSize int
	logger    *logrus.Logger

	mu         sync.Mutex
	batch      []types.AuditRecord
	tracker    *consolidatedTracker
}

func NewEventHandler(repo *repository.Repository, engine *rules.Engine, alertMgr *alerting.Manager,
	monitor *alerting.MonitoringQueue, store types.AuditStore, batchSize int, logger *logrus.Logger) *EventHandler {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &EventHandler{
		repo:      repo,
		engine:    engine,
		alertMgr:  alertMgr,
		monitor:   monitor,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
		tracker:   newConsolidatedTracker(),
	}
}

// Run drains events until ctx is cancelled or the channel closes. On
// return it flushes whatever remains in the batch.
func (h *EventHandler) Run(ctx context.Context, events <-chan types.DockEvent) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				h.flush(context.Background())
				return
			}
			h.HandleEvent(ctx, event)
		case <-ctx.Done():
			h.flush(context.Background())
			return
		}
	}
}

// HandleEvent runs the per-event pipeline. A missing door is logged and
// the event dropped; no other error aborts processing.
func (h *EventHandler) HandleEvent(ctx context.Context, event types.DockEvent) {
	door, ok := h.repo.Get(event.Plant, event.Door)
	if !ok {
		h.logger.WithFields(logrus.Fields{"plant": event.Plant, "door": event.Door}).
			Warn("event handler: door not found, dropping event")
		return
	}

	outcomes := h.engine.Apply(door, event)

	for _, outcome := range outcomes {
		switch outcome.Kind {
		case types.OutcomeStateTransition:
			door.PreviousDoorState = door.DoorState
			door.DoorState = outcome.NewDoorState

		case types.OutcomeLog:
			h.appendBatch(outcome.Log)

		case types.OutcomeDbInsert:
			h.appendBatch(outcome.DbInsert)

		case types.OutcomeAlert:
			h.alertMgr.Handle(ctx, door.PlantID, outcome.Alert)
			h.maybeEnqueueMonitoring(outcome.Alert, door, event)

		case types.OutcomeConsolidatedUpdate:
			if err := h.store.InsertConsolidatedEvent(ctx, outcome.Consolidated); err != nil {
				h.logger.WithError(err).Error("failed to insert consolidated event")
			} else {
				metrics.ConsolidatedFlushedTotal.Inc()
			}
			h.tracker.drop(outcome.Consolidated.Key())
		}
	}

	applyDoorSelfHandle(&door, event)
	h.tracker.touch(door, event)
	h.repo.Update(door.PlantID, door)
	metrics.ConsolidatedPending.Set(float64(h.tracker.size()))

	if h.batchLen() >= h.batchSize {
		h.flush(ctx)
	}
}

// RunSweep drives the rules' periodic re-evaluation (only
// ManualInterventionRule keeps sweep state today) and routes the resulting
// outcomes the same way HandleEvent does. Sweep alerts carry no plant, so
// it is recovered from the repository: the first door with a matching name.
func (h *EventHandler) RunSweep(ctx context.Context, now time.Time) {
	outcomes := h.engine.Sweep(now)
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case types.OutcomeLog:
			h.appendBatch(outcome.Log)
		case types.OutcomeDbInsert:
			h.appendBatch(outcome.DbInsert)
		case types.OutcomeAlert:
			plant := h.plantForDoor(outcome.Alert.DoorName)
			if plant == "" {
				h.logger.WithField("door", outcome.Alert.DoorName).
					Warn("sweep alert for unknown door, dropping")
				continue
			}
			h.alertMgr.Handle(ctx, plant, outcome.Alert)
		}
	}

	if h.batchLen() >= h.batchSize {
		h.flush(ctx)
	}
}

func (h *EventHandler) plantForDoor(doorName string) string {
	for _, d := range h.repo.ListAll() {
		if d.DockName == doorName {
			return d.PlantID
		}
	}
	return ""
}

// Flush forces the pending audit batch out, used by the shutdown path.
func (h *EventHandler) Flush(ctx context.Context) {
	h.flush(ctx)
}

// maybeEnqueueMonitoring enqueues a MonitoringItem for the three recurring
// alert kinds so the Monitoring Queue worker re-evaluates them on its own
// timer.
func (h *EventHandler) maybeEnqueueMonitoring(alert types.AlertKind, door types.DockDoor, event types.DockEvent) {
	var kind types.MonitoringItemKind
	switch alert.Tag {
	case types.AlertSuspendedDoor:
		kind = types.MonitoringSuspendedShipment
	case types.AlertTrailerDockedNotStarted:
		kind = types.MonitoringTrailerDockedNotStarted
	case types.AlertShipmentStartedLoadNotReady:
		kind = types.MonitoringShipmentStartedLoadNotReady
	default:
		return
	}

	shipmentID := ""
	if alert.ShipmentID != nil {
		shipmentID = *alert.ShipmentID
	}
	user := ""
	if alert.Extra != nil {
		user = alert.Extra["user"]
	}

	h.monitor.Enqueue(types.MonitoringItem{
		Kind:       kind,
		Plant:      door.PlantID,
		DoorName:   door.DockName,
		ShipmentID: shipmentID,
		StartedAt:  event.Timestamp,
		User:       user,
	})
}

func (h *EventHandler) appendBatch(rec types.AuditRecord) {
	h.mu.Lock()
	h.batch = append(h.batch, rec)
	h.mu.Unlock()
}

func (h *EventHandler) batchLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.batch)
}

// flush writes the pending batch. On failure the rows are put back so the
// next cycle retries them instead of silently dropping the batch.
func (h *EventHandler) flush(ctx context.Context) {
	h.mu.Lock()
	if len(h.batch) == 0 {
		h.mu.Unlock()
		return
	}
	pending := h.batch
	h.batch = nil
	h.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.store.InsertAuditRecords(flushCtx, pending); err != nil {
		h.logger.WithError(err).WithField("rows", len(pending)).Error("audit batch insert failed")
		h.mu.Lock()
		h.batch = append(pending, h.batch...)
		h.mu.Unlock()
	}
}
