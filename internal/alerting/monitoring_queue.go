package alerting

import (
	"context"
	"sync"
	"time"

	"dockmonitor/internal/metrics"
	"dockmonitor/internal/repository"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// queuedItem wraps a MonitoringItem with the bookkeeping the worker needs
// between ticks: when it last actually alerted, so repeat_interval can gate
// re-dispatch even though the condition is re-checked every tick.
type queuedItem struct {
	types.MonitoringItem
	lastAlerted time.Time
}

// MonitoringQueue is the FIFO of recurring-alert conditions re-evaluated
// on a timer, deliberately bypassing the alert manager's cooldown: this is
// the repeat channel.
type MonitoringQueue struct {
	mu     sync.Mutex
	items  []*queuedItem
	repo   *repository.Repository
	mgr    *Manager
	cfg    types.MonitoringSettings
	logger *logrus.Logger
}

func NewMonitoringQueue(repo *repository.Repository, mgr *Manager, cfg types.MonitoringSettings, logger *logrus.Logger) *MonitoringQueue {
	return &MonitoringQueue{repo: repo, mgr: mgr, cfg: cfg, logger: logger}
}

// Enqueue adds an item to the end of the queue. Called by the event handler
// whenever a rule outcome produces one of the three recurring alert kinds.
func (q *MonitoringQueue) Enqueue(item types.MonitoringItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &queuedItem{MonitoringItem: item})
	metrics.MonitoringQueueDepth.Set(float64(len(q.items)))
}

// Tick drains the current queue and re-evaluates every item once: gone
// doors are discarded, cleared conditions are dropped, and still-active
// conditions are requeued, alerting again only once past their threshold.
func (q *MonitoringQueue) Tick(ctx context.Context) {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	now := time.Now()
	var requeue []*queuedItem

	for _, item := range pending {
		door, ok := q.repo.Get(item.Plant, item.DoorName)
		if !ok {
			continue
		}

		holds, thresholds := q.conditionHolds(door, item)
		if !holds {
			continue
		}

		age := now.Sub(item.StartedAt)
		if age >= time.Duration(thresholds.AlertThreshold)*time.Second {
			repeat := time.Duration(thresholds.RepeatInterval) * time.Second
			if item.lastAlerted.IsZero() || now.Sub(item.lastAlerted) >= repeat {
				q.mgr.Dispatch(ctx, door.PlantID, q.alertFor(item, door, age))
				item.lastAlerted = now
			}
		}

		requeue = append(requeue, item)
	}

	q.mu.Lock()
	q.items = append(q.items, requeue...)
	metrics.MonitoringQueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()
}

func (q *MonitoringQueue) conditionHolds(door types.DockDoor, item *queuedItem) (bool, types.MonitoringThresholds) {
	switch item.Kind {
	case types.MonitoringSuspendedShipment:
		return door.LoadingStatus == types.LoadingSuspended, q.cfg.SuspendedShipment
	case types.MonitoringTrailerDockedNotStarted:
		stillNotStarted := door.TrailerState == types.TrailerDocked &&
			door.LoadingStatus != types.LoadingLoading && door.LoadingStatus != types.LoadingCompleted
		return stillNotStarted, q.cfg.TrailerDockedNotStarted
	case types.MonitoringShipmentStartedLoadNotReady:
		notReady := door.DockLockState != types.DockLockEngaged ||
			door.LevelerPosition != types.LevelerExtended ||
			door.DoorPosition != types.DoorOpen
		return notReady, q.cfg.ShipmentStartedLoadNotReady
	default:
		return false, types.MonitoringThresholds{}
	}
}

func (q *MonitoringQueue) alertFor(item *queuedItem, door types.DockDoor, age time.Duration) types.AlertKind {
	var shipmentID *string
	if item.ShipmentID != "" {
		id := item.ShipmentID
		shipmentID = &id
	}

	tag := types.AlertSuspendedDoor
	switch item.Kind {
	case types.MonitoringTrailerDockedNotStarted:
		tag = types.AlertTrailerDockedNotStarted
	case types.MonitoringShipmentStartedLoadNotReady:
		tag = types.AlertShipmentStartedLoadNotReady
	}

	extra := map[string]string{}
	if item.User != "" {
		extra["user"] = item.User
	}

	return types.AlertKind{
		Tag:        tag,
		DoorName:   door.DockName,
		ShipmentID: shipmentID,
		Duration:   &age,
		Extra:      extra,
	}
}
