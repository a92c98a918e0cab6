package handler

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"dockmonitor/internal/alerting"
	"dockmonitor/internal/processing"
	"dockmonitor/internal/repository"
	"dockmonitor/internal/rules"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu           sync.Mutex
	audits       []types.AuditRecord
	consolidated []types.ConsolidatedEvent
}

func (s *fakeStore) InsertAuditRecords(ctx context.Context, records []types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, records...)
	return nil
}

func (s *fakeStore) InsertConsolidatedEvent(ctx context.Context, event types.ConsolidatedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consolidated = append(s.consolidated, event)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) auditTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, rec := range s.audits {
		out = append(out, rec.EventType)
	}
	return out
}

type fakeSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *fakeSink) Send(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixture struct {
	repo       *repository.Repository
	sensorProc *processing.SensorProcessor
	wmsProc    *processing.WmsProcessor
	handler    *EventHandler
	store      *fakeStore
	sink       *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := quietLogger()

	repo := repository.New()
	repo.InitializeFromConfig(types.Settings{
		Plants: []types.PlantSettings{{
			PlantID: "P1",
			DockDoors: types.DockDoorSettings{
				DockDoorConfig: []types.DockDoorConfig{{DockName: "D1", DockIP: "10.0.0.1"}},
			},
		}},
	})

	dockingParams, _ := json.Marshal(map[string]interface{}{
		"required_sensors": map[string]int{
			"TRAILER_ANGLE": 0, "TRAILER_CENTERING": 0, "TRAILER_DISTANCE": 0,
		},
		"acceptable_loading_statuses": []string{"CSO", "WhseInspection", "LgvAllocation", "Idle"},
	})
	dockingRule, err := rules.NewTrailerDockingRule(dockingParams)
	require.NoError(t, err)
	statusRule, _ := rules.NewWmsShipmentStatusRule(nil)
	eventsRule, _ := rules.NewWmsEventsRule(nil)
	consolidatedRule, _ := rules.NewConsolidatedDataRule(nil)
	hostageParams, _ := json.Marshal(map[string]uint64{"alert_threshold": 300, "repeat_interval": 600})
	hostageRule, err := rules.NewTrailerHostageRule(hostageParams)
	require.NoError(t, err)

	engine := rules.NewEngine([]types.Rule{statusRule, dockingRule, hostageRule, eventsRule, consolidatedRule})

	store := &fakeStore{}
	sink := &fakeSink{}
	mgr := alerting.NewManager(types.AlertSettings{}, map[string]types.AlertSink{"P1": sink}, logger)
	queue := alerting.NewMonitoringQueue(repo, mgr, types.MonitoringSettings{}, logger)

	return &fixture{
		repo:       repo,
		sensorProc: processing.NewSensorProcessor(repo, logger),
		wmsProc:    processing.NewWmsProcessor(repo, logger),
		handler:    NewEventHandler(repo, engine, mgr, queue, store, 100, logger),
		store:      store,
		sink:       sink,
	}
}

func (f *fixture) handleAll(t *testing.T, events []types.DockEvent) {
	t.Helper()
	for _, e := range events {
		f.handler.HandleEvent(context.Background(), e)
	}
}

func (f *fixture) primeSensors(t *testing.T, ts time.Time) {
	t.Helper()
	var batch []types.SensorReading
	for _, tag := range types.SensorTagNames {
		batch = append(batch, types.SensorReading{
			Plant: "P1", Door: "D1", DoorIP: "10.0.0.1",
			SensorName: tag, Value: 0, Timestamp: ts,
		})
	}
	f.handleAll(t, f.sensorProc.Process(batch))
}

func (f *fixture) sensorEdge(t *testing.T, tag string, value int, ts time.Time) {
	t.Helper()
	events := f.sensorProc.Process([]types.SensorReading{{
		Plant: "P1", Door: "D1", DoorIP: "10.0.0.1",
		SensorName: tag, Value: value, Timestamp: ts,
	}})
	f.handleAll(t, events)
}

func (f *fixture) wmsEventRow(t *testing.T, msgType types.WmsMessageType, shipment string, ts time.Time) {
	t.Helper()
	events := f.wmsProc.DispatchWmsEvents([]types.WmsEvent{{
		Plant: "P1", DockName: "D1", ShipmentID: shipment,
		LogDttm: ts, MessageType: msgType,
	}})
	f.handleAll(t, events)
}

// The normal docking flow: shipment assigned, trailer arrives, dock goes
// ready, WMS reports the shipment started, then the LGV begins loading.
func TestNormalDockingFlow(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	f.primeSensors(t, t0)

	shipment := "123"
	assigned := t0.Add(time.Minute)
	f.handleAll(t, f.wmsProc.Process([]types.WmsDoorStatus{{
		Plant: "P1", DoorName: "D1", AssignedShipment: &shipment,
		LoadingStatus: "CSO", LogDttm: assigned, AssignmentDttm: &assigned,
	}}))

	f.sensorEdge(t, "TRAILER_AT_DOOR", 1, t0.Add(10*time.Minute))
	f.sensorEdge(t, "RH_DOCK_READY", 1, t0.Add(12*time.Minute))
	f.wmsEventRow(t, types.MsgStartedShipment, shipment, t0.Add(15*time.Minute))
	f.wmsEventRow(t, types.MsgLgvStartLoading, shipment, t0.Add(21*time.Minute))

	f.handler.Flush(context.Background())

	auditTypes := f.store.auditTypes()
	assert.Contains(t, auditTypes, "SHIPMENT_ASSIGNED")
	assert.Contains(t, auditTypes, "TRAILER_DOCKING")
	assert.Contains(t, auditTypes, "DOCK_READY")
	assert.Contains(t, auditTypes, "STARTED_SHIPMENT")
	assert.Contains(t, auditTypes, "LGV_START_LOADING")

	// Exactly one docking evaluation for the one edge, and it succeeded.
	dockingRows := 0
	for _, rec := range f.store.audits {
		if rec.EventType == "TRAILER_DOCKING" {
			dockingRows++
			assert.True(t, rec.Success)
		}
	}
	assert.Equal(t, 1, dockingRows)

	require.Len(t, f.store.consolidated, 1)
	ce := f.store.consolidated[0]
	assert.Equal(t, 123, ce.ShipmentID)
	require.NotNil(t, ce.DockingTimeMinutes)
	assert.InDelta(t, 9.0, *ce.DockingTimeMinutes, 0.01)
	require.NotNil(t, ce.InspectionTimeMinutes)
	assert.InDelta(t, 5.0, *ce.InspectionTimeMinutes, 0.01)
	require.NotNil(t, ce.EnqueuedTimeMinutes)
	assert.InDelta(t, 6.0, *ce.EnqueuedTimeMinutes, 0.01)

	door, _ := f.repo.Get("P1", "D1")
	assert.Equal(t, types.DoorReady, door.DoorState)
	assert.Equal(t, types.TrailerDocked, door.TrailerState)
	require.NotNil(t, door.ShipmentStartedDttm)
}

// After loading completes with the trailer still docked, flipping manual
// mode on past the hostage threshold raises the alert.
func TestHostageAfterCompletedLoad(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	f.primeSensors(t, t0)
	f.sensorEdge(t, "TRAILER_AT_DOOR", 1, t0.Add(5*time.Minute))

	shipment := "123"
	f.handleAll(t, f.wmsProc.Process([]types.WmsDoorStatus{{
		Plant: "P1", DoorName: "D1", AssignedShipment: &shipment,
		LoadingStatus: "Completed", LogDttm: t0.Add(40 * time.Minute),
	}}))

	// Manual mode engaged well past the 300s threshold after docking.
	f.sensorEdge(t, "RH_MANUAL_MODE", 1, t0.Add(50*time.Minute))

	f.handler.Flush(context.Background())

	hostageRows := 0
	for _, rec := range f.store.audits {
		if rec.EventType == "TRAILER_HOSTAGE" {
			hostageRows++
			assert.Equal(t, 2, rec.Severity)
			assert.False(t, rec.Success)
		}
	}
	assert.Equal(t, 1, hostageRows)

	found := false
	for _, msg := range f.sink.messages {
		if strings.Contains(msg, "TRAILER_HOSTAGE") && strings.Contains(msg, "Door D1") {
			found = true
		}
	}
	assert.True(t, found, "expected a TRAILER_HOSTAGE webhook message, got %v", f.sink.messages)
}

func TestUnknownDoorEventDropped(t *testing.T) {
	f := newFixture(t)

	f.handler.HandleEvent(context.Background(), types.DockEvent{
		Kind: types.EventWmsEvent, Plant: "P1", Door: "D9", Timestamp: time.Now(),
		Wms: types.WmsEvent{MessageType: types.MsgStartedShipment},
	})
	f.handler.Flush(context.Background())

	assert.Empty(t, f.store.audits)
}

func TestStateTransitionOutcomeApplied(t *testing.T) {
	f := newFixture(t)

	transitionRule := ruleFunc(func(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
		return []types.Outcome{{Kind: types.OutcomeStateTransition, NewDoorState: types.DoorLoading}}
	})
	f.handler.engine = rules.NewEngine([]types.Rule{transitionRule})

	f.handler.HandleEvent(context.Background(), types.DockEvent{
		Kind: types.EventSensorChanged, Plant: "P1", Door: "D1", Timestamp: time.Now(),
		SensorName: "RH_DOOR_OPEN",
	})

	door, _ := f.repo.Get("P1", "D1")
	assert.Equal(t, types.DoorLoading, door.DoorState)
	assert.Equal(t, types.DoorUnassigned, door.PreviousDoorState)
}

type ruleFunc func(door types.DoorSnapshot, event types.DockEvent) []types.Outcome

func (f ruleFunc) Name() string { return "test-rule" }

func (f ruleFunc) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	return f(door, event)
}

func TestBatchFlushAtThreshold(t *testing.T) {
	f := newFixture(t)
	f.handler.batchSize = 2

	logRule := ruleFunc(func(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
		return []types.Outcome{{Kind: types.OutcomeLog, Log: types.AuditRecord{
			LogDttm: event.Timestamp, Plant: door.PlantID, DoorName: door.DockName, EventType: "TEST",
		}}}
	})
	f.handler.engine = rules.NewEngine([]types.Rule{logRule})

	event := types.DockEvent{
		Kind: types.EventSensorChanged, Plant: "P1", Door: "D1", Timestamp: time.Now(),
	}
	f.handler.HandleEvent(context.Background(), event)
	assert.Empty(t, f.store.audits)

	f.handler.HandleEvent(context.Background(), event)
	assert.Len(t, f.store.audits, 2)
}

// MonitoringItems are enqueued for the recurring alert kinds so the queue
// worker can re-check them.
func TestRecurringAlertEnqueuesMonitoring(t *testing.T) {
	f := newFixture(t)
	suspendedParams, _ := json.Marshal(map[string]uint64{"repeat_interval": 600})
	suspendedRule, err := rules.NewSuspendedDoorRule(suspendedParams)
	require.NoError(t, err)
	f.handler.engine = rules.NewEngine([]types.Rule{suspendedRule})

	f.handler.HandleEvent(context.Background(), types.DockEvent{
		Kind: types.EventWmsEvent, Plant: "P1", Door: "D1", Timestamp: time.Now(),
		Wms: types.WmsEvent{
			Plant: "P1", DockName: "D1", ShipmentID: "9",
			MessageType: types.MsgSuspendedShipment, MessageNotes: "jsmith - hold",
		},
	})

	// The alert dispatched (suspended door bypasses cooldown) and the queue
	// received the matching item.
	require.Len(t, f.sink.messages, 1)
	assert.Contains(t, f.sink.messages[0], "SUSPENDED_DOOR")

	// With the door still suspended, one queue tick re-alerts from the
	// enqueued item (zero thresholds in the fixture).
	door, ok := f.repo.Get("P1", "D1")
	require.True(t, ok)
	door.LoadingStatus = types.LoadingSuspended
	f.repo.Update("P1", door)
	f.handler.monitor.Tick(context.Background())
	require.Len(t, f.sink.messages, 2)
	assert.Contains(t, f.sink.messages[1], "SUSPENDED_DOOR")
}
