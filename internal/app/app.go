// Package app wires the dock monitor's components together and manages
// their lifecycle: configuration load, logger setup, component
// construction, the six long-running tasks, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dockmonitor/internal/alerting"
	"dockmonitor/internal/audit"
	"dockmonitor/internal/config"
	"dockmonitor/internal/handler"
	"dockmonitor/internal/metrics"
	"dockmonitor/internal/plc"
	"dockmonitor/internal/processing"
	"dockmonitor/internal/repository"
	"dockmonitor/internal/rules"
	"dockmonitor/internal/wms"
	"dockmonitor/pkg/task_manager"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// Task IDs registered with the task manager.
const (
	taskSensorPoller    = "sensor-poller"
	taskWmsEventPoller  = "wms-event-poller"
	taskWmsStatusPoller = "wms-door-status-poller"
	taskEventHandler    = "event-handler"
	taskMonitoring      = "monitoring-worker"
)

const (
	wmsEventPollInterval  = 60 * time.Second
	wmsStatusPollInterval = 25 * time.Second
	eventsChannelCapacity = 1024
)

// App is the composition root. The event handler references the door
// repository, rule engine, alert manager, monitoring queue, and audit
// store; none of those reference it back.
type App struct {
	config *types.Settings
	logger *logrus.Logger

	repo        *repository.Repository
	poller      *plc.Poller
	sensorProc  *processing.SensorProcessor
	wmsProc     *processing.WmsProcessor
	wmsClient   *wms.Client
	engine      *rules.Engine
	alertMgr    *alerting.Manager
	monitorQ    *alerting.MonitoringQueue
	store       *audit.Store
	handler     *handler.EventHandler
	taskManager types.TaskManager

	metricsServer *metrics.MetricsServer

	events      chan types.DockEvent
	handlerDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New loads configuration (base file, APP_ENV overlay, APP__ environment
// overrides), builds the logger, and constructs every component. Fatal
// configuration problems surface here, before the main loop starts.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile, os.Getenv("APP_ENV"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:      cfg,
		logger:      logger,
		events:      make(chan types.DockEvent, eventsChannelCapacity),
		handlerDone: make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

func newLogger(cfg types.LoggingSettings) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		path := cfg.File
		if cfg.Path != "" {
			path = filepath.Join(cfg.Path, cfg.File)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(f)
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger, nil
}

func (app *App) initializeComponents() error {
	cfg := app.config

	app.repo = repository.New()
	app.repo.InitializeFromConfig(*cfg)

	engine, err := rules.LoadEngine(cfg.RuleConfigFile)
	if err != nil {
		return err
	}
	app.engine = engine

	store, err := audit.NewStore(cfg.Database.ConnectionString(), app.logger)
	if err != nil {
		return err
	}
	app.store = store

	sinks := make(map[string]types.AlertSink, len(cfg.Plants))
	for _, plant := range cfg.Plants {
		sinks[plant.PlantID] = alerting.NewWebhookSink(plant.AlertWebhookURL)
	}
	app.alertMgr = alerting.NewManager(cfg.Alerts, sinks, app.logger)
	app.monitorQ = alerting.NewMonitoringQueue(app.repo, app.alertMgr, cfg.Monitoring, app.logger)

	app.handler = handler.NewEventHandler(app.repo, app.engine, app.alertMgr, app.monitorQ,
		app.store, cfg.BatchSize, app.logger)

	app.poller = plc.NewPoller(cfg.Plc, cfg.Plants, app.logger)
	app.sensorProc = processing.NewSensorProcessor(app.repo, app.logger)
	app.wmsProc = processing.NewWmsProcessor(app.repo, app.logger)
	app.wmsClient = wms.NewClient(*cfg, app.logger)

	app.taskManager = task_manager.New(task_manager.Config{
		Observer: func(taskID, state string, heartbeatAge time.Duration) {
			metrics.UpdateComponentHealth("task:"+taskID, state == task_manager.StateRunning)
			metrics.TaskHeartbeatAge.WithLabelValues(taskID).Set(heartbeatAge.Seconds())
		},
	}, app.logger)

	if cfg.MetricsAddr != "" {
		app.metricsServer = metrics.NewMetricsServer(cfg.MetricsAddr, app.logger)
	}

	return nil
}

// Start launches the metrics server and the five worker tasks. The event
// handler runs on an independent context so it drains the events channel
// to close during shutdown rather than abandoning queued events.
func (app *App) Start() error {
	app.logger.Info("Starting dock monitor")

	if app.metricsServer != nil {
		if err := app.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := app.taskManager.StartTask(context.Background(), taskEventHandler, func(ctx context.Context) error {
		defer close(app.handlerDone)
		app.handler.Run(ctx, app.events)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to start event handler: %w", err)
	}

	pollInterval := time.Duration(app.config.Plc.PollIntervalSecs) * time.Second
	if err := app.taskManager.StartTask(app.ctx, taskSensorPoller, app.tickerTask(taskSensorPoller, pollInterval, app.sensorPollCycle)); err != nil {
		return fmt.Errorf("failed to start sensor poller: %w", err)
	}

	if err := app.taskManager.StartTask(app.ctx, taskWmsStatusPoller, app.tickerTask(taskWmsStatusPoller, wmsStatusPollInterval, app.wmsStatusCycle)); err != nil {
		return fmt.Errorf("failed to start WMS door-status poller: %w", err)
	}

	if err := app.taskManager.StartTask(app.ctx, taskWmsEventPoller, app.tickerTask(taskWmsEventPoller, wmsEventPollInterval, app.wmsEventCycle)); err != nil {
		return fmt.Errorf("failed to start WMS event poller: %w", err)
	}

	checkInterval := time.Duration(app.config.Monitoring.CheckInterval) * time.Second
	if err := app.taskManager.StartTask(app.ctx, taskMonitoring, app.tickerTask(taskMonitoring, checkInterval, app.monitoringCycle)); err != nil {
		return fmt.Errorf("failed to start monitoring worker: %w", err)
	}

	metrics.UpdateComponentHealth("app", true)
	app.logger.Info("Dock monitor started")
	return nil
}

// tickerTask wraps a per-cycle function in the shared ticker loop: run one
// cycle per tick, heartbeat afterward, finish the in-flight cycle before
// stopping on cancellation.
func (app *App) tickerTask(taskID string, interval time.Duration, cycle func(ctx context.Context)) func(context.Context) error {
	if interval <= 0 {
		interval = time.Minute
	}
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cycle(ctx)
				if err := app.taskManager.Heartbeat(taskID); err != nil {
					app.logger.WithError(err).WithField("task", taskID).Debug("heartbeat failed")
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// sensorPollCycle is one T1 tick: read every configured tag, diff through
// the sensor processor, and push the derived events.
func (app *App) sensorPollCycle(ctx context.Context) {
	readings := app.poller.Poll(ctx)
	events := app.sensorProc.Process(readings)
	app.pushEvents(ctx, "sensor", events)
	app.updateDoorStateGauges()
	metrics.PollCyclesTotal.WithLabelValues("sensor").Inc()
}

// wmsStatusCycle is one T3 tick: fetch the door-status snapshot per plant
// and diff it through the WMS processor.
func (app *App) wmsStatusCycle(ctx context.Context) {
	for _, plant := range app.config.Plants {
		snapshot, err := app.wmsClient.FetchDoorStatus(ctx, plant.PlantID)
		if err != nil {
			app.logger.WithError(err).WithField("plant", plant.PlantID).Warn("WMS door status poll failed")
			continue
		}
		events := app.wmsProc.Process(snapshot)
		app.pushEvents(ctx, "wms_status", events)
	}
	metrics.PollCyclesTotal.WithLabelValues("wms_status").Inc()
}

// wmsEventCycle is one T2 tick: for every door with an assigned shipment,
// pull that shipment's event rows and inject the ones not yet seen. The
// door's accumulated WmsEvents set is the dedup record; the event handler
// appends each dispatched event to it.
func (app *App) wmsEventCycle(ctx context.Context) {
	for _, door := range app.repo.ListAll() {
		if door.CurrentShipment == nil {
			continue
		}

		rows, err := app.wmsClient.FetchEvents(ctx, door.PlantID, door.DockName, *door.CurrentShipment)
		if err != nil {
			app.logger.WithError(err).WithFields(logrus.Fields{
				"plant": door.PlantID, "door": door.DockName,
			}).Warn("WMS event poll failed")
			continue
		}

		seen := make(map[string]bool, len(door.WmsEvents))
		for _, ev := range door.WmsEvents {
			seen[wmsEventKey(ev)] = true
		}

		var fresh []types.WmsEvent
		for _, row := range rows {
			if !seen[wmsEventKey(row)] {
				fresh = append(fresh, row)
			}
		}

		app.pushEvents(ctx, "wms_event", app.wmsProc.DispatchWmsEvents(fresh))
	}
	metrics.PollCyclesTotal.WithLabelValues("wms_event").Inc()
}

func wmsEventKey(ev types.WmsEvent) string {
	return fmt.Sprintf("%s|%s|%d|%d", ev.ShipmentID, ev.MessageType, ev.MessageTypeID, ev.LogDttm.UnixNano())
}

// monitoringCycle is one T5 tick: re-evaluate queued recurring alerts and
// drive the rules' periodic sweep.
func (app *App) monitoringCycle(ctx context.Context) {
	app.monitorQ.Tick(ctx)
	app.handler.RunSweep(ctx, time.Now())
}

func (app *App) pushEvents(ctx context.Context, source string, events []types.DockEvent) {
	for _, event := range events {
		select {
		case app.events <- event:
			metrics.EventsEmittedTotal.WithLabelValues(source).Inc()
		case <-ctx.Done():
			return
		}
	}
	metrics.EventsChannelDepth.Set(float64(len(app.events)))
}

func (app *App) updateDoorStateGauges() {
	for _, door := range app.repo.ListAll() {
		metrics.DoorState.WithLabelValues(door.PlantID, door.DockName).Set(float64(door.DoorState))
	}
}

// Stop shuts down in dependency order: cancel the pollers, close the
// events channel so the handler drains and flushes its final batch, then
// release the external resources.
func (app *App) Stop() error {
	app.logger.Info("Stopping dock monitor")
	metrics.UpdateComponentHealth("app", false)

	app.cancel()
	for _, taskID := range []string{taskSensorPoller, taskWmsStatusPoller, taskWmsEventPoller, taskMonitoring} {
		if err := app.taskManager.StopTask(taskID); err != nil {
			app.logger.WithError(err).WithField("task", taskID).Debug("task already stopped")
		}
	}

	close(app.events)
	select {
	case <-app.handlerDone:
	case <-time.After(30 * time.Second):
		app.logger.Warn("timeout waiting for event handler to drain")
	}

	if err := app.poller.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close PLC poller")
	}
	if err := app.wmsClient.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close WMS client")
	}
	if err := app.store.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close audit store")
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop metrics server")
		}
	}

	app.taskManager.Cleanup()

	app.logger.Info("Dock monitor stopped")
	return nil
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.logger.Info("Shutdown signal received")
	return app.Stop()
}
