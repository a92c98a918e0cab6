// Package metrics exposes the dock monitor's Prometheus instrumentation
// and the HTTP server that serves it on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_poll_cycles_total",
			Help: "Total number of completed polling cycles",
		},
		[]string{"poller"},
	)

	SensorReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_sensor_reads_total",
			Help: "Total number of PLC sensor read attempts",
		},
		[]string{"plant", "status"},
	)

	SensorReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dock_monitor_sensor_read_duration_seconds",
			Help:    "Time spent reading one sensor tag, retries included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
		},
		[]string{"plant"},
	)

	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_events_emitted_total",
			Help: "Total number of dock events pushed onto the events channel",
		},
		[]string{"source"},
	)

	EventsChannelDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dock_monitor_events_channel_depth",
		Help: "Current number of events waiting in the events channel",
	})

	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_rule_evaluations_total",
			Help: "Total number of rule evaluations",
		},
		[]string{"rule"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_alerts_total",
			Help: "Total number of alerts handled, by disposition",
		},
		[]string{"plant", "status"},
	)

	DbInsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dock_monitor_db_inserts_total",
			Help: "Total number of audit rows written, by status",
		},
		[]string{"status"},
	)

	ConsolidatedFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dock_monitor_consolidated_events_flushed_total",
		Help: "Total number of consolidated shipment records inserted",
	})

	ConsolidatedPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dock_monitor_consolidated_events_pending",
		Help: "Shipments currently accumulating toward their consolidated flush",
	})

	PlcBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dock_monitor_plc_breaker_state",
			Help: "Circuit breaker state per PLC controller IP (0 closed, 1 open, 2 half-open)",
		},
		[]string{"controller"},
	)

	MonitoringQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dock_monitor_monitoring_queue_depth",
		Help: "Current number of items in the recurring-alert monitoring queue",
	})

	DoorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dock_monitor_door_state",
			Help: "Current door state machine value per door",
		},
		[]string{"plant", "door"},
	)

	TaskHeartbeatAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dock_monitor_task_heartbeat_age_seconds",
			Help: "Seconds since each supervised task's last heartbeat",
		},
		[]string{"task"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dock_monitor_component_health",
			Help: "Health status of components (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component"},
	)
)

// RecordSensorRead counts one terminal read attempt outcome.
func RecordSensorRead(plant, status string) {
	SensorReadsTotal.WithLabelValues(plant, status).Inc()
}

// RecordAlert counts a handled alert: "sent", "throttled", or "failed".
func RecordAlert(plant, status string) {
	AlertsTotal.WithLabelValues(plant, status).Inc()
}

// RecordDbInsert counts written (or failed) audit rows.
func RecordDbInsert(status string, rows int) {
	DbInsertsTotal.WithLabelValues(status).Add(float64(rows))
}

// UpdateComponentHealth flips a component's health gauge.
func UpdateComponentHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	ComponentHealth.WithLabelValues(component).Set(v)
}

// MetricsServer serves the Prometheus registry over HTTP.
type MetricsServer struct {
	server *http.Server
	logger *logrus.Logger
}

// NewMetricsServer builds the server on addr with /metrics and /health
// endpoints. Collectors register themselves via promauto at package load.
func NewMetricsServer(addr string, logger *logrus.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

func (ms *MetricsServer) Start() error {
	ms.logger.WithField("addr", ms.server.Addr).Info("Starting metrics server")

	go func() {
		if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ms.logger.WithError(err).Error("Metrics server error")
		}
	}()

	return nil
}

func (ms *MetricsServer) Stop() error {
	ms.logger.Info("Stopping metrics server")
	return ms.server.Close()
}
