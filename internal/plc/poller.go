package plc

import (
	"context"
	"sync"
	"time"

	"dockmonitor/internal/metrics"
	"dockmonitor/pkg/types"
	"dockmonitor/pkg/workerpool"

	"github.com/sirupsen/logrus"
)

// Poller produces, once per polling interval, one SensorReading per
// (plant, door, sensor) tuple from configuration. Fan-out is
// per-plant/per-door/per-sensor through the worker pool; a failing tuple
// is logged and dropped, never fatal to the batch.
type Poller struct {
	cfg    types.PlcSettings
	plants []types.PlantSettings
	cache  *connectionCache
	pool   *workerpool.WorkerPool
	logger *logrus.Logger
}

// NewPoller builds a Poller bound to the given plants and timing
// configuration. The worker pool is sized generously since each task is I/O
// bound and spends most of its time waiting on the network.
func NewPoller(cfg types.PlcSettings, plants []types.PlantSettings, logger *logrus.Logger) *Poller {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
		MaxWorkers: 32,
		QueueSize:  1024,
	}, logger)
	_ = pool.Start()

	return &Poller{
		cfg:    cfg,
		plants: plants,
		cache:  newConnectionCache(timeout, logger),
		pool:   pool,
		logger: logger,
	}
}

// Poll reads every configured sensor tag across every plant and door,
// returning a flat, unordered slice of SensorReadings. A single (door,
// sensor) failure is logged and dropped; the batch itself never fails.
func (p *Poller) Poll(ctx context.Context) []types.SensorReading {
	var mu sync.Mutex
	var wg sync.WaitGroup
	readings := make([]types.SensorReading, 0)

	for _, plant := range p.plants {
		plant := plant
		for _, dc := range plant.DockDoors.DockDoorConfig {
			dc := dc
			for _, tag := range plant.DockDoors.DockPlcTags {
				tag := tag
				wg.Add(1)
				task := workerpool.Task{
					ID: plant.PlantID + "/" + dc.DockName + "/" + tag.TagName,
					Execute: func(taskCtx context.Context) error {
						defer wg.Done()
						start := time.Now()
						reading, err := p.readWithRetry(taskCtx, plant.PlantID, dc.DockName, dc.DockIP, tag.TagName)
						metrics.SensorReadDuration.WithLabelValues(plant.PlantID).Observe(time.Since(start).Seconds())
						if err != nil {
							metrics.RecordSensorRead(plant.PlantID, "failed")
							p.logger.WithFields(logrus.Fields{
								"plant": plant.PlantID,
								"door":  dc.DockName,
								"tag":   tag.TagName,
								"error": err,
							}).Warn("sensor read failed, dropping from batch")
							return err
						}
						metrics.RecordSensorRead(plant.PlantID, "success")
						mu.Lock()
						readings = append(readings, reading)
						mu.Unlock()
						return nil
					},
				}
				if err := p.pool.SubmitTask(task); err != nil {
					wg.Done()
					p.logger.WithError(err).Warn("failed to submit sensor read task")
				}
			}
		}
	}

	wg.Wait()
	return readings
}

// readWithRetry attempts up to MaxRetries reads (default 3) with a fixed
// 2-second delay between attempts, each bounded by TimeoutMs.
func (p *Poller) readWithRetry(ctx context.Context, plant, door, ip, tagName string) (types.SensorReading, error) {
	maxRetries := p.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := time.Duration(p.cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		value, err := p.readOnce(attemptCtx, ip, tagName)
		cancel()
		if err == nil {
			return types.SensorReading{
				Plant:      plant,
				Door:       door,
				DoorIP:     ip,
				SensorName: tagName,
				Value:      value,
				Timestamp:  time.Now(),
			}, nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return types.SensorReading{}, ctx.Err()
			}
		}
	}
	return types.SensorReading{}, lastErr
}

func (p *Poller) readOnce(ctx context.Context, ip, tag string) (int, error) {
	conn, breaker, err := p.cache.get(ctx, ip)
	if err != nil {
		return 0, err
	}

	var value int
	execErr := breaker.Execute(func() error {
		v, err := conn.ReadTag(ctx, ip, tag)
		if err != nil {
			p.cache.invalidate(ip)
			return err
		}
		value = v
		return nil
	})
	return value, execErr
}

// Close releases all cached connections and stops the worker pool.
func (p *Poller) Close() error {
	p.cache.closeAll()
	return p.pool.Stop()
}
