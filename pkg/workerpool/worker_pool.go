// Package workerpool provides the bounded fan-out pool the PLC poller uses
// for its per-plant/per-door/per-sensor read tasks. Tasks are I/O bound, so
// the pool is sized well past NumCPU and each task carries its own timeout
// via the pool's context.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of work: an identifier for logging plus the function to
// run. Execute receives a context derived from the pool's lifetime and the
// configured per-task timeout.
type Task struct {
	ID      string
	Execute func(ctx context.Context) error
}

// WorkerPoolConfig tunes the pool.
type WorkerPoolConfig struct {
	MaxWorkers      int           `yaml:"max_workers"`
	QueueSize       int           `yaml:"queue_size"`
	WorkerTimeout   time.Duration `yaml:"worker_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WorkerPool runs submitted tasks on a fixed set of workers draining a
// shared bounded queue. Submission never blocks: a full queue is an error
// the caller handles (for the sensor poller that means the tuple is dropped
// from this cycle's batch and read again next tick).
type WorkerPool struct {
	config WorkerPoolConfig
	logger *logrus.Logger

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted int64
	completed int64
	failed    int64
	active    int64

	mu      sync.Mutex
	running bool
}

// WorkerPoolStats is a point-in-time snapshot of the pool's counters.
type WorkerPoolStats struct {
	MaxWorkers int   `json:"max_workers"`
	Queued     int   `json:"queued"`
	Submitted  int64 `json:"submitted"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Active     int64 `json:"active"`
	IsRunning  bool  `json:"is_running"`
}

var (
	ErrPoolNotRunning = fmt.Errorf("worker pool is not running")
	ErrQueueFull      = fmt.Errorf("task queue is full")
)

// NewWorkerPool creates a pool with defaults filled in. Workers are not
// started until Start.
func NewWorkerPool(config WorkerPoolConfig, logger *logrus.Logger) *WorkerPool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.MaxWorkers * 10
	}
	if config.WorkerTimeout == 0 {
		config.WorkerTimeout = 30 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		config: config,
		logger: logger,
		tasks:  make(chan Task, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. Idempotent.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return nil
	}

	wp.logger.WithFields(logrus.Fields{
		"max_workers": wp.config.MaxWorkers,
		"queue_size":  wp.config.QueueSize,
	}).Info("Starting worker pool")

	for i := 0; i < wp.config.MaxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.running = true
	return nil
}

// Stop cancels in-flight tasks and waits for the workers, up to
// ShutdownTimeout.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.running {
		return nil
	}

	wp.logger.Info("Stopping worker pool")
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(wp.config.ShutdownTimeout):
		wp.logger.Warn("Worker pool shutdown timeout")
	}

	wp.running = false
	return nil
}

// SubmitTask enqueues a task, failing immediately when the queue is full or
// the pool is stopped.
func (wp *WorkerPool) SubmitTask(task Task) error {
	wp.mu.Lock()
	running := wp.running
	wp.mu.Unlock()
	if !running {
		return ErrPoolNotRunning
	}

	select {
	case wp.tasks <- task:
		atomic.AddInt64(&wp.submitted, 1)
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	default:
		return ErrQueueFull
	}
}

// GetStats returns the pool's counters.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	wp.mu.Lock()
	running := wp.running
	wp.mu.Unlock()

	return WorkerPoolStats{
		MaxWorkers: wp.config.MaxWorkers,
		Queued:     len(wp.tasks),
		Submitted:  atomic.LoadInt64(&wp.submitted),
		Completed:  atomic.LoadInt64(&wp.completed),
		Failed:     atomic.LoadInt64(&wp.failed),
		Active:     atomic.LoadInt64(&wp.active),
		IsRunning:  running,
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case task := <-wp.tasks:
			wp.run(id, task)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) run(workerID int, task Task) {
	atomic.AddInt64(&wp.active, 1)
	defer atomic.AddInt64(&wp.active, -1)

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&wp.failed, 1)
			wp.logger.WithFields(logrus.Fields{
				"worker_id": workerID,
				"task_id":   task.ID,
				"panic":     r,
			}).Error("Task panicked")
		}
	}()

	taskCtx, cancel := context.WithTimeout(wp.ctx, wp.config.WorkerTimeout)
	defer cancel()

	start := time.Now()
	if err := task.Execute(taskCtx); err != nil {
		atomic.AddInt64(&wp.failed, 1)
		wp.logger.WithFields(logrus.Fields{
			"worker_id": workerID,
			"task_id":   task.ID,
			"duration":  time.Since(start),
			"error":     err,
		}).Debug("Task failed")
		return
	}
	atomic.AddInt64(&wp.completed, 1)
}
