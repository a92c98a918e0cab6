// Package task_manager supervises the process's long-running tasks (sensor
// poller, WMS pollers, event handler, monitoring worker): it tracks
// heartbeats, recovers panics, cancels tasks whose heartbeat goes stale,
// and reports every state change to an observer so task health can be
// exported as metrics.
package task_manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// Task states reported through TaskStatus.State and the observer.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateStopped   = "stopped"
	StateNotFound  = "not_found"
)

// Config tunes the supervisor.
type Config struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	TaskTimeout       time.Duration `yaml:"task_timeout"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
	RetainFinished    time.Duration `yaml:"retain_finished"`

	// Observer, when set, receives every state change plus one call per
	// supervision tick per live task (state StateRunning with the current
	// heartbeat age). The app wires this to the metrics registry.
	Observer func(taskID, state string, heartbeatAge time.Duration)
}

type taskManager struct {
	config Config
	logger *logrus.Logger

	mutex sync.RWMutex
	tasks map[string]*task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id            string
	state         string
	startedAt     time.Time
	lastHeartbeat time.Time
	errorCount    int64
	lastError     string
	cancel        context.CancelFunc
	done          chan struct{}
}

// New creates a task manager and starts its supervision loop.
func New(config Config, logger *logrus.Logger) types.TaskManager {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Minute
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 10 * time.Second
	}
	if config.RetainFinished <= 0 {
		config.RetainFinished = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	tm := &taskManager{
		config: config,
		logger: logger,
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}

	tm.wg.Add(1)
	go tm.supervise()

	return tm
}

// StartTask registers and launches a task. A task ID can be reused once
// its previous run has finished; a still-running ID is rejected.
func (tm *taskManager) StartTask(ctx context.Context, taskID string, fn func(context.Context) error) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if prev, exists := tm.tasks[taskID]; exists {
		if prev.state == StateRunning {
			return fmt.Errorf("task %s is already running", taskID)
		}
		prev.cancel()
		<-prev.done
	}

	taskCtx, taskCancel := context.WithCancel(ctx)
	now := time.Now()
	t := &task{
		id:            taskID,
		state:         StateRunning,
		startedAt:     now,
		lastHeartbeat: now,
		cancel:        taskCancel,
		done:          make(chan struct{}),
	}
	tm.tasks[taskID] = t
	tm.observe(taskID, StateRunning, 0)

	tm.wg.Add(1)
	go tm.run(t, taskCtx, fn)

	tm.logger.WithField("task_id", taskID).Info("task started")
	return nil
}

// run executes the task function, converting returns and panics into a
// terminal state.
func (tm *taskManager) run(t *task, ctx context.Context, fn func(context.Context) error) {
	defer tm.wg.Done()
	defer close(t.done)

	defer func() {
		if r := recover(); r != nil {
			tm.finish(t, StateFailed, fmt.Sprintf("panic: %v", r))
			tm.logger.WithFields(logrus.Fields{"task_id": t.id, "error": r}).Error("task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		tm.finish(t, StateFailed, err.Error())
		tm.logger.WithFields(logrus.Fields{"task_id": t.id, "error": err}).Error("task failed")
		return
	}

	tm.finish(t, StateCompleted, "")
	tm.logger.WithField("task_id", t.id).Info("task completed")
}

// finish records a terminal state. A stop or stale-heartbeat cancellation
// that already won the race (state no longer running) is left alone.
func (tm *taskManager) finish(t *task, state, errMsg string) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if t.state != StateRunning {
		return
	}
	t.state = state
	if errMsg != "" {
		t.errorCount++
		t.lastError = errMsg
	} else {
		t.lastError = ""
	}
	tm.observe(t.id, state, 0)
}

// StopTask cancels a running task and waits up to StopTimeout for it to
// exit.
func (tm *taskManager) StopTask(taskID string) error {
	tm.mutex.Lock()
	t, exists := tm.tasks[taskID]
	if !exists {
		tm.mutex.Unlock()
		return fmt.Errorf("task %s not found", taskID)
	}
	if t.state != StateRunning {
		tm.mutex.Unlock()
		return fmt.Errorf("task %s is not running", taskID)
	}
	t.cancel()
	tm.mutex.Unlock()

	select {
	case <-t.done:
	case <-time.After(tm.config.StopTimeout):
		tm.mutex.Lock()
		t.state = StateFailed
		t.lastError = "stop timeout"
		tm.observe(taskID, StateFailed, 0)
		tm.mutex.Unlock()
		tm.logger.WithField("task_id", taskID).Warn("task stop timeout")
		return nil
	}

	// The task usually exits with ctx.Err() here; a requested stop is not
	// a failure, so the terminal state is overwritten.
	tm.mutex.Lock()
	t.state = StateStopped
	t.lastError = ""
	tm.observe(taskID, StateStopped, 0)
	tm.mutex.Unlock()
	tm.logger.WithField("task_id", taskID).Info("task stopped")
	return nil
}

// Heartbeat records liveness for a task.
func (tm *taskManager) Heartbeat(taskID string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	t, exists := tm.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}
	t.lastHeartbeat = time.Now()
	return nil
}

// GetTaskStatus returns a snapshot of one task.
func (tm *taskManager) GetTaskStatus(taskID string) types.TaskStatus {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	t, exists := tm.tasks[taskID]
	if !exists {
		return types.TaskStatus{ID: taskID, State: StateNotFound}
	}
	return t.snapshot()
}

// GetAllTasks returns a snapshot of every registered task.
func (tm *taskManager) GetAllTasks() map[string]types.TaskStatus {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	result := make(map[string]types.TaskStatus, len(tm.tasks))
	for id, t := range tm.tasks {
		result[id] = t.snapshot()
	}
	return result
}

func (t *task) snapshot() types.TaskStatus {
	return types.TaskStatus{
		ID:            t.id,
		State:         t.state,
		StartedAt:     t.startedAt,
		LastHeartbeat: t.lastHeartbeat,
		ErrorCount:    t.errorCount,
		LastError:     t.lastError,
	}
}

// supervise runs until Cleanup: each tick it reports heartbeat ages,
// cancels tasks whose heartbeat went stale, and evicts finished records
// older than the retention window.
func (tm *taskManager) supervise() {
	defer tm.wg.Done()

	ticker := time.NewTicker(tm.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tm.ctx.Done():
			return
		case <-ticker.C:
			tm.superviseTick(time.Now())
		}
	}
}

func (tm *taskManager) superviseTick(now time.Time) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	for id, t := range tm.tasks {
		switch t.state {
		case StateRunning:
			age := now.Sub(t.lastHeartbeat)
			tm.observe(id, StateRunning, age)
			if age > tm.config.TaskTimeout {
				tm.logger.WithFields(logrus.Fields{
					"task_id":       id,
					"heartbeat_age": age,
				}).Warn("task heartbeat stale, cancelling")
				t.cancel()
				t.state = StateFailed
				t.errorCount++
				t.lastError = "heartbeat timeout"
				tm.observe(id, StateFailed, age)
			}
		default:
			if now.Sub(t.startedAt) > tm.config.RetainFinished {
				delete(tm.tasks, id)
				tm.logger.WithField("task_id", id).Debug("task record evicted")
			}
		}
	}
}

// observe invokes the configured observer; callers hold tm.mutex.
func (tm *taskManager) observe(taskID, state string, heartbeatAge time.Duration) {
	if tm.config.Observer != nil {
		tm.config.Observer(taskID, state, heartbeatAge)
	}
}

// Cleanup cancels every task and the supervision loop, then waits for all
// goroutines, bounded by StopTimeout.
func (tm *taskManager) Cleanup() {
	tm.cancel()

	tm.mutex.Lock()
	for _, t := range tm.tasks {
		if t.state == StateRunning {
			t.cancel()
		}
	}
	tm.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.logger.Info("task manager stopped cleanly")
	case <-time.After(tm.config.StopTimeout):
		tm.logger.Warn("timeout waiting for tasks to stop")
	}
}
