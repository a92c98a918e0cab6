// Package types holds shared configuration, interface, and runtime-primitive
// definitions used across the dock monitor's components.
package types

import (
	"context"
	"time"
)

// CircuitBreakerState is the state of a circuit.Breaker.
type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerStats is a point-in-time snapshot of a breaker's counters.
type CircuitBreakerStats struct {
	State         CircuitBreakerState
	Failures      int64
	Successes     int64
	Requests      int64
	LastFailure   time.Time
	LastSuccess   time.Time
	NextRetryTime time.Time
}

// TaskManager tracks the lifecycle of the process's long-running tasks
// (T1-T5) so a stuck task can be detected and reported.
type TaskManager interface {
	StartTask(ctx context.Context, taskID string, fn func(context.Context) error) error
	StopTask(taskID string) error
	Heartbeat(taskID string) error
	GetTaskStatus(taskID string) TaskStatus
	GetAllTasks() map[string]TaskStatus
	Cleanup()
}

// TaskStatus is a point-in-time snapshot of a registered task.
type TaskStatus struct {
	ID            string
	State         string
	StartedAt     time.Time
	LastHeartbeat time.Time
	ErrorCount    int64
	LastError     string
}
