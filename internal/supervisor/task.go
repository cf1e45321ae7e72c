// Package supervisor runs managed background tasks with restart/backoff:
// a failing task is retried with exponential, jittered, capped delay up
// to a configured limit, and a background health monitor force-restarts
// any interval task whose heartbeat goes stale.
package supervisor

import (
	"context"
	"time"
)

// TaskPriority is the closed set of supervised-task priority classes.
type TaskPriority string

const (
	Critical TaskPriority = "CRITICAL"
	High     TaskPriority = "HIGH"
	Medium   TaskPriority = "MEDIUM"
	Low      TaskPriority = "LOW"
)

// TaskState is the closed set of states a supervised task passes through.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
	TaskCanceled  TaskState = "CANCELED"
)

// TaskFunc is the work a supervised task performs. It must return promptly
// after ctx is cancelled.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes one supervised task.
type TaskConfig struct {
	Name string
	Func TaskFunc

	// Interval is the fixed cadence for repeating tasks. Zero means
	// one-shot: invoked once at start, run until completion or cancellation.
	Interval time.Duration

	Priority         TaskPriority
	Timeout          time.Duration
	RestartOnFailure bool
	MaxRestarts      int
	BackoffBaseMs    int64
	BackoffCapMs     int64

	// Group allows bulk start/stop, e.g. a "trading" group stopped for
	// maintenance.
	Group string
}

func (c *TaskConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BackoffBaseMs <= 0 {
		c.BackoffBaseMs = 1000
	}
	if c.BackoffCapMs <= 0 {
		c.BackoffCapMs = 30_000
	}
}
