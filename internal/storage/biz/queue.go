package biz

import (
	"context"
	"time"
)

// Background task types
const (
	TaskTypeVariants = "file:variants"
	TaskTypeReclaim  = "file:reclaim"
)

// Task is one unit of background work
type Task struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Payload     map[string]string `json:"payload"`
	MaxAttempts int               `json:"max_attempts"`
	Attempts    int               `json:"attempts"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TaskQueue hands tasks to the background workers. ScheduleIn of zero means
// run as soon as a worker is free.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *Task, scheduleIn time.Duration) error
}
