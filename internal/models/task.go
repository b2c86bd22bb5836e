package models

import (
	"errors"
	"time"
)

// TaskType discriminates the context payload and the strategy a worker runs.
type TaskType string

const (
	TaskTypeVolume TaskType = "VOLUME"
	TaskTypeMaker  TaskType = "MAKER"
	TaskTypeHolder TaskType = "HOLDER"
	TaskTypeMixer  TaskType = "MIXER"
	TaskTypeSweep  TaskType = "SWEEP"
)

// TaskTypes lists every supported type.
var TaskTypes = []TaskType{
	TaskTypeVolume,
	TaskTypeMaker,
	TaskTypeHolder,
	TaskTypeMixer,
	TaskTypeSweep,
}

func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusStopped   TaskStatus = "STOPPED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusDeleted   TaskStatus = "DELETED"
)

var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusStopped,
	TaskStatusFailed,
	TaskStatusCompleted,
	TaskStatusDeleted,
}

func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is a persisted unit of scheduled work. The orchestrator flips it
// PENDING -> RUNNING (or FAILED on a deploy error); only the bound worker
// writes the terminal states. A status never goes back to PENDING once left.
type Task struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type          TaskType   `json:"type" gorm:"index;type:varchar(16)"`
	Name          string     `json:"name" gorm:"index"` // worker process name, <TYPE>-<n>, assigned at deploy
	Context       string     `json:"context" gorm:"type:json"`
	Status        TaskStatus `json:"status" gorm:"index;type:varchar(16)"`
	StartedAt     *time.Time `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	FailureReason string     `json:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TaskStats aggregates worker-reported trade events per task.
type TaskStats struct {
	TaskID       string     `json:"task_id" gorm:"primaryKey;type:varchar(36)"`
	SuccessCount int        `json:"success_count" gorm:"default:0"`
	ErrorCount   int        `json:"error_count" gorm:"default:0"`
	TotalVolume  float64    `json:"total_volume" gorm:"default:0"`
	LastTradeAt  *time.Time `json:"last_trade_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Sentinel errors shared across layers; the API maps them to status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)
