package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dex-task-service/internal/models"
)

// TaskStore persists task records and their run statistics.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create inserts a new task in PENDING status and returns it.
func (s *TaskStore) Create(taskType models.TaskType, name, contextJSON string) (*models.Task, error) {
	task := &models.Task{
		ID:      uuid.NewString(),
		Type:    taskType,
		Name:    name,
		Context: contextJSON,
		Status:  models.TaskStatusPending,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Get fetches a task by id.
func (s *TaskStore) Get(id string) (*models.Task, error) {
	var task models.Task
	err := s.db.First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch task %s: %w", id, err)
	}
	return &task, nil
}

// List returns tasks, optionally filtered by status, newest first. DELETED
// tasks are excluded unless explicitly asked for.
func (s *TaskStore) List(status models.TaskStatus) ([]models.Task, error) {
	query := s.db.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", models.TaskStatusDeleted)
	}
	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListByStatus returns all tasks in the given status, oldest first, the order
// the orchestrator picks them up in.
func (s *TaskStore) ListByStatus(status models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.Where("status = ?", status).Order("created_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", status, err)
	}
	return tasks, nil
}

// CountByType counts all tasks of the given type, deleted ones included.
// Worker names are derived from it, so soft-deleted rows must keep holding
// their slot or a later task would reuse the name.
func (s *TaskStore) CountByType(taskType models.TaskType) (int64, error) {
	var count int64
	err := s.db.Model(&models.Task{}).
		Where("type = ?", taskType).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count %s tasks: %w", taskType, err)
	}
	return count, nil
}

// Update applies a partial update to a task. Unknown tasks return
// models.ErrNotFound.
func (s *TaskStore) Update(id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	res := s.db.Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetStatus transitions a task to status, stamping the matching timestamp.
func (s *TaskStore) SetStatus(id string, status models.TaskStatus) error {
	fields := map[string]any{"status": status}
	now := time.Now()
	switch status {
	case models.TaskStatusRunning:
		fields["started_at"] = &now
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusStopped:
		fields["ended_at"] = &now
	}
	return s.Update(id, fields)
}

// MarkFailed transitions a task to FAILED with the reason preserved.
func (s *TaskStore) MarkFailed(id, reason string) error {
	now := time.Now()
	return s.Update(id, map[string]any{
		"status":         models.TaskStatusFailed,
		"failure_reason": reason,
		"ended_at":       &now,
	})
}

// UpdateContext replaces a task's strategy parameters. Running workers pick
// the change up on their next cycle.
func (s *TaskStore) UpdateContext(id, contextJSON string) error {
	return s.Update(id, map[string]any{"context": contextJSON})
}

// RecordTrade upserts run statistics after an executed trade.
func (s *TaskStore) RecordTrade(taskID string, volume float64, success bool) error {
	now := time.Now()
	var stats models.TaskStats
	err := s.db.Where("task_id = ?", taskID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.TaskStats{TaskID: taskID}
	} else if err != nil {
		return fmt.Errorf("fetch stats for task %s: %w", taskID, err)
	}
	if success {
		stats.SuccessCount++
		stats.TotalVolume += volume
		stats.LastTradeAt = &now
	} else {
		stats.ErrorCount++
	}
	stats.UpdatedAt = now
	if err := s.db.Save(&stats).Error; err != nil {
		return fmt.Errorf("save stats for task %s: %w", taskID, err)
	}
	return nil
}

// Stats fetches a task's run statistics, zero-valued when no trade has been
// recorded yet.
func (s *TaskStore) Stats(taskID string) (*models.TaskStats, error) {
	var stats models.TaskStats
	err := s.db.Where("task_id = ?", taskID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.TaskStats{TaskID: taskID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch stats for task %s: %w", taskID, err)
	}
	return &stats, nil
}
