package services

import (
	"fmt"
	"log"

	"dex-task-service/internal/models"
	"dex-task-service/internal/runner"
	"dex-task-service/internal/store"
	"dex-task-service/pkg/validation"
)

// TaskService owns task creation and lifecycle transitions requested through
// the API. The orchestrator handles PENDING pickup on its own.
type TaskService struct {
	Tasks        *store.TaskStore
	Runner       runner.Runner
	Orchestrator *OrchestratorService
}

func NewTaskService(tasks *store.TaskStore, r runner.Runner, orchestrator *OrchestratorService) *TaskService {
	return &TaskService{Tasks: tasks, Runner: r, Orchestrator: orchestrator}
}

// ValidateContext checks a context payload against the type's schema and the
// typed cross-field rules without touching the store.
func (s *TaskService) ValidateContext(taskType models.TaskType, contextJSON string) error {
	if !taskType.Valid() {
		return fmt.Errorf("%w: unknown task type %q", models.ErrValidation, taskType)
	}
	schema, ok := models.ContextSchemas[taskType]
	if !ok {
		return fmt.Errorf("%w: no context schema for type %q", models.ErrValidation, taskType)
	}
	if err := validation.ValidateJSONWithSchema(schema, contextJSON); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	// Parse once more so cross-field rules the schema can't express apply too.
	taskContext, err := models.ParseContext(taskType, contextJSON)
	if err != nil {
		return err
	}
	return taskContext.Validate()
}

// CreateTask validates the context against the type's schema and inserts a
// PENDING task.
func (s *TaskService) CreateTask(taskType models.TaskType, contextJSON string) (*models.Task, error) {
	if err := s.ValidateContext(taskType, contextJSON); err != nil {
		return nil, err
	}

	// The worker name is assigned by the orchestrator at deploy time.
	task, err := s.Tasks.Create(taskType, "", contextJSON)
	if err != nil {
		return nil, err
	}
	log.Printf("TaskService: created task %s (%s)", task.ID, task.Type)
	return task, nil
}

// StopTask halts a RUNNING task. The worker process is terminated and the
// record moves to STOPPED.
func (s *TaskService) StopTask(id string) (*models.Task, error) {
	task, err := s.Tasks.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusRunning {
		return nil, fmt.Errorf("%w: cannot stop task in status %s", models.ErrValidation, task.Status)
	}
	if err := s.Runner.Stop(task.Name); err != nil {
		log.Printf("TaskService: stop worker %s: %v", task.Name, err)
	}
	if err := s.Tasks.SetStatus(id, models.TaskStatusStopped); err != nil {
		return nil, err
	}
	return s.Tasks.Get(id)
}

// ResumeTask redeploys a STOPPED task. The record never returns to PENDING;
// the orchestrator deployment path moves it straight back to RUNNING.
func (s *TaskService) ResumeTask(id string) (*models.Task, error) {
	task, err := s.Tasks.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusStopped {
		return nil, fmt.Errorf("%w: cannot resume task in status %s", models.ErrValidation, task.Status)
	}
	if err := s.Runner.Remove(task.Name); err != nil {
		log.Printf("TaskService: remove worker %s: %v", task.Name, err)
	}
	if err := s.Orchestrator.DeployTask(task); err != nil {
		return nil, err
	}
	return s.Tasks.Get(id)
}

// DeleteTask soft-deletes a task from any state, killing its worker if one
// is running.
func (s *TaskService) DeleteTask(id string) error {
	task, err := s.Tasks.Get(id)
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusRunning {
		if err := s.Runner.Remove(task.Name); err != nil {
			log.Printf("TaskService: remove worker %s: %v", task.Name, err)
		}
	}
	return s.Tasks.SetStatus(id, models.TaskStatusDeleted)
}

// UpdateTaskContext swaps a task's strategy parameters after validation.
// Running workers see the change on their next cycle reload.
func (s *TaskService) UpdateTaskContext(id, contextJSON string) (*models.Task, error) {
	task, err := s.Tasks.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateContext(task.Type, contextJSON); err != nil {
		return nil, err
	}
	if err := s.Tasks.UpdateContext(id, contextJSON); err != nil {
		return nil, err
	}
	return s.Tasks.Get(id)
}
