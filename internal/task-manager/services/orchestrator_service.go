package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"dex-task-service/internal/models"
	"dex-task-service/internal/runner"
	"dex-task-service/internal/store"
)

// OrchestratorService polls for PENDING tasks and deploys one supervised
// worker process per task. It is the only writer of the PENDING to RUNNING
// and PENDING to FAILED transitions; workers own every later one.
type OrchestratorService struct {
	Tasks     *store.TaskStore
	Runner    runner.Runner
	Scheduler gocron.Scheduler

	workerBin    string
	pollInterval time.Duration
	// strategies holds the task types a worker binary knows how to run.
	strategies map[models.TaskType]bool
}

func NewOrchestratorService(tasks *store.TaskStore, r runner.Runner, workerBin string, pollInterval time.Duration, strategyNames []string) (*OrchestratorService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	strategies := make(map[models.TaskType]bool, len(strategyNames))
	for _, name := range strategyNames {
		strategies[models.TaskType(name)] = true
	}
	return &OrchestratorService{
		Tasks:        tasks,
		Runner:       r,
		Scheduler:    s,
		workerBin:    workerBin,
		pollInterval: pollInterval,
		strategies:   strategies,
	}, nil
}

func (s *OrchestratorService) Start() error {
	_, err := s.Scheduler.NewJob(
		gocron.DurationJob(s.pollInterval),
		gocron.NewTask(s.DeployPendingTasks),
		gocron.WithName("deploy-pending-tasks"),
	)
	if err != nil {
		return fmt.Errorf("schedule pending-task poll: %w", err)
	}
	s.Scheduler.Start()
	log.Printf("OrchestratorService started, polling every %s", s.pollInterval)
	return nil
}

func (s *OrchestratorService) Stop() {
	if err := s.Scheduler.Shutdown(); err != nil {
		log.Printf("Error shutting down gocron scheduler: %v", err)
	}
	for _, info := range s.Runner.List() {
		if err := s.Runner.Stop(info.Name); err != nil {
			log.Printf("OrchestratorService: stop worker %s: %v", info.Name, err)
		}
	}
	log.Println("OrchestratorService stopped.")
}

// DeployPendingTasks picks up every PENDING task, oldest first, and moves
// each to exactly one of RUNNING or FAILED.
func (s *OrchestratorService) DeployPendingTasks() {
	pending, err := s.Tasks.ListByStatus(models.TaskStatusPending)
	if err != nil {
		log.Printf("OrchestratorService: list pending tasks: %v", err)
		return
	}
	for i := range pending {
		if err := s.DeployTask(&pending[i]); err != nil {
			log.Printf("OrchestratorService: deploy task %s: %v", pending[i].ID, err)
		}
	}
}

// DeployTask launches the worker for one task. The worker name is assigned
// here, at deploy time, and persisted together with the RUNNING flip once the
// process is up; a failed launch lands the task in FAILED with the reason
// recorded. Redeploys (resume) keep the name already on the record.
func (s *OrchestratorService) DeployTask(task *models.Task) error {
	if !s.strategies[task.Type] {
		reason := fmt.Sprintf("no strategy registered for type %s", task.Type)
		if err := s.Tasks.MarkFailed(task.ID, reason); err != nil {
			return err
		}
		return fmt.Errorf("%s", reason)
	}
	name := task.Name
	if name == "" {
		// The count includes this task, so sequential deploys yield
		// TYPE-1, TYPE-2, ... DELETED tasks stay in the count so their
		// names are never reused.
		count, err := s.Tasks.CountByType(task.Type)
		if err != nil {
			return err
		}
		name = fmt.Sprintf("%s-%d", task.Type, count)
	}
	if err := s.Runner.Start(name, s.workerBin, []string{"run", task.ID}); err != nil {
		if markErr := s.Tasks.MarkFailed(task.ID, err.Error()); markErr != nil {
			log.Printf("OrchestratorService: mark task %s failed: %v", task.ID, markErr)
		}
		return err
	}
	now := time.Now()
	if err := s.Tasks.Update(task.ID, map[string]any{
		"name":       name,
		"status":     models.TaskStatusRunning,
		"started_at": &now,
	}); err != nil {
		return err
	}
	task.Name = name
	log.Printf("OrchestratorService: deployed worker %s for task %s", name, task.ID)
	return nil
}
