package strategies

import (
	"context"
	"fmt"
	"log"
	"time"

	"dex-task-service/internal/dex"
	"dex-task-service/internal/events"
	kafkautil "dex-task-service/internal/kafka"
	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
)

// Env bundles the dependencies a strategy runs against. Sleep is injectable
// so tests can run pacing logic instantly.
type Env struct {
	Tasks   *store.TaskStore
	Wallets *store.WalletStore
	Dex     dex.Dex
	RPC     *solana.Client
	Bundler BundleSender
	Writer  kafkautil.MessageWriter
	Sleep   func(time.Duration)

	// TokenMint is the traded token's mint address.
	TokenMint string
}

// BundleSender is the slice of the block engine client strategies use.
type BundleSender interface {
	SendBundle(ctx context.Context, transactions []string) (string, error)
}

func (e *Env) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// publishTrade reports one trade attempt on the trade topic. The manager's
// consumer folds these events into task stats, so workers never write stats
// directly. Publishing failures are logged, never fatal: the trade already
// happened.
func (e *Env) publishTrade(ctx context.Context, payload events.TradeExecutedPayload) {
	if e.Writer == nil {
		return
	}
	payload.At = time.Now()
	if err := kafkautil.PublishTrade(ctx, e.Writer, payload); err != nil {
		log.Printf("Strategy: publish trade event: %v", err)
	}
}

// Strategy runs one task to completion or until the context is cancelled.
type Strategy interface {
	// Run executes the strategy. Returning nil means the task COMPLETED;
	// an error means FAILED. Forever-running strategies return only on
	// cancellation or a fatal error.
	Run(ctx context.Context, env *Env, task *models.Task) error
}

var registry = make(map[models.TaskType]Strategy)

func Register(taskType models.TaskType, strategy Strategy) {
	log.Printf("Registering strategy for type: %s", taskType)
	registry[taskType] = strategy
}

func Get(taskType models.TaskType) (Strategy, error) {
	strategy, exists := registry[taskType]
	if !exists {
		return nil, fmt.Errorf("no strategy registered for type: %s", taskType)
	}
	return strategy, nil
}

// Names lists the registered strategy types. The orchestrator refuses to
// deploy types outside this set.
func Names() []string {
	names := make([]string, 0, len(registry))
	for taskType := range registry {
		names = append(names, string(taskType))
	}
	return names
}

func init() {
	Register(models.TaskTypeVolume, &VolumeStrategy{})
	Register(models.TaskTypeMaker, &MakerStrategy{})
	Register(models.TaskTypeHolder, &HolderStrategy{})
	Register(models.TaskTypeMixer, &MixerStrategy{})
	Register(models.TaskTypeSweep, &SweepStrategy{})
}

// Execute is the worker entrypoint: it loads the task, runs its strategy and
// writes the terminal status back. The task record is the only coordination
// channel with the orchestrator.
func Execute(ctx context.Context, env *Env, taskID string) error {
	task, err := env.Tasks.Get(taskID)
	if err != nil {
		return err
	}
	// The RUNNING flip may land just after the process starts, so only
	// finished records are refused here.
	switch task.Status {
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusDeleted:
		return fmt.Errorf("task %s is already %s", taskID, task.Status)
	}
	strategy, err := Get(task.Type)
	if err != nil {
		if markErr := env.Tasks.MarkFailed(taskID, err.Error()); markErr != nil {
			log.Printf("Strategy: mark task %s failed: %v", taskID, markErr)
		}
		return err
	}

	log.Printf("Strategy: task %s (%s) starting", task.ID, task.Name)
	runErr := strategy.Run(ctx, env, task)

	switch {
	case runErr == nil:
		if err := env.Tasks.SetStatus(taskID, models.TaskStatusCompleted); err != nil {
			return err
		}
		log.Printf("Strategy: task %s completed", taskID)
		return nil
	case ctx.Err() != nil:
		// Cancellation is a stop, not a failure. The manager already moved
		// the record to STOPPED or DELETED before signalling us.
		log.Printf("Strategy: task %s cancelled", taskID)
		return nil
	default:
		if err := env.Tasks.MarkFailed(taskID, runErr.Error()); err != nil {
			log.Printf("Strategy: mark task %s failed: %v", taskID, err)
		}
		log.Printf("Strategy: task %s failed: %v", taskID, runErr)
		return runErr
	}
}

// reloadContext re-reads the task record so parameter updates made through
// the API apply on the next cycle.
func reloadContext[T models.TaskContext](env *Env, taskID string, taskType models.TaskType) (T, error) {
	var zero T
	task, err := env.Tasks.Get(taskID)
	if err != nil {
		return zero, err
	}
	parsed, err := models.ParseContext(taskType, task.Context)
	if err != nil {
		return zero, err
	}
	typed, ok := parsed.(T)
	if !ok {
		return zero, fmt.Errorf("task %s: unexpected context type %T", taskID, parsed)
	}
	return typed, nil
}
