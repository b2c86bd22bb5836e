package strategies

import (
	"context"

	"dex-task-service/internal/models"
)

// HolderStrategy makes one pass over the group: fund each wallet from the
// master and buy a random amount in range, leaving the position held. The
// task completes after the pass.
type HolderStrategy struct{}

func (s *HolderStrategy) Run(ctx context.Context, env *Env, task *models.Task) error {
	cfg, err := reloadContext[models.HolderContext](env, task.ID, task.Type)
	if err != nil {
		return err
	}
	return runBuyRangePass(ctx, env, task, cfg, false)
}
