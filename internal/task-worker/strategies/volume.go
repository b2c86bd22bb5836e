package strategies

import (
	"context"
	"errors"
	"log"
	"time"

	"dex-task-service/internal/events"
	"dex-task-service/internal/models"
	"dex-task-service/internal/store"
)

const interCycleSleep = time.Second

type tradeKind int

const (
	tradeBuy tradeKind = iota
	tradeSell
)

type plannedTrade struct {
	kind   tradeKind
	amount float64 // SOL volume this trade moves
}

// VolumeStrategy generates organic-looking volume: each cycle it splits the
// per-minute volume target into randomized buys and sells across random
// wallets of the group, paced over the minute.
type VolumeStrategy struct{}

func (s *VolumeStrategy) Run(ctx context.Context, env *Env, task *models.Task) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Reload each cycle so API parameter updates take effect live.
		cfg, err := reloadContext[models.VolumeContext](env, task.ID, task.Type)
		if err != nil {
			return err
		}
		group, err := env.Wallets.GroupByRef(cfg.WalletGroupID)
		if err != nil {
			return err
		}
		s.runCycle(ctx, env, task, cfg, group.ID)
		env.sleep(interCycleSleep)
	}
}

// runCycle plans and executes one minute of trading. Individual trade
// failures are published and skipped; the cycle always finishes.
func (s *VolumeStrategy) runCycle(ctx context.Context, env *Env, task *models.Task, cfg models.VolumeContext, groupID uint) {
	trades := planCycle(cfg)
	if len(trades) == 0 {
		log.Printf("VolumeStrategy: task %s planned no trades this cycle", task.ID)
		return
	}
	// Pace the trades across the minute with randomized gaps.
	interval := time.Minute / time.Duration(len(trades))

	for _, trade := range trades {
		if ctx.Err() != nil {
			return
		}
		skipped, err := s.executeTrade(ctx, env, task, trade, groupID)
		if err != nil {
			log.Printf("VolumeStrategy: task %s trade failed: %v", task.ID, err)
		}
		if skipped {
			continue
		}
		env.sleep(time.Duration(float64(interval) * randFloat(0.5, 1.5)))
	}
}

// planCycle splits the volume budget into a shuffled list of buys and sells
// per the configured bias.
func planCycle(cfg models.VolumeContext) []plannedTrade {
	buyWeight, sellWeight := tradeWeights(cfg.Bias)
	buyCount := randInt(1, cfg.TradesPerCycle)
	sellCount := cfg.TradesPerCycle - buyCount

	trades := make([]plannedTrade, 0, cfg.TradesPerCycle)
	for _, amount := range splitVolumeIntoAmounts(cfg.VolumePerMinute*buyWeight, buyCount) {
		trades = append(trades, plannedTrade{kind: tradeBuy, amount: amount})
	}
	for _, amount := range splitVolumeIntoAmounts(cfg.VolumePerMinute*sellWeight, sellCount) {
		trades = append(trades, plannedTrade{kind: tradeSell, amount: amount})
	}
	shuffleTrades(trades)
	return trades
}

// executeTrade runs one planned trade end to end. A group with no wallet
// funded for the trade's direction skips it silently (skipped=true, no event
// emitted); any other outcome is published for the manager to record.
func (s *VolumeStrategy) executeTrade(ctx context.Context, env *Env, task *models.Task, trade plannedTrade, groupID uint) (bool, error) {
	payload := events.TradeExecutedPayload{TaskID: task.ID, Amount: trade.amount}
	if trade.kind == tradeBuy {
		payload.TradeType = events.TradeTypeBuy
	} else {
		payload.TradeType = events.TradeTypeSell
	}

	skipped := false
	err := func() error {
		// Sells are sized in SOL; quote to token units at the current
		// price before picking a wallet that can cover them.
		execAmount := trade.amount
		if trade.kind == tradeSell {
			tokenAmount, err := env.Dex.QuoteTokensForSol(ctx, trade.amount)
			if err != nil {
				return err
			}
			execAmount = tokenAmount
		}

		var wallet *models.Wallet
		var err error
		if trade.kind == tradeBuy {
			wallet, err = env.Wallets.RandomEligibleWallet(groupID, trade.amount+gasReserveSol, 0)
		} else {
			wallet, err = env.Wallets.RandomEligibleWallet(groupID, gasReserveSol, execAmount)
		}
		if errors.Is(err, store.ErrNoEligibleWallet) {
			log.Printf("VolumeStrategy: task %s: no wallet with sufficient balance for %s of %f",
				task.ID, payload.TradeType, trade.amount)
			skipped = true
			return nil
		}
		if err != nil {
			return err
		}
		payload.WalletAddress = wallet.Address
		keypair, err := env.Wallets.Keypair(wallet)
		if err != nil {
			return err
		}

		var txHash string
		if trade.kind == tradeBuy {
			txHash, err = env.Dex.Buy(ctx, keypair, execAmount)
		} else {
			txHash, err = env.Dex.Sell(ctx, keypair, execAmount)
		}
		if err != nil {
			return err
		}
		payload.TxHash = txHash
		return nil
	}()

	if skipped {
		return true, nil
	}
	if err != nil {
		payload.Error = err.Error()
	} else {
		payload.Success = true
	}
	env.publishTrade(ctx, payload)
	return false, err
}
