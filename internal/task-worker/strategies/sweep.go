package strategies

import (
	"context"
	"fmt"
	"log"

	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
)

// SweepStrategy drains every funded wallet of the group back into the
// master with a plain SOL transfer, master paying the fee. One pass, no
// per-wallet isolation: the first failure aborts the task.
type SweepStrategy struct{}

func (s *SweepStrategy) Run(ctx context.Context, env *Env, task *models.Task) error {
	cfg, err := reloadContext[models.SweepContext](env, task.ID, task.Type)
	if err != nil {
		return err
	}
	master, err := env.Wallets.WalletByAddress(cfg.MasterWalletAddress)
	if err != nil {
		return err
	}
	masterKey, err := env.Wallets.Keypair(master)
	if err != nil {
		return err
	}
	group, err := env.Wallets.GroupByRef(cfg.WalletGroupID)
	if err != nil {
		return err
	}
	wallets, err := env.Wallets.Wallets(group.ID)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return fmt.Errorf("no wallets found in group %s", cfg.WalletGroupID)
	}

	addresses := make([]string, len(wallets))
	for i := range wallets {
		addresses[i] = wallets[i].Address
	}
	balances, err := env.RPC.GetBatchSolBalances(ctx, addresses)
	if err != nil {
		return fmt.Errorf("read group balances: %w", err)
	}
	funded := wallets[:0]
	for i := range wallets {
		if balances[i] > 0 {
			funded = append(funded, wallets[i])
		}
	}
	if len(funded) == 0 {
		return fmt.Errorf("no wallets with balance found in group %s", cfg.WalletGroupID)
	}

	for i := range funded {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		walletKey, err := env.Wallets.Keypair(&funded[i])
		if err != nil {
			return err
		}
		// Balance is re-read per wallet so the whole amount moves even if
		// it changed since the batch read.
		current, err := env.RPC.GetBatchSolBalances(ctx, []string{funded[i].Address})
		if err != nil {
			return fmt.Errorf("read wallet balance: %w", err)
		}
		txHash, err := sweepSolToMaster(ctx, env, masterKey, walletKey, solana.SolToLamports(current[0]))
		if err != nil {
			return fmt.Errorf("sweep wallet %s: %w", funded[i].Address, err)
		}
		log.Printf("SweepStrategy: task %s swept %f SOL from %s (%s)", task.ID, current[0], funded[i].Address, txHash)
	}
	return nil
}

func sweepSolToMaster(ctx context.Context, env *Env, masterKey, walletKey *solana.Keypair, lamports uint64) (string, error) {
	blockhash, err := env.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	transfer := solana.NewTransferInstruction(walletKey.PublicKey(), masterKey.PublicKey(), lamports)
	tx, err := solana.NewTransaction([]solana.Instruction{transfer}, blockhash, masterKey.PublicKey())
	if err != nil {
		return "", err
	}
	if err := tx.Sign(masterKey, walletKey); err != nil {
		return "", err
	}
	raw, err := tx.SerializeBase58()
	if err != nil {
		return "", err
	}
	return env.RPC.SendTransaction(ctx, raw)
}
