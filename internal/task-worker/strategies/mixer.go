package strategies

import (
	"context"
	"fmt"
	"log"

	"dex-task-service/internal/bundler"
	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
)

// Cost reserves carried on top of the delivered amount. The mixer wallet
// must cover the bundle tip, transaction fees, its own rent and the wrapped
// SOL account creation.
const (
	mixerTipSol         = 0.001
	mixerGasSol         = 0.001
	mixerRentSol        = 0.001
	mixerAccountInitSol = 0.002
)

// Compute budget applied to the delivery leg.
const (
	mixerComputeUnitPrice = 200_000 // micro-lamports per unit
	mixerComputeUnitLimit = 200_000
)

func mixerReserves() float64 {
	return mixerTipSol + mixerGasSol + mixerRentSol + mixerAccountInitSol
}

// MixerStrategy routes SOL from the master wallet to each wallet of the
// group through a disposable intermediary. Both hops land atomically in one
// bundle so no observable state ever links source and destination directly.
// Transfers run sequentially and the run aborts on the first failure: a
// half-mixed group must not keep consuming master funds.
type MixerStrategy struct{}

func (s *MixerStrategy) Run(ctx context.Context, env *Env, task *models.Task) error {
	cfg, err := reloadContext[models.MixerContext](env, task.ID, task.Type)
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
	destinations, err := env.Wallets.Wallets(group.ID)
	if err != nil {
		return err
	}
	if len(destinations) == 0 {
		return fmt.Errorf("wallet group %s holds no wallets", cfg.WalletGroupID)
	}

	// The scratch group's MIXER name prefix keeps the balance refresher away
	// from these intermediary wallets. The group is kept after the run so any
	// residual dust stays recoverable through its stored keys.
	scratch, err := env.Wallets.CreateGroup(store.NextMixerGroupName(task.ID), len(destinations))
	if err != nil {
		return fmt.Errorf("create mixer scratch group: %w", err)
	}
	mixers, err := env.Wallets.Wallets(scratch.ID)
	if err != nil {
		return err
	}

	for i := range destinations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mixerKey, err := env.Wallets.Keypair(&mixers[i])
		if err != nil {
			return err
		}
		destination, err := solana.PublicKeyFromBase58(destinations[i].Address)
		if err != nil {
			return err
		}
		bundleID, err := s.mixOne(ctx, env, masterKey, mixerKey, destination, cfg.AmountPerWallet)
		if err != nil {
			return fmt.Errorf("mix to %s: %w", destinations[i].Address, err)
		}
		log.Printf("MixerStrategy: task %s delivered %v SOL to %s (bundle %s)",
			task.ID, cfg.AmountPerWallet, destinations[i].Address, bundleID)
	}
	return nil
}

// mixOne sends one atomic two-hop delivery: master funds the mixer, and the
// mixer wraps, unwraps toward the destination and tips, all in one bundle.
func (s *MixerStrategy) mixOne(ctx context.Context, env *Env, masterKey, mixerKey *solana.Keypair, destination solana.PublicKey, amount float64) (string, error) {
	totalAmount := amount + mixerReserves()

	blockhash, err := env.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	// Leg A: master funds the mixer with the delivery amount plus reserves.
	fundTx, err := solana.NewTransaction(
		[]solana.Instruction{
			solana.NewTransferInstruction(masterKey.PublicKey(), mixerKey.PublicKey(), solana.SolToLamports(totalAmount)),
		},
		blockhash,
		masterKey.PublicKey(),
	)
	if err != nil {
		return "", err
	}
	if err := fundTx.Sign(masterKey); err != nil {
		return "", err
	}
	fundRaw, err := fundTx.SerializeBase58()
	if err != nil {
		return "", err
	}

	// Leg B: the mixer wraps the net amount and closes the wrapped account
	// straight into the destination, which receives plain SOL.
	deliverRaw, err := s.deliveryLeg(mixerKey, destination, totalAmount-mixerReserves(), blockhash)
	if err != nil {
		return "", err
	}

	return env.Bundler.SendBundle(ctx, []string{fundRaw, deliverRaw})
}

func (s *MixerStrategy) deliveryLeg(mixerKey *solana.Keypair, destination solana.PublicKey, amount float64, blockhash string) (string, error) {
	mixer := mixerKey.PublicKey()
	wsolAccount, err := solana.AssociatedTokenAddress(mixer, solana.WrappedSolMint)
	if err != nil {
		return "", err
	}
	tipIx, err := bundler.TipInstruction(mixer, mixerTipSol)
	if err != nil {
		return "", err
	}

	instructions := []solana.Instruction{
		solana.NewComputeUnitPriceInstruction(mixerComputeUnitPrice),
		solana.NewComputeUnitLimitInstruction(mixerComputeUnitLimit),
		solana.NewCreateAssociatedTokenAccountInstruction(mixer, wsolAccount, mixer, solana.WrappedSolMint),
		solana.NewTransferInstruction(mixer, wsolAccount, solana.SolToLamports(amount)),
		solana.NewSyncNativeInstruction(wsolAccount),
		solana.NewCloseAccountInstruction(wsolAccount, destination, mixer),
		tipIx,
	}
	tx, err := solana.NewTransaction(instructions, blockhash, mixer)
	if err != nil {
		return "", err
	}
	if err := tx.Sign(mixerKey); err != nil {
		return "", err
	}
	return tx.SerializeBase58()
}
