package strategies

import (
	"context"
	"fmt"
	"log"
	"time"

	"dex-task-service/internal/events"
	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
)

const (
	// gasReserveSol is added on top of the buy amount when funding a wallet.
	gasReserveSol = 0.001

	// settleSleep gives a sent transaction time to land before the next
	// phase depends on its effects.
	settleSleep = 3 * time.Second
)

// MakerStrategy cycles through the group's wallets forever: fund a wallet
// from the master, buy, sell back, then sweep the leftovers to the master in
// a transaction the master pays fees for.
type MakerStrategy struct{}

func (s *MakerStrategy) Run(ctx context.Context, env *Env, task *models.Task) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cfg, err := reloadContext[models.MakerContext](env, task.ID, task.Type)
		if err != nil {
			return err
		}
		if err := runBuyRangePass(ctx, env, task, cfg, true); err != nil {
			return err
		}
	}
}

// runBuyRangePass makes one pass over the group. Per-wallet failures are
// logged and the pass moves on; only setup errors abort it.
func runBuyRangePass(ctx context.Context, env *Env, task *models.Task, cfg models.BuyRangeContext, withExit bool) error {
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

	for i := range wallets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := runWalletRound(ctx, env, task, masterKey, &wallets[i], cfg, withExit); err != nil {
			log.Printf("Strategy: task %s wallet %s round failed: %v", task.ID, wallets[i].Address, err)
		}
	}
	return nil
}

// runWalletRound funds one wallet, buys, and when withExit is set sells back
// and sweeps the remains to the master.
func runWalletRound(ctx context.Context, env *Env, task *models.Task, masterKey *solana.Keypair, wallet *models.Wallet, cfg models.BuyRangeContext, withExit bool) error {
	walletKey, err := env.Wallets.Keypair(wallet)
	if err != nil {
		return err
	}
	buyAmount := randFloat(cfg.MinAmountToBuy, cfg.MaxAmountToBuy)

	// Fund the wallet with the buy amount plus gas headroom.
	if err := transferSol(ctx, env, masterKey, walletKey.PublicKey(), buyAmount+gasReserveSol); err != nil {
		return fmt.Errorf("fund wallet: %w", err)
	}
	env.sleep(settleSleep)

	txHash, err := env.Dex.Buy(ctx, walletKey, buyAmount)
	success := err == nil
	payload := events.TradeExecutedPayload{
		TaskID:        task.ID,
		TradeType:     events.TradeTypeBuy,
		Amount:        buyAmount,
		TxHash:        txHash,
		WalletAddress: wallet.Address,
		Success:       success,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	env.publishTrade(ctx, payload)
	if err != nil {
		return fmt.Errorf("buy: %w", err)
	}
	if !withExit {
		return nil
	}
	env.sleep(settleSleep)

	// Sell whatever the buy actually settled into. The fill can differ from
	// the quoted amount, so the wallet's token account is the truth.
	tokenBalances, err := env.RPC.GetBatchTokenBalances(ctx, []string{wallet.Address}, env.TokenMint)
	if err != nil {
		return fmt.Errorf("read token balance: %w", err)
	}
	tokenAmount := tokenBalances[0]
	if tokenAmount <= 0 {
		return fmt.Errorf("wallet %s holds no tokens after buy", wallet.Address)
	}
	sellHash, err := env.Dex.Sell(ctx, walletKey, tokenAmount)
	success = err == nil
	payload = events.TradeExecutedPayload{
		TaskID:        task.ID,
		TradeType:     events.TradeTypeSell,
		Amount:        buyAmount,
		TxHash:        sellHash,
		WalletAddress: wallet.Address,
		Success:       success,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	env.publishTrade(ctx, payload)
	if err != nil {
		return fmt.Errorf("sell: %w", err)
	}
	env.sleep(settleSleep)

	return sweepWalletToMaster(ctx, env, masterKey, walletKey)
}

// transferSol moves SOL between system accounts with the sender paying fees.
func transferSol(ctx context.Context, env *Env, from *solana.Keypair, to solana.PublicKey, amount float64) error {
	blockhash, err := env.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewTransferInstruction(from.PublicKey(), to, solana.SolToLamports(amount))},
		blockhash,
		from.PublicKey(),
	)
	if err != nil {
		return err
	}
	if err := tx.Sign(from); err != nil {
		return err
	}
	raw, err := tx.SerializeBase58()
	if err != nil {
		return err
	}
	_, err = env.RPC.SendTransaction(ctx, raw)
	return err
}

// sweepWalletToMaster closes the wallet's token account and returns its SOL
// to the master. The master pays fees so the wallet can be drained to zero;
// both keys sign.
func sweepWalletToMaster(ctx context.Context, env *Env, masterKey, walletKey *solana.Keypair) error {
	walletAddr := walletKey.Address()
	balances, err := env.RPC.GetBatchSolBalances(ctx, []string{walletAddr})
	if err != nil {
		return fmt.Errorf("read wallet balance: %w", err)
	}
	lamports := solana.SolToLamports(balances[0])

	tokenMint, err := solana.PublicKeyFromBase58(env.TokenMint)
	if err != nil {
		return err
	}
	tokenAccount, err := solana.AssociatedTokenAddress(walletKey.PublicKey(), tokenMint)
	if err != nil {
		return err
	}

	instructions := []solana.Instruction{
		solana.NewCloseAccountInstruction(tokenAccount, masterKey.PublicKey(), walletKey.PublicKey()),
	}
	if lamports > 0 {
		instructions = append(instructions,
			solana.NewTransferInstruction(walletKey.PublicKey(), masterKey.PublicKey(), lamports))
	}

	blockhash, err := env.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, masterKey.PublicKey())
	if err != nil {
		return err
	}
	if err := tx.Sign(masterKey, walletKey); err != nil {
		return err
	}
	raw, err := tx.SerializeBase58()
	if err != nil {
		return err
	}
	if _, err := env.RPC.SendTransaction(ctx, raw); err != nil {
		return fmt.Errorf("sweep wallet %s: %w", walletAddr, err)
	}
	return nil
}
