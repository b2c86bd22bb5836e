package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
	"dex-task-service/pkg/retry"
)

const (
	balanceRetryAttempts = 5
	balanceRetryDelay    = time.Second
)

// BalanceFetcher reads on-chain balances in batches. Satisfied by
// solana.Client.
type BalanceFetcher interface {
	GetBatchSolBalances(ctx context.Context, addresses []string) ([]float64, error)
	GetBatchTokenBalances(ctx context.Context, addresses []string, mint string) ([]float64, error)
}

// BalanceService periodically refreshes cached wallet balances for every
// non-mixer wallet group.
type BalanceService struct {
	Wallets   *store.WalletStore
	Fetcher   BalanceFetcher
	Scheduler gocron.Scheduler

	tokenMint string
	interval  time.Duration
}

func NewBalanceService(wallets *store.WalletStore, fetcher BalanceFetcher, tokenMint string, interval time.Duration) (*BalanceService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &BalanceService{
		Wallets:   wallets,
		Fetcher:   fetcher,
		Scheduler: s,
		tokenMint: tokenMint,
		interval:  interval,
	}, nil
}

func (s *BalanceService) Start(ctx context.Context) error {
	_, err := s.Scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.RefreshAll(ctx) }),
		gocron.WithName("refresh-wallet-balances"),
	)
	if err != nil {
		return fmt.Errorf("schedule balance refresh: %w", err)
	}
	s.Scheduler.Start()
	log.Printf("BalanceService started, refreshing every %s", s.interval)
	return nil
}

func (s *BalanceService) Stop() {
	if err := s.Scheduler.Shutdown(); err != nil {
		log.Printf("Error shutting down gocron scheduler: %v", err)
	}
	log.Println("BalanceService stopped.")
}

// RefreshAll refreshes every refreshable group. A failing group is logged
// and skipped so the rest still update.
func (s *BalanceService) RefreshAll(ctx context.Context) {
	groups, err := s.Wallets.ListRefreshableGroups()
	if err != nil {
		log.Printf("BalanceService: list groups: %v", err)
		return
	}
	for i := range groups {
		if err := s.RefreshGroup(ctx, &groups[i]); err != nil {
			log.Printf("BalanceService: refresh group %s: %v", groups[i].Name, err)
		}
	}
}

// RefreshGroup reads the group's SOL and token balances in address chunks of
// at most solana.MaxBatchAccounts, with per-chunk retries, and persists the
// per-wallet balances plus group aggregates.
func (s *BalanceService) RefreshGroup(ctx context.Context, group *models.WalletGroup) error {
	wallets, err := s.Wallets.Wallets(group.ID)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return nil
	}
	addresses := make([]string, len(wallets))
	for i := range wallets {
		addresses[i] = wallets[i].Address
	}

	solBalances, err := s.fetchChunked(ctx, addresses, s.Fetcher.GetBatchSolBalances)
	if err != nil {
		return fmt.Errorf("fetch SOL balances: %w", err)
	}
	tokenBalances, err := s.fetchChunked(ctx, addresses, func(ctx context.Context, chunk []string) ([]float64, error) {
		return s.Fetcher.GetBatchTokenBalances(ctx, chunk, s.tokenMint)
	})
	if err != nil {
		return fmt.Errorf("fetch token balances: %w", err)
	}
	return s.Wallets.UpdateBalances(group.ID, wallets, solBalances, tokenBalances)
}

// fetchChunked splits addresses into batch-sized chunks and flattens the
// results back in input order.
func (s *BalanceService) fetchChunked(ctx context.Context, addresses []string, fetch func(context.Context, []string) ([]float64, error)) ([]float64, error) {
	out := make([]float64, 0, len(addresses))
	for start := 0; start < len(addresses); start += solana.MaxBatchAccounts {
		end := start + solana.MaxBatchAccounts
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		var balances []float64
		err := retry.Do(ctx, retry.Config{
			MaxAttempts: balanceRetryAttempts,
			Delay:       balanceRetryDelay,
			OnRetry: func(attempt int, err error) {
				log.Printf("BalanceService: batch read attempt %d failed: %v", attempt, err)
			},
		}, func() error {
			var fetchErr error
			balances, fetchErr = fetch(ctx, chunk)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
		out = append(out, balances...)
	}
	return out, nil
}
