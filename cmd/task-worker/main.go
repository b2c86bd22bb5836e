package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dex-task-service/internal/bundler"
	"dex-task-service/internal/config"
	"dex-task-service/internal/dex"
	tmKafka "dex-task-service/internal/kafka"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
	"dex-task-service/internal/task-worker/strategies"
	gorm_db "dex-task-service/pkg/db"
	"dex-task-service/pkg/encryption"
)

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "task-worker",
		Short: "Executes a single trading task to completion",
	}

	runCmd := &cobra.Command{
		Use:   "run <task-id>",
		Short: "Run the task with the given ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.Load(v), args[0])
		},
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("task-worker: %v", err)
	}
}

func run(cfg config.Config, taskID string) error {
	log.Printf("Task worker starting for task %s", taskID)

	gormDB, err := gorm_db.NewGormDB(cfg.DBType, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cipher, err := encryption.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to initialize key encryption: %v", err)
	}

	rpcClient := solana.NewClient(cfg.SolanaRPCURL)

	dexClient, err := dex.New(cfg.DexName, rpcClient, dex.Config{
		TokenMint:    cfg.TokenMint,
		PoolAddress:  cfg.PoolAddress,
		PoolAccounts: cfg.PoolAccounts,
	})
	if err != nil {
		log.Fatalf("Failed to initialize dex adapter: %v", err)
	}

	writer := tmKafka.NewTradeWriter(splitBrokers(cfg.KafkaBrokers), cfg.TradeTopic)
	defer writer.Close()

	env := &strategies.Env{
		Tasks:     store.NewTaskStore(gormDB),
		Wallets:   store.NewWalletStore(gormDB, cipher),
		Dex:       dexClient,
		RPC:       rpcClient,
		Bundler:   bundler.NewClient(cfg.BlockEngineURL),
		Writer:    writer,
		Sleep:     time.Sleep,
		TokenMint: cfg.TokenMint,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		log.Printf("Received signal: %s. Stopping task %s...", sig, taskID)
		cancel()
	}()

	if err := strategies.Execute(ctx, env, taskID); err != nil {
		log.Printf("Task %s finished with error: %v", taskID, err)
		return err
	}
	log.Printf("Task %s finished.", taskID)
	return nil
}

func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
