package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/spf13/cobra"

	"dex-task-service/internal/config"
	tmKafka "dex-task-service/internal/kafka"
	"dex-task-service/internal/models"
	"dex-task-service/internal/runner"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
	"dex-task-service/internal/task-manager/api"
	"dex-task-service/internal/task-manager/services"
	gorm_db "dex-task-service/pkg/db"
	"dex-task-service/pkg/encryption"
)

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "task-manager",
		Short: "Trading task manager: REST API, orchestrator and balance refresher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.Load(v))
		},
	}
	flags := rootCmd.Flags()
	flags.String("config", "", "optional config file")
	flags.String("server-addr", "", "HTTP listen address")
	flags.String("db-dsn", "", "database DSN")
	_ = v.BindPFlag("server_addr", flags.Lookup("server-addr"))
	_ = v.BindPFlag("db_dsn", flags.Lookup("db-dsn"))

	cobra.OnInitialize(func() {
		if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				stdlog.Fatalf("Failed to read config file %s: %v", cfgFile, err)
			}
		}
	})

	if err := rootCmd.Execute(); err != nil {
		stdlog.Fatalf("task-manager: %v", err)
	}
}

func run(cfg config.Config) error {
	stdlog.Println("Task Manager Service starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

	gormDB, err := gorm_db.NewGormDB(cfg.DBType, cfg.DBDSN)
	if err != nil {
		stdlog.Fatalf("Failed to initialize database: %v", err)
	}
	stdlog.Println("Database initialized successfully.")

	stdlog.Println("Running database migrations...")
	err = gorm_db.AutoMigrate(gormDB,
		&models.Task{}, &models.TaskStats{}, &models.WalletGroup{}, &models.Wallet{})
	if err != nil {
		stdlog.Fatalf("Failed to migrate database: %v", err)
	}
	stdlog.Println("Database migration successful.")

	cipher, err := encryption.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		stdlog.Fatalf("Failed to initialize key encryption: %v", err)
	}

	taskStore := store.NewTaskStore(gormDB)
	walletStore := store.NewWalletStore(gormDB, cipher)
	rpcClient := solana.NewClient(cfg.SolanaRPCURL)
	processRunner := runner.NewProcessRunner()

	tradeReader := tmKafka.NewTradeReader(splitBrokers(cfg.KafkaBrokers), cfg.TradeTopic, cfg.TradeGroupID)
	tradeService := services.NewTradeService(taskStore, tradeReader)
	tradeService.StartConsuming(appCtx)

	strategyNames := make([]string, 0, len(models.TaskTypes))
	for _, t := range models.TaskTypes {
		strategyNames = append(strategyNames, string(t))
	}
	orchestrator, err := services.NewOrchestratorService(taskStore, processRunner, cfg.WorkerBin, cfg.PollInterval, strategyNames)
	if err != nil {
		stdlog.Fatalf("Failed to create orchestrator service: %v", err)
	}
	if err := orchestrator.Start(); err != nil {
		stdlog.Fatalf("Failed to start orchestrator service: %v", err)
	}

	balanceService, err := services.NewBalanceService(walletStore, rpcClient, cfg.TokenMint, cfg.BalanceRefreshInterval)
	if err != nil {
		stdlog.Fatalf("Failed to create balance service: %v", err)
	}
	if err := balanceService.Start(appCtx); err != nil {
		stdlog.Fatalf("Failed to start balance service: %v", err)
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(cfg.ServerAddr), server.WithExitWaitTime(5*time.Second))

	taskService := services.NewTaskService(taskStore, processRunner, orchestrator)
	api.RegisterRoutes(h, api.NewTaskHandler(taskService), api.NewWalletHandler(walletStore))
	h.GET("/ping", func(c context.Context, ctxReq *app.RequestContext) {
		ctxReq.JSON(http.StatusOK, utils.H{"message": "pong"})
	})

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		hlog.Infof("Received signal: %s. Initiating graceful shutdown...", sig)

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("Hertz server shutdown error: %v", err)
		} else {
			hlog.Info("Hertz server gracefully stopped.")
		}

		orchestrator.Stop()
		balanceService.Stop()
		tradeService.Close()
		hlog.Info("Task Manager gracefully shut down.")
	}()

	hlog.Infof("Task Manager Service fully initialized and starting Hertz server on %s...", cfg.ServerAddr)
	h.Spin()

	stdlog.Println("Task Manager Service has been shut down.")
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
