package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration shared by the task manager and the task
// workers. Every component receives the values it needs at construction;
// nothing reads the environment ad hoc.
type Config struct {
	DBType string
	DBDSN  string

	ServerAddr string

	KafkaBrokers string
	TradeTopic   string
	TradeGroupID string

	SolanaRPCURL   string
	BlockEngineURL string

	EncryptionSecret string

	DexName      string
	TokenMint    string
	PoolAddress  string
	PoolAccounts []string // operator-supplied account list for the swap instruction

	WorkerBin string

	PollInterval           time.Duration
	BalanceRefreshInterval time.Duration
}

// NewViper builds a viper instance with environment binding and defaults.
// Flags may override any key before Load is called.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_dsn", "dex-task-service.db")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("trade_topic", "trade_events")
	v.SetDefault("trade_group_id", "task-manager-trades-group")
	v.SetDefault("solana_rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("block_engine_url", "https://mainnet.block-engine.jito.wtf/api/v1/bundles")
	v.SetDefault("dex", "RAYDIUM_CLMM")
	v.SetDefault("worker_bin", "task-worker")
	v.SetDefault("poll_interval", time.Second)
	v.SetDefault("balance_refresh_interval", time.Minute)
	return v
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		DBType:                 v.GetString("db_type"),
		DBDSN:                  v.GetString("db_dsn"),
		ServerAddr:             v.GetString("server_addr"),
		KafkaBrokers:           v.GetString("kafka_brokers"),
		TradeTopic:             v.GetString("trade_topic"),
		TradeGroupID:           v.GetString("trade_group_id"),
		SolanaRPCURL:           v.GetString("solana_rpc_url"),
		BlockEngineURL:         v.GetString("block_engine_url"),
		EncryptionSecret:       v.GetString("encryption_secret"),
		DexName:                v.GetString("dex"),
		TokenMint:              v.GetString("token_mint"),
		PoolAddress:            v.GetString("pool_address"),
		PoolAccounts:           v.GetStringSlice("pool_accounts"),
		WorkerBin:              v.GetString("worker_bin"),
		PollInterval:           v.GetDuration("poll_interval"),
		BalanceRefreshInterval: v.GetDuration("balance_refresh_interval"),
	}
}
