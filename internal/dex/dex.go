package dex

import (
	"context"
	"fmt"

	"dex-task-service/internal/solana"
)

// Dex executes swaps against one pool of a decentralized exchange.
type Dex interface {
	Name() string
	// Buy swaps solAmount SOL into the pool token from the wallet.
	Buy(ctx context.Context, wallet *solana.Keypair, solAmount float64) (string, error)
	// Sell swaps tokenAmount token units back into SOL from the wallet.
	Sell(ctx context.Context, wallet *solana.Keypair, tokenAmount float64) (string, error)
	// Price returns the pool's current token price in SOL.
	Price(ctx context.Context) (float64, error)
	// QuoteTokensForSol converts a SOL amount to token units at the current
	// price.
	QuoteTokensForSol(ctx context.Context, solAmount float64) (float64, error)
}

// Config selects the pool an adapter trades against.
type Config struct {
	TokenMint   string
	PoolAddress string
	// PoolAccounts is the ordered account list the pool program's swap
	// instruction expects after the signer and token accounts.
	PoolAccounts []string
}

// Factory builds a Dex adapter bound to an RPC client and pool config.
type Factory func(client *solana.Client, cfg Config) (Dex, error)

var registry = map[string]Factory{}

// Register adds a named adapter factory. Called from adapter init functions.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New builds the adapter registered under name.
func New(name string, client *solana.Client, cfg Config) (Dex, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown dex %q", name)
	}
	return factory(client, cfg)
}

// Names lists the registered adapter names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
