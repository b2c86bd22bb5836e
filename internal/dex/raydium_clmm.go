package dex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"dex-task-service/internal/solana"
)

// RaydiumCLMMName is the registry key of the Raydium concentrated-liquidity
// adapter.
const RaydiumCLMMName = "RAYDIUM_CLMM"

// raydiumCLMMProgram is the mainnet CLMM program id.
const raydiumCLMMProgram = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

// Anchor discriminator of the swap instruction.
var swapDiscriminator = []byte{248, 198, 158, 145, 225, 117, 135, 200}

// sqrtPriceOffset locates sqrt_price_x64 inside the CLMM pool state account.
const sqrtPriceOffset = 253

const priceCacheTTL = 2 * time.Second

func init() {
	Register(RaydiumCLMMName, newRaydiumCLMM)
}

type raydiumCLMM struct {
	client *solana.Client
	cfg    Config

	program    solana.PublicKey
	mint       solana.PublicKey
	pool       solana.PublicKey
	poolExtras []solana.PublicKey

	priceCache *ristretto.Cache[string, float64]
}

func newRaydiumCLMM(client *solana.Client, cfg Config) (Dex, error) {
	program, err := solana.PublicKeyFromBase58(raydiumCLMMProgram)
	if err != nil {
		return nil, err
	}
	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("token mint: %w", err)
	}
	pool, err := solana.PublicKeyFromBase58(cfg.PoolAddress)
	if err != nil {
		return nil, fmt.Errorf("pool address: %w", err)
	}
	extras := make([]solana.PublicKey, 0, len(cfg.PoolAccounts))
	for _, addr := range cfg.PoolAccounts {
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("pool account %s: %w", addr, err)
		}
		extras = append(extras, key)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, float64]{
		NumCounters: 64,
		MaxCost:     16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("price cache: %w", err)
	}
	return &raydiumCLMM{
		client:     client,
		cfg:        cfg,
		program:    program,
		mint:       mint,
		pool:       pool,
		poolExtras: extras,
		priceCache: cache,
	}, nil
}

func (d *raydiumCLMM) Name() string { return RaydiumCLMMName }

// Price reads sqrt_price_x64 from the pool state and squares it out of Q64.64
// fixed point. Cached briefly so trade loops don't hammer the RPC node.
func (d *raydiumCLMM) Price(ctx context.Context) (float64, error) {
	if price, ok := d.priceCache.Get(d.cfg.PoolAddress); ok {
		return price, nil
	}
	data, err := d.client.GetAccountData(ctx, d.cfg.PoolAddress)
	if err != nil {
		return 0, fmt.Errorf("read pool state: %w", err)
	}
	if len(data) < sqrtPriceOffset+16 {
		return 0, fmt.Errorf("pool state too short: %d bytes", len(data))
	}
	lo := binary.LittleEndian.Uint64(data[sqrtPriceOffset : sqrtPriceOffset+8])
	hi := binary.LittleEndian.Uint64(data[sqrtPriceOffset+8 : sqrtPriceOffset+16])
	sqrtPrice := (float64(hi)*math.Pow(2, 64) + float64(lo)) / math.Pow(2, 64)
	price := sqrtPrice * sqrtPrice

	decimals, err := d.client.MintDecimals(ctx, d.cfg.TokenMint)
	if err != nil {
		return 0, err
	}
	// Token amounts carry `decimals` places against SOL's 9.
	price *= math.Pow(10, float64(decimals)-9)
	if price <= 0 {
		return 0, fmt.Errorf("pool reports non-positive price")
	}
	d.priceCache.SetWithTTL(d.cfg.PoolAddress, price, 1, priceCacheTTL)
	return price, nil
}

func (d *raydiumCLMM) QuoteTokensForSol(ctx context.Context, solAmount float64) (float64, error) {
	price, err := d.Price(ctx)
	if err != nil {
		return 0, err
	}
	return solAmount / price, nil
}

// Buy wraps solAmount into WSOL and swaps it for the pool token.
func (d *raydiumCLMM) Buy(ctx context.Context, wallet *solana.Keypair, solAmount float64) (string, error) {
	if solAmount <= 0 {
		return "", fmt.Errorf("buy amount must be positive, got %v", solAmount)
	}
	owner := wallet.PublicKey()
	wsolAccount, err := solana.AssociatedTokenAddress(owner, solana.WrappedSolMint)
	if err != nil {
		return "", err
	}
	tokenAccount, err := solana.AssociatedTokenAddress(owner, d.mint)
	if err != nil {
		return "", err
	}
	lamports := solana.SolToLamports(solAmount)

	instructions := []solana.Instruction{
		solana.NewCreateAssociatedTokenAccountInstruction(owner, wsolAccount, owner, solana.WrappedSolMint),
		solana.NewCreateAssociatedTokenAccountInstruction(owner, tokenAccount, owner, d.mint),
		solana.NewTransferInstruction(owner, wsolAccount, lamports),
		solana.NewSyncNativeInstruction(wsolAccount),
		d.swapInstruction(owner, wsolAccount, tokenAccount, lamports),
		solana.NewCloseAccountInstruction(wsolAccount, owner, owner),
	}
	return d.send(ctx, wallet, instructions)
}

// Sell swaps tokenAmount token units back into SOL.
func (d *raydiumCLMM) Sell(ctx context.Context, wallet *solana.Keypair, tokenAmount float64) (string, error) {
	if tokenAmount <= 0 {
		return "", fmt.Errorf("sell amount must be positive, got %v", tokenAmount)
	}
	decimals, err := d.client.MintDecimals(ctx, d.cfg.TokenMint)
	if err != nil {
		return "", err
	}
	rawAmount := uint64(tokenAmount * math.Pow(10, float64(decimals)))

	owner := wallet.PublicKey()
	wsolAccount, err := solana.AssociatedTokenAddress(owner, solana.WrappedSolMint)
	if err != nil {
		return "", err
	}
	tokenAccount, err := solana.AssociatedTokenAddress(owner, d.mint)
	if err != nil {
		return "", err
	}

	instructions := []solana.Instruction{
		solana.NewCreateAssociatedTokenAccountInstruction(owner, wsolAccount, owner, solana.WrappedSolMint),
		d.swapInstruction(owner, tokenAccount, wsolAccount, rawAmount),
		solana.NewCloseAccountInstruction(wsolAccount, owner, owner),
	}
	return d.send(ctx, wallet, instructions)
}

// swapInstruction encodes an exact-input swap. The operator-configured pool
// account list supplies the config, vault, observation and tick-array
// accounts in the order the program expects.
func (d *raydiumCLMM) swapInstruction(owner, input, output solana.PublicKey, amountIn uint64) solana.Instruction {
	data := make([]byte, 0, 8+8+8+16+1)
	data = append(data, swapDiscriminator...)
	data = binary.LittleEndian.AppendUint64(data, amountIn)
	data = binary.LittleEndian.AppendUint64(data, 0) // other_amount_threshold
	data = append(data, make([]byte, 16)...)         // sqrt_price_limit_x64: none
	data = append(data, 1)                           // is_base_input

	accounts := []solana.AccountMeta{
		{PublicKey: owner, IsSigner: true, IsWritable: true},
	}
	for _, key := range d.poolExtras {
		accounts = append(accounts, solana.AccountMeta{PublicKey: key, IsWritable: true})
	}
	accounts = append(accounts,
		solana.AccountMeta{PublicKey: d.pool, IsWritable: true},
		solana.AccountMeta{PublicKey: input, IsWritable: true},
		solana.AccountMeta{PublicKey: output, IsWritable: true},
		solana.AccountMeta{PublicKey: solana.TokenProgramID},
	)
	return solana.Instruction{ProgramID: d.program, Accounts: accounts, Data: data}
}

func (d *raydiumCLMM) send(ctx context.Context, wallet *solana.Keypair, instructions []solana.Instruction) (string, error) {
	blockhash, err := d.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, wallet.PublicKey())
	if err != nil {
		return "", err
	}
	if err := tx.Sign(wallet); err != nil {
		return "", err
	}
	raw, err := tx.SerializeBase58()
	if err != nil {
		return "", err
	}
	return d.client.SendTransaction(ctx, raw)
}
