package strategies

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dex-task-service/internal/events"
	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
	"dex-task-service/internal/store"
	"dex-task-service/pkg/encryption"
)

func setupTestDB(t *testing.T) *gorm.DB {
	testDBFile := "test_strategies.db"
	_ = os.Remove(testDBFile)

	gormDB, err := gorm.Open(sqlite.Open(testDBFile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	err = gormDB.AutoMigrate(&models.Task{}, &models.TaskStats{}, &models.WalletGroup{}, &models.Wallet{})
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return gormDB
}

func teardownTestDB(gormDB *gorm.DB, t *testing.T) {
	sqlDB, err := gormDB.DB()
	if err == nil {
		if err = sqlDB.Close(); err != nil {
			t.Logf("Warning: could not close test DB: %v", err)
		}
	}
	if err = os.Remove("test_strategies.db"); err != nil && !os.IsNotExist(err) {
		t.Logf("Warning: could not remove test DB file: %v", err)
	}
}

// rpcTestServer answers the handful of RPC methods strategies touch.
func rpcTestServer(t *testing.T) *httptest.Server {
	return rpcTestServerWithAccounts(t, nil)
}

// rpcTestServerWithAccounts serves the given base64 account data per address.
// Addresses outside the map get a plain system account with 0.05 SOL. The map
// may be filled after the server starts.
func rpcTestServerWithAccounts(t *testing.T, accountData map[string]string) *httptest.Server {
	t.Helper()
	blockhashKey, err := solana.GenerateKeypair()
	require.NoError(t, err)
	blockhash := blockhashKey.Address()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "getLatestBlockhash":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"%s"}}}`, blockhash)
		case "sendTransaction":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"5igRuq4vom2SoJ1Dw9hZqEsmykTDoyWiKKugpMVgVoju"}`)
		case "getMultipleAccounts":
			addrs := req.Params[0].([]any)
			out := `{"jsonrpc":"2.0","id":1,"result":{"value":[`
			for i, addr := range addrs {
				if i > 0 {
					out += ","
				}
				if data, ok := accountData[addr.(string)]; ok {
					out += fmt.Sprintf(`{"lamports":2039280,"data":["%s","base64"]}`, data)
				} else {
					out += `{"lamports":50000000,"data":["","base64"]}`
				}
			}
			out += `]}}`
			fmt.Fprint(w, out)
		default:
			t.Fatalf("unexpected rpc method %s", req.Method)
		}
	}))
}

// mintAccountData builds SPL mint data with the given decimals.
func mintAccountData(decimals uint8) string {
	raw := make([]byte, 82)
	raw[44] = decimals
	return base64.StdEncoding.EncodeToString(raw)
}

// tokenAccountData builds SPL token account data holding amount raw units.
func tokenAccountData(amount uint64) string {
	raw := make([]byte, 165)
	binary.LittleEndian.PutUint64(raw[64:72], amount)
	return base64.StdEncoding.EncodeToString(raw)
}

// fakeDex counts calls and optionally fails everything.
type fakeDex struct {
	buys        int
	sells       int
	sellAmounts []float64
	failAll     bool
}

func (d *fakeDex) Name() string { return "FAKE" }
func (d *fakeDex) Buy(ctx context.Context, wallet *solana.Keypair, solAmount float64) (string, error) {
	if d.failAll {
		return "", fmt.Errorf("pool unavailable")
	}
	d.buys++
	return "buy-tx", nil
}
func (d *fakeDex) Sell(ctx context.Context, wallet *solana.Keypair, tokenAmount float64) (string, error) {
	if d.failAll {
		return "", fmt.Errorf("pool unavailable")
	}
	d.sells++
	d.sellAmounts = append(d.sellAmounts, tokenAmount)
	return "sell-tx", nil
}
func (d *fakeDex) Price(ctx context.Context) (float64, error) { return 0.001, nil }
func (d *fakeDex) QuoteTokensForSol(ctx context.Context, solAmount float64) (float64, error) {
	return solAmount / 0.001, nil
}

// fakeBundler captures submitted bundles.
type fakeBundler struct {
	bundles [][]string
}

func (b *fakeBundler) SendBundle(ctx context.Context, transactions []string) (string, error) {
	b.bundles = append(b.bundles, transactions)
	return fmt.Sprintf("bundle-%d", len(b.bundles)), nil
}

// captureWriter collects published trade events instead of sending them.
type captureWriter struct {
	events []events.TradeExecutedPayload
}

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		var payload events.TradeExecutedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			return err
		}
		c.events = append(c.events, payload)
	}
	return nil
}

func (c *captureWriter) successes() int {
	n := 0
	for _, e := range c.events {
		if e.Success {
			n++
		}
	}
	return n
}

func testEnv(t *testing.T, gormDB *gorm.DB, rpcURL string) (*Env, *store.WalletStore, *store.TaskStore) {
	cipher, err := encryption.NewCipher("strategies-test-secret")
	require.NoError(t, err)
	wallets := store.NewWalletStore(gormDB, cipher)
	tasks := store.NewTaskStore(gormDB)
	env := &Env{
		Tasks:     tasks,
		Wallets:   wallets,
		RPC:       solana.NewClient(rpcURL),
		Sleep:     func(time.Duration) {},
		TokenMint: solana.WrappedSolMint.String(),
	}
	return env, wallets, tasks
}

func TestTradeWeights(t *testing.T) {
	cases := []struct {
		bias      float64
		buy, sell float64
	}{
		{0, 0.5, 0.5},
		{1, 1, 0},
		{-1, 0, 1},
		{0.3, 0.65, 0.35},
	}
	for _, c := range cases {
		buy, sell := tradeWeights(c.bias)
		assert.InDelta(t, c.buy, buy, 1e-9, "bias=%v", c.bias)
		assert.InDelta(t, c.sell, sell, 1e-9, "bias=%v", c.bias)
		assert.InDelta(t, 1.0, buy+sell, 1e-9, "weights must sum to one")
	}
}

func TestSplitVolumeIntoAmounts(t *testing.T) {
	for i := 0; i < 100; i++ {
		amounts := splitVolumeIntoAmounts(10, 5)
		require.Len(t, amounts, 5, "every planned slot gets an amount")

		var sum float64
		for _, a := range amounts {
			assert.GreaterOrEqual(t, a, 0.0)
			assert.LessOrEqual(t, a, 10.0/5*1.2+1e-9, "amount exceeds jitter ceiling")
			sum += a
		}
		assert.LessOrEqual(t, sum, 10.0+1e-9)
	}

	assert.Empty(t, splitVolumeIntoAmounts(0, 5))
	assert.Empty(t, splitVolumeIntoAmounts(-1, 5))
	assert.Empty(t, splitVolumeIntoAmounts(10, 0))
}

func TestPlanCycle(t *testing.T) {
	cfg := models.VolumeContext{Bias: 0.4, VolumePerMinute: 12, TradesPerCycle: 6}
	for i := 0; i < 50; i++ {
		trades := planCycle(cfg)
		require.Len(t, trades, cfg.TradesPerCycle)

		var buys int
		for _, trade := range trades {
			if trade.kind == tradeBuy {
				buys++
			}
		}
		assert.GreaterOrEqual(t, buys, 1, "every cycle holds at least one buy")
	}

	// Full sell bias still plans sells only from the sell budget.
	allSell := planCycle(models.VolumeContext{Bias: -1, VolumePerMinute: 12, TradesPerCycle: 4})
	for _, trade := range allSell {
		assert.Equal(t, tradeSell, trade.kind)
	}
}

func TestVolumeTradeIsolation(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	failing := &fakeDex{failAll: true}
	env.Dex = failing
	cw := &captureWriter{}
	env.Writer = cw

	group, err := wallets.CreateGroup("traders", 2)
	require.NoError(t, err)
	members, err := wallets.Wallets(group.ID)
	require.NoError(t, err)
	require.NoError(t, wallets.UpdateBalances(group.ID, members, []float64{10, 10}, []float64{100000, 100000}))

	task, err := tasks.Create(models.TaskTypeVolume, "VOLUME-1", "{}")
	require.NoError(t, err)

	s := &VolumeStrategy{}
	cfg := models.VolumeContext{Bias: 0, VolumePerMinute: 3, TradesPerCycle: 3, WalletGroupID: fmt.Sprint(group.ID)}

	// Every trade fails, yet the cycle completes and every failure is
	// published for the manager to record.
	s.runCycle(context.Background(), env, task, cfg, group.ID)

	require.NotEmpty(t, cw.events)
	for _, e := range cw.events {
		assert.False(t, e.Success)
		assert.NotEmpty(t, e.Error)
	}

	// Stats stay untouched here: the manager's event consumer is the only
	// writer, so a trade is never counted twice.
	stats, err := tasks.Stats(task.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.SuccessCount)
	assert.Zero(t, stats.ErrorCount)
}

func TestVolumeCycleTrades(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	d := &fakeDex{}
	env.Dex = d
	cw := &captureWriter{}
	env.Writer = cw

	group, err := wallets.CreateGroup("traders", 3)
	require.NoError(t, err)
	members, err := wallets.Wallets(group.ID)
	require.NoError(t, err)
	require.NoError(t, wallets.UpdateBalances(group.ID, members, []float64{10, 10, 10}, []float64{100000, 100000, 100000}))

	task, err := tasks.Create(models.TaskTypeVolume, "VOLUME-1", "{}")
	require.NoError(t, err)

	s := &VolumeStrategy{}
	cfg := models.VolumeContext{Bias: 1, VolumePerMinute: 5, TradesPerCycle: 4, WalletGroupID: fmt.Sprint(group.ID)}
	s.runCycle(context.Background(), env, task, cfg, group.ID)

	assert.Greater(t, d.buys, 0)
	assert.Zero(t, d.sells, "full buy bias plans no sells")
	assert.Equal(t, d.buys, cw.successes(), "one event per executed trade")
}

func TestVolumeSkipsWhenNoEligibleWallet(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	d := &fakeDex{}
	env.Dex = d
	cw := &captureWriter{}
	env.Writer = cw

	// Freshly generated wallets carry zero balances, so nothing is eligible.
	group, err := wallets.CreateGroup("broke", 2)
	require.NoError(t, err)

	task, err := tasks.Create(models.TaskTypeVolume, "VOLUME-1", "{}")
	require.NoError(t, err)

	s := &VolumeStrategy{}
	cfg := models.VolumeContext{Bias: 0, VolumePerMinute: 3, TradesPerCycle: 3, WalletGroupID: fmt.Sprint(group.ID)}
	s.runCycle(context.Background(), env, task, cfg, group.ID)

	assert.Zero(t, d.buys)
	assert.Zero(t, d.sells)
	assert.Empty(t, cw.events, "skipped trades emit no events")
}

func TestHolderSinglePass(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	d := &fakeDex{}
	env.Dex = d

	masterGroup, err := wallets.CreateGroup("master", 1)
	require.NoError(t, err)
	masters, err := wallets.Wallets(masterGroup.ID)
	require.NoError(t, err)

	group, err := wallets.CreateGroup("holders", 3)
	require.NoError(t, err)

	contextJSON := fmt.Sprintf(`{"masterWalletAddress":"%s","minAmountToBuy":0.01,"maxAmountToBuy":0.05,"walletGroupId":"%d"}`,
		masters[0].Address, group.ID)
	task, err := tasks.Create(models.TaskTypeHolder, "HOLDER-1", contextJSON)
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusRunning))

	require.NoError(t, Execute(context.Background(), env, task.ID))

	assert.Equal(t, 3, d.buys, "one buy per wallet")
	assert.Zero(t, d.sells, "holder never sells")

	done, err := tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
}

func TestMakerSellsSettledTokenBalance(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	// Filled below once wallet addresses exist; the handler reads it lazily.
	accountData := map[string]string{}
	server := rpcTestServerWithAccounts(t, accountData)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	d := &fakeDex{}
	env.Dex = d

	masterGroup, err := wallets.CreateGroup("master", 1)
	require.NoError(t, err)
	masters, err := wallets.Wallets(masterGroup.ID)
	require.NoError(t, err)

	group, err := wallets.CreateGroup("makers", 1)
	require.NoError(t, err)
	members, err := wallets.Wallets(group.ID)
	require.NoError(t, err)

	// The wallet's token account settles into a balance the quote would
	// never predict: 123.456789 tokens at 6 decimals.
	owner, err := solana.PublicKeyFromBase58(members[0].Address)
	require.NoError(t, err)
	ata, err := solana.AssociatedTokenAddress(owner, solana.WrappedSolMint)
	require.NoError(t, err)
	accountData[env.TokenMint] = mintAccountData(6)
	accountData[ata.String()] = tokenAccountData(123_456_789)

	task, err := tasks.Create(models.TaskTypeMaker, "MAKER-1", "{}")
	require.NoError(t, err)

	cfg := models.BuyRangeContext{
		MasterWalletAddress: masters[0].Address,
		MinAmountToBuy:      0.02,
		MaxAmountToBuy:      0.02,
		WalletGroupID:       fmt.Sprint(group.ID),
	}
	require.NoError(t, runBuyRangePass(context.Background(), env, task, cfg, true))

	require.Len(t, d.sellAmounts, 1)
	assert.InDelta(t, 123.456789, d.sellAmounts[0], 1e-9,
		"sell must move the settled balance, not the pre-buy quote")
}

func TestExecuteRejectsFinishedTask(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	env, _, tasks := testEnv(t, gormDB, "http://unused.invalid")
	task, err := tasks.Create(models.TaskTypeVolume, "VOLUME-1", "{}")
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusCompleted))

	err = Execute(context.Background(), env, task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already COMPLETED")
}

func TestExecuteMarksFailureWithReason(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	env, _, tasks := testEnv(t, gormDB, "http://unused.invalid")
	// Context names a wallet group that does not exist.
	task, err := tasks.Create(models.TaskTypeSweep, "SWEEP-1",
		`{"masterWalletAddress":"nobody","walletGroupId":"404"}`)
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusRunning))

	require.Error(t, Execute(context.Background(), env, task.ID))

	failed, err := tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.FailureReason)
}

func TestMixerReserves(t *testing.T) {
	assert.InDelta(t, 0.005, mixerReserves(), 1e-12)
}

// fundLamports pulls the u64 lamport amount off the tail of a serialized
// system transfer transaction.
func fundLamports(t *testing.T, rawBase58 string) uint64 {
	raw, err := base58.Decode(rawBase58)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	return binary.LittleEndian.Uint64(raw[len(raw)-8:])
}

func TestMixerDeliversAtomicPairs(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	b := &fakeBundler{}
	env.Bundler = b

	masterGroup, err := wallets.CreateGroup("master", 1)
	require.NoError(t, err)
	masters, err := wallets.Wallets(masterGroup.ID)
	require.NoError(t, err)

	group, err := wallets.CreateGroup("recipients", 3)
	require.NoError(t, err)

	contextJSON := fmt.Sprintf(`{"masterWalletAddress":"%s","amountPerWallet":0.1,"walletGroupId":"%d"}`,
		masters[0].Address, group.ID)
	task, err := tasks.Create(models.TaskTypeMixer, "MIXER-1", contextJSON)
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusRunning))

	require.NoError(t, Execute(context.Background(), env, task.ID))

	require.Len(t, b.bundles, 3, "one bundle per destination wallet")
	for _, bundle := range b.bundles {
		require.Len(t, bundle, 2, "funding and delivery legs travel together")
		// The funding leg carries the delivery amount plus all reserves.
		assert.Equal(t, solana.SolToLamports(0.1+0.005), fundLamports(t, bundle[0]))
	}

	// The intermediary group survives the run so residual dust stays
	// recoverable, but the MIXER prefix keeps it out of balance refreshes.
	groups, err := wallets.ListGroups()
	require.NoError(t, err)
	var scratchGroups int
	for _, g := range groups {
		if strings.HasPrefix(g.Name, models.MixerGroupNamePrefix) {
			scratchGroups++
		}
	}
	assert.Equal(t, 1, scratchGroups)

	done, err := tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
}

func TestMixerAbortsOnFirstFailure(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)
	env.Bundler = &failingBundler{}

	masterGroup, err := wallets.CreateGroup("master", 1)
	require.NoError(t, err)
	masters, err := wallets.Wallets(masterGroup.ID)
	require.NoError(t, err)
	group, err := wallets.CreateGroup("recipients", 2)
	require.NoError(t, err)

	contextJSON := fmt.Sprintf(`{"masterWalletAddress":"%s","amountPerWallet":0.1,"walletGroupId":"%d"}`,
		masters[0].Address, group.ID)
	task, err := tasks.Create(models.TaskTypeMixer, "MIXER-1", contextJSON)
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusRunning))

	require.Error(t, Execute(context.Background(), env, task.ID))

	failed, err := tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Contains(t, failed.FailureReason, "relay down")
}

type failingBundler struct{}

func (failingBundler) SendBundle(ctx context.Context, transactions []string) (string, error) {
	return "", fmt.Errorf("relay down")
}

func TestSweepCoversAllWallets(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)
	server := rpcTestServer(t)
	defer server.Close()

	env, wallets, tasks := testEnv(t, gormDB, server.URL)

	masterGroup, err := wallets.CreateGroup("master", 1)
	require.NoError(t, err)
	masters, err := wallets.Wallets(masterGroup.ID)
	require.NoError(t, err)
	group, err := wallets.CreateGroup("spent", 2)
	require.NoError(t, err)

	contextJSON := fmt.Sprintf(`{"masterWalletAddress":"%s","walletGroupId":"%d"}`,
		masters[0].Address, group.ID)
	task, err := tasks.Create(models.TaskTypeSweep, "SWEEP-1", contextJSON)
	require.NoError(t, err)
	require.NoError(t, tasks.SetStatus(task.ID, models.TaskStatusRunning))

	require.NoError(t, Execute(context.Background(), env, task.ID))

	done, err := tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
}

func TestStrategyRegistryCoversAllTypes(t *testing.T) {
	for _, taskType := range models.TaskTypes {
		_, err := Get(taskType)
		assert.NoError(t, err, "type %s must have a strategy", taskType)
	}
	_, err := Get(models.TaskType("ARBITRAGE"))
	assert.Error(t, err)
	assert.Len(t, Names(), len(models.TaskTypes))
}
