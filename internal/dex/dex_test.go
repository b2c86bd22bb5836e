package dex

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-task-service/internal/solana"
)

func newTestMintAndPool(t *testing.T) (string, string) {
	t.Helper()
	mint, err := solana.GenerateKeypair()
	require.NoError(t, err)
	pool, err := solana.GenerateKeypair()
	require.NoError(t, err)
	return mint.Address(), pool.Address()
}

// poolStateData builds a pool state account with the given sqrt price in
// Q64.64 fixed point.
func poolStateData(sqrtPrice float64) string {
	data := make([]byte, sqrtPriceOffset+16)
	hi := uint64(sqrtPrice)
	lo := uint64((sqrtPrice - float64(hi)) * math.Pow(2, 64))
	binary.LittleEndian.PutUint64(data[sqrtPriceOffset:], lo)
	binary.LittleEndian.PutUint64(data[sqrtPriceOffset+8:], hi)
	return base64.StdEncoding.EncodeToString(data)
}

// mintData builds a mint account reporting the given decimal count.
func mintData(decimals byte) string {
	data := make([]byte, 82)
	data[44] = decimals
	return base64.StdEncoding.EncodeToString(data)
}

func poolServer(t *testing.T, mint, pool string, decimals byte, sqrtPrice float64, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getMultipleAccounts", req.Method)

		addrs := req.Params[0].([]any)
		*calls++
		values := make([]string, 0, len(addrs))
		for _, a := range addrs {
			switch a.(string) {
			case mint:
				values = append(values, fmt.Sprintf(`{"lamports":1,"data":["%s","base64"]}`, mintData(decimals)))
			case pool:
				values = append(values, fmt.Sprintf(`{"lamports":1,"data":["%s","base64"]}`, poolStateData(sqrtPrice)))
			default:
				values = append(values, "null")
			}
		}
		out := `{"jsonrpc":"2.0","id":1,"result":{"value":[`
		for i, v := range values {
			if i > 0 {
				out += ","
			}
			out += v
		}
		out += `]}}`
		_, _ = w.Write([]byte(out))
	}))
}

func TestNewUnknownDex(t *testing.T) {
	_, err := New("UNKNOWN_DEX", solana.NewClient("http://unused.invalid"), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dex")
}

func TestRegistryHasRaydiumCLMM(t *testing.T) {
	assert.Contains(t, Names(), RaydiumCLMMName)
}

func TestPriceFromPoolState(t *testing.T) {
	mint, pool := newTestMintAndPool(t)
	calls := 0
	// sqrt price 2.0 and equal decimals: price = 4 SOL per token.
	server := poolServer(t, mint, pool, 9, 2.0, &calls)
	defer server.Close()

	adapter, err := New(RaydiumCLMMName, solana.NewClient(server.URL), Config{
		TokenMint:   mint,
		PoolAddress: pool,
	})
	require.NoError(t, err)

	price, err := adapter.Price(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4.0, price, 1e-6)

	quote, err := adapter.QuoteTokensForSol(context.Background(), 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, quote, 1e-6)
}

func TestPriceAppliesDecimalScale(t *testing.T) {
	mint, pool := newTestMintAndPool(t)
	calls := 0
	// 6-decimal token: raw price scales down by 10^(6-9).
	server := poolServer(t, mint, pool, 6, 1.0, &calls)
	defer server.Close()

	adapter, err := New(RaydiumCLMMName, solana.NewClient(server.URL), Config{
		TokenMint:   mint,
		PoolAddress: pool,
	})
	require.NoError(t, err)

	price, err := adapter.Price(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, price, 1e-9)
}

func TestBuyRejectsNonPositiveAmount(t *testing.T) {
	mint, pool := newTestMintAndPool(t)
	adapter, err := New(RaydiumCLMMName, solana.NewClient("http://unused.invalid"), Config{
		TokenMint:   mint,
		PoolAddress: pool,
	})
	require.NoError(t, err)

	wallet, err := solana.GenerateKeypair()
	require.NoError(t, err)

	_, err = adapter.Buy(context.Background(), wallet, 0)
	assert.Error(t, err)
	_, err = adapter.Sell(context.Background(), wallet, -1)
	assert.Error(t, err)
}

func TestSwapInstructionEncoding(t *testing.T) {
	mint, pool := newTestMintAndPool(t)
	extra, err := solana.GenerateKeypair()
	require.NoError(t, err)

	adapter, err := New(RaydiumCLMMName, solana.NewClient("http://unused.invalid"), Config{
		TokenMint:    mint,
		PoolAddress:  pool,
		PoolAccounts: []string{extra.Address()},
	})
	require.NoError(t, err)
	clmm := adapter.(*raydiumCLMM)

	owner, err := solana.GenerateKeypair()
	require.NoError(t, err)
	input, err := solana.AssociatedTokenAddress(owner.PublicKey(), solana.WrappedSolMint)
	require.NoError(t, err)
	output, err := solana.AssociatedTokenAddress(owner.PublicKey(), clmm.mint)
	require.NoError(t, err)

	ix := clmm.swapInstruction(owner.PublicKey(), input, output, 123456)
	assert.Equal(t, swapDiscriminator, ix.Data[:8])
	assert.EqualValues(t, 123456, binary.LittleEndian.Uint64(ix.Data[8:16]))
	assert.Equal(t, byte(1), ix.Data[len(ix.Data)-1], "is_base_input")

	// Signer first, configured extras next, then pool and token accounts.
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.Equal(t, extra.Address(), ix.Accounts[1].PublicKey.String())
	assert.Equal(t, pool, ix.Accounts[2].PublicKey.String())
	assert.Equal(t, solana.TokenProgramID, ix.Accounts[len(ix.Accounts)-1].PublicKey)
}
