package bridges

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
	"near-intents/pkg/intents"
	"near-intents/pkg/tokens"
)

type fixedSource struct {
	limits map[string]TokenLimits
	err    error
}

func (f *fixedSource) SupportedTokens(ctx context.Context) (map[string]TokenLimits, error) {
	return f.limits, f.err
}

func populatedCache(t *testing.T, limits map[string]TokenLimits) *Cache {
	t.Helper()
	cache := NewCache(&fixedSource{limits: limits}, nil)
	require.NoError(t, cache.Populate(context.Background()))
	return cache
}

func TestCacheDefaultsPermissive(t *testing.T) {
	cache := populatedCache(t, map[string]TokenLimits{})

	limits := cache.Limits("nep141:unknown.near")
	assert.Equal(t, int64(1), limits.MinWithdrawal.Int64())
	assert.Zero(t, limits.WithdrawalFee.Sign())
}

func TestCacheWaitReadyHonorsAbort(t *testing.T) {
	cache := NewCache(&fixedSource{limits: nil}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cache.WaitReady(ctx), context.Canceled)
}

func TestCachePopulateRetriesAfterFailure(t *testing.T) {
	src := &fixedSource{err: errors.New("bridge down")}
	cache := NewCache(src, nil)

	require.Error(t, cache.Populate(context.Background()))

	src.err = nil
	src.limits = map[string]TokenLimits{}
	require.NoError(t, cache.Populate(context.Background()))
	require.NoError(t, cache.WaitReady(context.Background()))
}

func poaDeployment() tokens.Deployment {
	return tokens.Deployment{Chain: chains.Arbitrum, Address: "0xaf88", Decimals: 6, Bridge: tokens.BridgePoa}
}

func TestEstimateWithdrawalFeePoa(t *testing.T) {
	cache := populatedCache(t, map[string]TokenLimits{
		"nep141:arb.omft.near": {
			MinDeposit:    big.NewInt(1),
			MinWithdrawal: big.NewInt(1_000_000),
			WithdrawalFee: big.NewInt(50_000),
		},
	})
	sdk := NewSDK(cache, nil)

	params := WithdrawalParams{
		AssetID:     "nep141:arb.omft.near",
		Deployment:  poaDeployment(),
		TargetChain: chains.Arbitrum,
		Amount:      amount.FromInt64(10_000_000, 6),
		Route:       RouteDefault,
	}
	est, err := sdk.EstimateWithdrawalFee(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), est.Fee.Value.Int64())

	// Fee swallowing the whole amount returns the estimate as authoritative.
	params.Amount = amount.FromInt64(40_000, 6)
	est, err = sdk.EstimateWithdrawalFee(context.Background(), params)
	var exceeds *ErrFeeExceedsAmount
	require.ErrorAs(t, err, &exceeds)
	assert.Equal(t, int64(50_000), exceeds.Estimate.Fee.Value.Int64())
}

func TestMinWithdrawal(t *testing.T) {
	cache := populatedCache(t, map[string]TokenLimits{
		"nep141:arb.omft.near": {
			MinDeposit:    big.NewInt(1),
			MinWithdrawal: big.NewInt(1_000_000),
			WithdrawalFee: big.NewInt(0),
		},
	})
	sdk := NewSDK(cache, nil)

	// PoA: the registry minimum, at deployment decimals.
	min := sdk.MinWithdrawal("nep141:arb.omft.near", 6, poaDeployment())
	assert.Equal(t, int64(1_000_000), min.Value.Int64())

	// Non-PoA: one atomic unit at the coarser scale.
	dep := tokens.Deployment{Chain: chains.Near, Address: "usdc.near", Decimals: 6, Bridge: tokens.BridgeDirect}
	min = sdk.MinWithdrawal("nep141:usdc.near", 18, dep)
	assert.Equal(t, int64(1), min.Value.Int64())
	assert.Equal(t, uint8(6), min.Decimals)
}

func TestCreateWithdrawalIntentsPoaMemo(t *testing.T) {
	cache := populatedCache(t, map[string]TokenLimits{})
	sdk := NewSDK(cache, nil)

	params := WithdrawalParams{
		AssetID:     "nep141:arb.omft.near",
		Deployment:  poaDeployment(),
		TargetChain: chains.Arbitrum,
		Amount:      amount.FromInt64(5_000_000, 6),
		Destination: "0x32be343b94f860124dc4fee278fdcbd38c102d88",
		Route:       RouteDefault,
	}
	list, err := sdk.CreateWithdrawalIntents(context.Background(), params, FeeEstimation{Fee: amount.Zero(6)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, intents.KindFtWithdraw, list[0].Kind)
	assert.Equal(t, "arb.omft.near", list[0].ReceiverID)
	assert.Equal(t, "WITHDRAW_TO:0x32be343b94f860124dc4fee278fdcbd38c102d88", list[0].Memo)
	assert.Equal(t, "5000000", list[0].Amount)
}

type fixedTrustline struct{ has bool }

func (f fixedTrustline) HasTrustline(ctx context.Context, account, asset string) (bool, error) {
	return f.has, nil
}

func TestCreateWithdrawalIntentsMissingTrustline(t *testing.T) {
	cache := populatedCache(t, map[string]TokenLimits{})
	sdk := NewSDK(cache, fixedTrustline{has: false})

	params := WithdrawalParams{
		AssetID:     "nep141:stellar.omft.near",
		Deployment:  tokens.Deployment{Chain: chains.Stellar, Address: "USDC:G...", Decimals: 7, Bridge: tokens.BridgePoa},
		TargetChain: chains.Stellar,
		Amount:      amount.FromInt64(1_000_000, 7),
		Destination: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
		Route:       RouteDefault,
	}
	_, err := sdk.CreateWithdrawalIntents(context.Background(), params, FeeEstimation{Fee: amount.Zero(7)})
	assert.ErrorIs(t, err, ErrMissingTrustline)
}

func TestSelectRoute(t *testing.T) {
	assert.Equal(t, RouteInternal, SelectRoute(chains.NearIntents, tokens.Deployment{Chain: chains.Near}))
	assert.Equal(t, RouteNearNative, SelectRoute(chains.Near, tokens.Deployment{Chain: chains.Near}))
	assert.Equal(t, RouteVirtualChain, SelectRoute(chains.Aurora, tokens.Deployment{Chain: chains.Aurora, Bridge: tokens.BridgeAuroraEngine}))
	assert.Equal(t, RouteOmni, SelectRoute(chains.Eth, tokens.Deployment{Chain: chains.Eth, Bridge: tokens.BridgeNearOmni}))
	assert.Equal(t, RouteDefault, SelectRoute(chains.Arbitrum, poaDeployment()))
}

func TestSplitByBalance(t *testing.T) {
	balances := map[string]amount.Amount{
		"a": amount.FromInt64(30, 6),
		"b": amount.FromInt64(200, 6),
	}
	splits := SplitByBalance(amount.FromInt64(100, 6), []string{"a", "b", "c"}, balances)
	require.Len(t, splits, 2)
	assert.Equal(t, int64(30), splits["a"].Value.Int64())
	assert.Equal(t, int64(70), splits["b"].Value.Int64())

	// Fully covered by the first asset.
	splits = SplitByBalance(amount.FromInt64(20, 6), []string{"a", "b"}, balances)
	require.Len(t, splits, 1)
	assert.Equal(t, int64(20), splits["a"].Value.Int64())
}
