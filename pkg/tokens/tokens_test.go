package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
)

func usdcFamily() (UnifiedToken, Families) {
	sol := BaseToken{
		AssetID: "nep141:sol.usdc", Symbol: "USDC", Decimals: 6,
		OriginChain: chains.Solana, FamilyID: "USDC",
		Deployments: []Deployment{{Chain: chains.Solana, Address: "EPjF...", Decimals: 6, Bridge: BridgePoa}},
	}
	near := BaseToken{
		AssetID: "nep141:near.usdc", Symbol: "USDC", Decimals: 6,
		OriginChain: chains.Near, FamilyID: "USDC",
		Deployments: []Deployment{{Chain: chains.Near, Address: "usdc.near", Decimals: 6, Bridge: BridgeDirect}},
	}
	arb := BaseToken{
		AssetID: "nep141:arb.usdc", Symbol: "USDC", Decimals: 6,
		OriginChain: chains.Arbitrum, FamilyID: "USDC",
		Deployments: []Deployment{{Chain: chains.Arbitrum, Address: "0xaf88", Decimals: 6, Bridge: BridgePoa}},
	}
	unified := UnifiedToken{ID: "unified:usdc", Symbol: "USDC", FamilyID: "USDC", Tokens: []BaseToken{sol, near, arb}}
	fams := Families{"USDC": {sol, near, arb}}
	return unified, fams
}

func TestResolveTokenOutByFamily(t *testing.T) {
	unified, fams := usdcFamily()

	out, dep, err := ResolveTokenOut(chains.Arbitrum, unified, fams)
	require.NoError(t, err)
	assert.Equal(t, chains.Arbitrum, out.OriginChain)
	assert.Equal(t, "USDC", out.FamilyID)
	assert.Equal(t, chains.Arbitrum, dep.Chain)
}

func TestResolveTokenOutNearIntents(t *testing.T) {
	unified, fams := usdcFamily()

	// A base token passes through unchanged.
	base := unified.Tokens[0]
	out, _, err := ResolveTokenOut(chains.NearIntents, base, fams)
	require.NoError(t, err)
	assert.Equal(t, base.AssetID, out.AssetID)

	// A unified token yields a representative member of its group.
	out, _, err = ResolveTokenOut(chains.NearIntents, unified, fams)
	require.NoError(t, err)
	assert.Equal(t, unified.Tokens[0].AssetID, out.AssetID)
}

func TestResolveTokenOutNoMatch(t *testing.T) {
	unified, fams := usdcFamily()

	_, _, err := ResolveTokenOut(chains.Ton, unified, fams)
	require.Error(t, err)
	var noMatch *ErrNoCorrespondingToken
	assert.ErrorAs(t, err, &noMatch)
	assert.Equal(t, chains.Ton, noMatch.Chain)
}

func TestResolveTokenOutHyperliquid(t *testing.T) {
	unified, fams := usdcFamily()

	// USDC routes through eth for hyperliquid; no eth deployment here, so
	// resolution fails loudly rather than guessing.
	_, _, err := ResolveTokenOut(chains.Hyperliquid, unified, fams)
	assert.Error(t, err)

	eth := BaseToken{
		AssetID: "nep141:eth.usdc", Symbol: "USDC", Decimals: 6,
		OriginChain: chains.Eth, FamilyID: "USDC",
		Deployments: []Deployment{{Chain: chains.Eth, Address: "0xa0b8", Decimals: 6, Bridge: BridgePoa}},
	}
	fams["USDC"] = append(fams["USDC"], eth)
	out, _, err := ResolveTokenOut(chains.Hyperliquid, unified, fams)
	require.NoError(t, err)
	assert.Equal(t, chains.Eth, out.OriginChain)
}

func TestTotalBalance(t *testing.T) {
	unified, _ := usdcFamily()
	balances := map[string]amount.Amount{
		"nep141:sol.usdc":  amount.FromInt64(30_000_000, 6),
		"nep141:near.usdc": amount.FromInt64(200_000_000, 6),
	}

	total, ok := TotalBalance(unified, balances)
	require.True(t, ok)
	assert.Zero(t, amount.Cmp(total, amount.FromInt64(230_000_000, 6)))

	_, ok = TotalBalance(unified, map[string]amount.Amount{})
	assert.False(t, ok)
}

func TestBuildCatalogRejectsConflictingDuplicates(t *testing.T) {
	entries := []CatalogEntry{
		{AssetID: "nep141:usdt", Symbol: "USDT", Decimals: 6, Blockchain: "near"},
		{AssetID: "nep141:usdt", Symbol: "USDT", Decimals: 18, Blockchain: "near"},
	}
	_, err := BuildCatalog(entries)
	assert.ErrorContains(t, err, "conflicting decimals")
}

func TestBuildCatalogGroupsFamilies(t *testing.T) {
	entries := []CatalogEntry{
		{AssetID: "nep141:sol.usdc", Symbol: "USDC", Decimals: 6, Blockchain: "solana", Bridge: BridgePoa},
		{AssetID: "nep141:near.usdc", Symbol: "USDC", Decimals: 6, Blockchain: "near"},
		{AssetID: "nep141:wrap.near", Symbol: "NEAR", Decimals: 24, Blockchain: "near"},
	}
	cat, err := BuildCatalog(entries)
	require.NoError(t, err)

	tok, ok := cat.Lookup("usdc")
	require.True(t, ok)
	_, isUnified := tok.(UnifiedToken)
	assert.True(t, isUnified)
	assert.Len(t, tok.Underlying(), 2)

	tok, ok = cat.Lookup("NEAR")
	require.True(t, ok)
	_, isBase := tok.(BaseToken)
	assert.True(t, isBase)

	base, ok := cat.LookupOnChain("USDC", "solana")
	require.True(t, ok)
	assert.Equal(t, BridgePoa, base.Deployments[0].Bridge)
}
