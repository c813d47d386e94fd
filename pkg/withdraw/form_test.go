package withdraw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
	"near-intents/pkg/tokens"
)

func usdcSolana() tokens.BaseToken {
	return tokens.BaseToken{
		AssetID:     "nep141:sol-usdc.omft.near",
		Symbol:      "USDC",
		Decimals:    6,
		OriginChain: chains.Solana,
		FamilyID:    "USDC",
		Deployments: []tokens.Deployment{
			{Chain: chains.Solana, Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Bridge: tokens.BridgePoa},
		},
	}
}

func usdcNear() tokens.BaseToken {
	return tokens.BaseToken{
		AssetID:     "nep141:usdc.near",
		Symbol:      "USDC",
		Decimals:    6,
		OriginChain: chains.Near,
		FamilyID:    "USDC",
		Deployments: []tokens.Deployment{
			{Chain: chains.Near, Address: "usdc.near", Decimals: 6, Bridge: tokens.BridgeDirect},
		},
	}
}

func usdcArbitrum() tokens.BaseToken {
	return tokens.BaseToken{
		AssetID:     "nep141:arb-usdc.omft.near",
		Symbol:      "USDC",
		Decimals:    6,
		OriginChain: chains.Arbitrum,
		FamilyID:    "USDC",
		Deployments: []tokens.Deployment{
			{Chain: chains.Arbitrum, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6, Bridge: tokens.BridgePoa},
		},
	}
}

func unifiedUSDC() tokens.UnifiedToken {
	return tokens.UnifiedToken{
		ID:       "unified:usdc",
		Symbol:   "USDC",
		FamilyID: "USDC",
		Tokens:   []tokens.BaseToken{usdcSolana(), usdcNear(), usdcArbitrum()},
	}
}

func usdcFamilies() tokens.Families {
	return tokens.Families{"USDC": {usdcSolana(), usdcNear(), usdcArbitrum()}}
}

func TestFormBlockchainChangeResolvesTokenOut(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Solana, families)
	require.NoError(t, err)
	assert.Equal(t, chains.Solana, form.TokenOut.OriginChain)

	next, changed, err := Apply(form, UpdateBlockchain{Blockchain: chains.Arbitrum}, families)
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldBlockchain}, changed)
	assert.Equal(t, chains.Arbitrum, next.TokenOut.OriginChain)
	assert.Equal(t, "USDC", next.TokenOut.FamilyID)
}

func TestFormBlockchainChangeClearsMemoAndOverride(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Solana, families)
	require.NoError(t, err)

	override := amount.FromInt64(5, 6)
	form.Memo = "12345"
	form.MinReceived = &override

	next, _, err := Apply(form, UpdateBlockchain{Blockchain: chains.Near}, families)
	require.NoError(t, err)
	assert.Empty(t, next.Memo)
	assert.Nil(t, next.MinReceived)
}

func TestFormAmountReparsedAtTokenOutScale(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Near, families)
	require.NoError(t, err)

	next, changed, err := Apply(form, UpdateAmount{Input: "100.000001"}, families)
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldAmount}, changed)
	require.Equal(t, amount.ParseOK, next.AmountParse)
	assert.Equal(t, 0, amount.Cmp(next.Amount, amount.FromInt64(100_000_001, 6)))
}

func TestFormRecipientValidatedPerChain(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Arbitrum, families)
	require.NoError(t, err)

	next, _, err := Apply(form, UpdateRecipient{Recipient: "not-an-address"}, families)
	require.NoError(t, err)
	assert.Error(t, next.RecipientErr)

	next, _, err = Apply(next, UpdateRecipient{Recipient: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"}, families)
	require.NoError(t, err)
	assert.NoError(t, next.RecipientErr)
}

func TestFormNearIntentsRejectsSelfWithdrawal(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("Alice.Near", unifiedUSDC(), chains.NearIntents, families)
	require.NoError(t, err)

	next, _, err := Apply(form, UpdateRecipient{Recipient: "alice.near"}, families)
	require.NoError(t, err)
	assert.Error(t, next.RecipientErr, "self-transfer must be rejected, case-insensitively")

	next, _, err = Apply(form, UpdateRecipient{Recipient: "bob.near"}, families)
	require.NoError(t, err)
	assert.NoError(t, next.RecipientErr)
}

func TestFormMemoForcedEmptyWithoutTagSupport(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Solana, families)
	require.NoError(t, err)

	next, _, err := Apply(form, UpdateDestinationMemo{Memo: "12345"}, families)
	require.NoError(t, err)
	assert.Empty(t, next.Memo)
	assert.NoError(t, next.MemoErr)
}

func TestFormNoCorrespondingTokenIsHardError(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Near, families)
	require.NoError(t, err)

	_, _, err = Apply(form, UpdateBlockchain{Blockchain: chains.Dogecoin}, families)
	var noToken *tokens.ErrNoCorrespondingToken
	require.ErrorAs(t, err, &noToken)
}

func TestCheckInsufficientBalance(t *testing.T) {
	balance := amount.FromInt64(100_000_000, 6) // 100 USDC

	assert.Equal(t, BalanceInsufficient, CheckInsufficientBalance("100.000001", balance))
	assert.Equal(t, BalanceSufficient, CheckInsufficientBalance("100", balance))
	assert.Equal(t, BalanceSufficient, CheckInsufficientBalance("99.999999", balance))
	// Malformed input is not-yet-checkable, never "insufficient".
	assert.Equal(t, BalanceUnknown, CheckInsufficientBalance("abc", balance))
	assert.Equal(t, BalanceUnknown, CheckInsufficientBalance("1e6", balance))
	assert.Equal(t, BalanceUnknown, CheckInsufficientBalance("-5", balance))
}

func TestFormReadyGating(t *testing.T) {
	families := usdcFamilies()
	form, err := NewForm("alice.near", unifiedUSDC(), chains.Near, families)
	require.NoError(t, err)
	assert.False(t, form.Ready())

	form, _, err = Apply(form, UpdateAmount{Input: "10"}, families)
	require.NoError(t, err)
	form, _, err = Apply(form, UpdateRecipient{Recipient: "bob.near"}, families)
	require.NoError(t, err)
	assert.True(t, form.Ready())

	form, _, err = Apply(form, SetCEXConfirmation{Value: CEXNotConfirmed}, families)
	require.NoError(t, err)
	assert.False(t, form.Ready(), "unconfirmed CEX warning blocks submission")
}
