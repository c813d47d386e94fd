package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithdrawCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    WithdrawRequest
	}{
		{
			name:    "full form",
			command: "100 USDC to alice.near on near",
			want:    WithdrawRequest{Amount: "100", Symbol: "USDC", Recipient: "alice.near", Chain: "near"},
		},
		{
			name:    "leading withdraw keyword",
			command: "withdraw 0.5 btc to bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq on bitcoin",
			want: WithdrawRequest{
				Amount: "0.5", Symbol: "BTC",
				Recipient: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
				Chain:     "bitcoin",
			},
		},
		{
			name:    "chain omitted",
			command: "25 USDC to bob.near",
			want:    WithdrawRequest{Amount: "25", Symbol: "USDC", Recipient: "bob.near"},
		},
		{
			name:    "recipient case preserved",
			command: "1 ETH to 0xAf88d065E77c8cC2239327C5EDb3A432268e5831 on arbitrum",
			want: WithdrawRequest{
				Amount: "1", Symbol: "ETH",
				Recipient: "0xAf88d065E77c8cC2239327C5EDb3A432268e5831",
				Chain:     "arbitrum",
			},
		},
		{
			name:    "pseudo-chain",
			command: "10 USDC to bob.near on near_intents",
			want:    WithdrawRequest{Amount: "10", Symbol: "USDC", Recipient: "bob.near", Chain: "near_intents"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWithdrawCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseWithdrawCommandRejectsMalformed(t *testing.T) {
	for _, command := range []string{
		"",
		"USDC to alice.near",
		"100 USDC alice.near",
		"-5 USDC to alice.near",
		"100 USDC to",
	} {
		_, err := ParseWithdrawCommand(command)
		assert.Error(t, err, "command %q", command)
	}
}

func TestParseDepositCommand(t *testing.T) {
	got, err := ParseDepositCommand("deposit 0.01 btc from Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, DepositRequest{Amount: "0.01", Symbol: "BTC", Chain: "bitcoin"}, *got)

	_, err = ParseDepositCommand("0.01 BTC to bitcoin")
	assert.Error(t, err)
}
