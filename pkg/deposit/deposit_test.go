package deposit

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/relay"
)

type fakeRelay struct {
	quote     func(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error)
	submitted []string
}

func (f *fakeRelay) RequestQuote(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
	return f.quote(ctx, req)
}

func (f *fakeRelay) SubmitDepositTx(_ context.Context, depositAddress, txHash string) error {
	f.submitted = append(f.submitted, depositAddress+"/"+txHash)
	return nil
}

type fakeDepositor struct {
	txHash string
	err    error
}

func (f *fakeDepositor) SendDeposit(context.Context, string, amount.Amount) (string, error) {
	return f.txHash, f.err
}

func TestEstimateMaxSendable(t *testing.T) {
	balance := amount.FromInt64(1_000_000, 9)
	reserve := amount.FromInt64(5_000, 9)

	max := EstimateMaxSendable(balance, reserve)
	assert.Equal(t, 0, amount.Cmp(max, amount.FromInt64(995_000, 9)))

	// A reserve bigger than the balance clamps to zero, never negative.
	max = EstimateMaxSendable(reserve, balance)
	assert.True(t, max.IsZero())
}

func TestGenerateAddressRequiresNonDryQuote(t *testing.T) {
	r := &fakeRelay{quote: func(_ context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		assert.False(t, req.Dry, "address generation must commit the quote")
		return &relay.Quote{
			AmountIn:       new(big.Int).Set(req.AmountIn),
			AmountOut:      big.NewInt(99),
			DepositAddress: "deposit.near",
		}, nil
	}}
	svc := NewService(r, nil, nil)

	quote, err := svc.GenerateAddress(context.Background(), "nep141:btc.omft.near", "nep141:usdc.near", big.NewInt(100), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, "deposit.near", quote.DepositAddress)
}

func TestGenerateAddressFailureIsTyped(t *testing.T) {
	r := &fakeRelay{quote: func(context.Context, relay.QuoteRequest) (*relay.Quote, error) {
		return nil, errors.New("relay down")
	}}
	svc := NewService(r, nil, nil)

	_, err := svc.GenerateAddress(context.Background(), "a", "b", big.NewInt(1), "alice.near")

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ReasonAddressGeneration, derr.Reason)
}

func TestDepositMachineFlow(t *testing.T) {
	r := &fakeRelay{quote: func(_ context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		return &relay.Quote{
			AmountIn:       new(big.Int).Set(req.AmountIn),
			AmountOut:      big.NewInt(99),
			DepositAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		}, nil
	}}
	svc := NewService(r, nil, nil)
	c := NewController(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Send(Begin{
		OriginAsset:      "nep141:btc.omft.near",
		DestinationAsset: "nep245:wrapped.btc", // no NEP-141 storage to estimate
		AmountIn:         amount.FromInt64(100_000, 8),
		Recipient:        "alice.near",
		Balance:          amount.FromInt64(200_000, 8),
		GasReserve:       amount.FromInt64(10_000, 8),
	})

	require.Eventually(t, func() bool { return c.State() == StateReady }, 2*time.Second, 10*time.Millisecond)
	snap := c.Snapshot()
	require.NotNil(t, snap.Quote)
	assert.Equal(t, 0, amount.Cmp(snap.MaxSendable, amount.FromInt64(190_000, 8)))

	c.Send(Submit{Depositor: &fakeDepositor{txHash: "txid123"}})

	require.Eventually(t, func() bool { return c.State() == StateDone }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "txid123", c.Snapshot().TxHash)
	require.Len(t, r.submitted, 1)
	assert.Contains(t, r.submitted[0], "txid123")
}

func TestDepositMachineSubmitFailsClosedWhileGenerating(t *testing.T) {
	started := make(chan struct{})
	r := &fakeRelay{quote: func(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := NewService(r, nil, nil)
	c := NewController(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Send(Begin{
		OriginAsset:      "a",
		DestinationAsset: "b",
		AmountIn:         amount.FromInt64(1, 8),
		Recipient:        "alice.near",
	})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}

	c.Send(Submit{Depositor: &fakeDepositor{txHash: "nope"}})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateGenerating, c.State())
	assert.Empty(t, c.Snapshot().TxHash)
}
