package withdraw

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/relay"
)

type quoterFunc func(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error)

func (f quoterFunc) RequestQuote(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
	return f(ctx, req)
}

func TestPollerOnceReturnsFirstQuote(t *testing.T) {
	quoter := quoterFunc(func(_ context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		assert.True(t, req.Dry, "polling quotes must be dry")
		return &relay.Quote{
			AmountIn:  new(big.Int).Set(req.AmountIn),
			AmountOut: big.NewInt(42),
		}, nil
	})
	p := NewPoller(quoter, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	quote, err := p.Once(ctx, QuoteInput{
		OriginAsset:      "nep141:usdc.near",
		DestinationAsset: "nep141:arb-usdc.omft.near",
		AmountIn:         big.NewInt(70),
		SignerID:         "alice.near",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", quote.AmountOut.String())
}

func TestPollerSupersededResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	quoter := quoterFunc(func(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		if req.AmountIn.Int64() == 1 {
			// The first input's request stalls until after it is superseded.
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &relay.Quote{AmountIn: new(big.Int).Set(req.AmountIn), AmountOut: big.NewInt(1)}, nil
	})
	p := NewPoller(quoter, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SetInput(QuoteInput{AmountIn: big.NewInt(1), SignerID: "alice.near"})
	// Replace the input while the first request is still in flight.
	quote, err := p.Once(ctx, QuoteInput{AmountIn: big.NewInt(2), SignerID: "alice.near"})
	require.NoError(t, err)
	assert.Equal(t, "2", quote.AmountIn.String())

	close(release)

	// The stale result must never surface on the event stream.
	select {
	case ev := <-p.Events():
		assert.NotEqual(t, "1", ev.Quote.AmountIn.String(), "superseded quote leaked")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPollerPauseStopsPublishing(t *testing.T) {
	release := make(chan struct{})
	quoter := quoterFunc(func(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &relay.Quote{AmountIn: new(big.Int).Set(req.AmountIn), AmountOut: big.NewInt(1)}, nil
	})
	p := NewPoller(quoter, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SetInput(QuoteInput{AmountIn: big.NewInt(1), SignerID: "alice.near"})
	p.Pause()
	close(release)

	select {
	case ev := <-p.Events():
		t.Fatalf("received quote %v after pause", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
