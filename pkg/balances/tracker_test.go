package balances

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/tokens"
)

type fakeSource struct {
	fn func(ctx context.Context, owner string, list []tokens.BaseToken) (map[string]amount.Amount, error)
}

func (f *fakeSource) Balances(ctx context.Context, owner string, list []tokens.BaseToken) (map[string]amount.Amount, error) {
	return f.fn(ctx, owner, list)
}

func usdcNear() tokens.BaseToken {
	return tokens.BaseToken{
		AssetID:     "nep141:usdc.near",
		Symbol:      "USDC",
		Decimals:    6,
		OriginChain: "near",
	}
}

func solNative() tokens.BaseToken {
	return tokens.BaseToken{
		AssetID:     "nep141:sol.omft.near",
		Symbol:      "SOL",
		Decimals:    9,
		OriginChain: "solana",
	}
}

func waitUpdate(t *testing.T, tr *Tracker) Update {
	t.Helper()
	select {
	case u := <-tr.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tracker update")
		return Update{}
	}
}

func TestTrackerFetchCompletes(t *testing.T) {
	source := &fakeSource{fn: func(_ context.Context, owner string, list []tokens.BaseToken) (map[string]amount.Amount, error) {
		assert.Equal(t, "alice.near", owner)
		require.Len(t, list, 1)
		return map[string]amount.Amount{
			list[0].AssetID: amount.FromInt64(100_000_000, 6),
		}, nil
	}}
	tr := NewTracker(source, nil)
	require.Equal(t, StateIdle, tr.State())

	tr.Refresh(context.Background(), Params{Owner: "alice.near", Token: usdcNear()})
	u := waitUpdate(t, tr)

	require.NoError(t, u.Err)
	assert.Equal(t, StateCompleted, tr.State())
	got, ok := tr.Displayed()["nep141:usdc.near"]
	require.True(t, ok)
	assert.Equal(t, 0, amount.Cmp(got, amount.FromInt64(100_000_000, 6)))
}

func TestTrackerSameParamsKeepsDisplayed(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	source := &fakeSource{fn: func(_ context.Context, _ string, list []tokens.BaseToken) (map[string]amount.Amount, error) {
		calls++
		if calls > 1 {
			<-release
		}
		return map[string]amount.Amount{
			list[0].AssetID: amount.FromInt64(int64(calls), 6),
		}, nil
	}}
	tr := NewTracker(source, nil)
	params := Params{Owner: "alice.near", Token: usdcNear()}

	tr.Refresh(context.Background(), params)
	waitUpdate(t, tr)
	require.NotNil(t, tr.Displayed())

	// A refresh with identical parameters must not blank the display
	// while the new fetch is still in flight.
	tr.Refresh(context.Background(), params)
	assert.Equal(t, StateFetching, tr.State())
	assert.NotNil(t, tr.Displayed())

	close(release)
	waitUpdate(t, tr)
}

func TestTrackerDifferentParamsClearsImmediately(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	source := &fakeSource{fn: func(_ context.Context, _ string, list []tokens.BaseToken) (map[string]amount.Amount, error) {
		calls++
		if calls > 1 {
			<-release
		}
		return map[string]amount.Amount{
			list[0].AssetID: amount.FromInt64(1, list[0].Decimals),
		}, nil
	}}
	tr := NewTracker(source, nil)

	tr.Refresh(context.Background(), Params{Owner: "alice.near", Token: usdcNear()})
	waitUpdate(t, tr)
	require.NotNil(t, tr.Displayed())

	tr.Refresh(context.Background(), Params{Owner: "alice.near", Token: solNative()})
	assert.Nil(t, tr.Displayed(), "switching tokens must clear the stale balance")

	close(release)
	waitUpdate(t, tr)
}

func TestTrackerFetchFailureSurfacesTyped(t *testing.T) {
	fetchErr := errors.New("rpc unreachable")
	source := &fakeSource{fn: func(context.Context, string, []tokens.BaseToken) (map[string]amount.Amount, error) {
		return nil, fetchErr
	}}
	tr := NewTracker(source, nil)

	tr.Refresh(context.Background(), Params{Owner: "alice.near", Token: usdcNear()})
	u := waitUpdate(t, tr)

	require.ErrorIs(t, u.Err, fetchErr)
	assert.Equal(t, StateCompleted, tr.State())
	assert.Nil(t, tr.Displayed())
}
