package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
	"near-intents/pkg/tokens"
	"near-intents/pkg/withdraw"
)

func usdcNearFixture() tokens.BaseToken {
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

func usdcFixtureFamilies() tokens.Families {
	return tokens.Families{"USDC": {usdcNearFixture()}}
}

type stallingPreparer struct{}

func (stallingPreparer) Prepare(ctx context.Context, _ withdraw.Form, _ map[string]amount.Amount) (*withdraw.Preparation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type instantPreparer struct{}

func (instantPreparer) Prepare(_ context.Context, form withdraw.Form, _ map[string]amount.Amount) (*withdraw.Preparation, error) {
	return &withdraw.Preparation{
		Direct:   form.Amount.Clone(),
		Total:    form.Amount.Clone(),
		Received: form.Amount.Clone(),
	}, nil
}

type fixedSubmitter struct{ txHash string }

func (s fixedSubmitter) Submit(context.Context, withdraw.Form, *withdraw.Preparation) (string, error) {
	return s.txHash, nil
}

func readyController(t *testing.T, deps withdraw.Deps) *withdraw.Controller {
	t.Helper()
	families := usdcFixtureFamilies()
	deps.Families = families
	form, err := withdraw.NewForm("alice.near", usdcNearFixture(), chains.Near, families)
	require.NoError(t, err)

	ctrl := withdraw.NewController(deps, form)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ctrl.Run(ctx)

	ctrl.Send(withdraw.UpdateAmount{Input: "10"})
	ctrl.Send(withdraw.UpdateRecipient{Recipient: "bob.near"})
	return ctrl
}

func callAwaitSubmission(t *testing.T, ctrl *withdraw.Controller) (string, error) {
	t.Helper()
	type result struct {
		txHash string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		txHash, err := awaitSubmission(ctrl)
		done <- result{txHash, err}
	}()
	select {
	case r := <-done:
		return r.txHash, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("awaitSubmission never returned")
		return "", nil
	}
}

func TestAwaitSubmissionReportsSupersededSubmit(t *testing.T) {
	ctrl := readyController(t, withdraw.Deps{Preparer: stallingPreparer{}})

	// The machine is mid-preparation when Submit arrives, so the event is
	// dropped; the wait must surface that instead of spinning.
	ctrl.Send(withdraw.BalancesUpdated{Balances: map[string]amount.Amount{
		usdcNearFixture().AssetID: amount.FromInt64(100_000_000, 6),
	}})
	require.Eventually(t, func() bool {
		return ctrl.State() == withdraw.StateEditingPreparing
	}, 2*time.Second, 10*time.Millisecond)

	ctrl.Send(withdraw.Submit{})

	_, err := callAwaitSubmission(t, ctrl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "superseded")
}

func TestAwaitSubmissionReturnsTxHash(t *testing.T) {
	ctrl := readyController(t, withdraw.Deps{
		Preparer:  instantPreparer{},
		Submitter: fixedSubmitter{txHash: "0xabc123"},
	})

	ctrl.Send(withdraw.BalancesUpdated{Balances: map[string]amount.Amount{
		usdcNearFixture().AssetID: amount.FromInt64(100_000_000, 6),
	}})
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Prep != nil
	}, 2*time.Second, 10*time.Millisecond)

	ctrl.Send(withdraw.Submit{})

	txHash, err := callAwaitSubmission(t, ctrl)
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", txHash)
}
