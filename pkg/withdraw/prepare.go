package withdraw

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/bridges"
	"near-intents/pkg/chains"
	"near-intents/pkg/intents"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
)

// QuoteSource awaits exactly one quote for a swap leg. Implemented by Poller.
type QuoteSource interface {
	Once(ctx context.Context, in QuoteInput) (*relay.Quote, error)
}

// SwapLeg is one quoted slice of the swap requirement, sourced from a single
// funded family asset. A preparation carries one leg per origin asset the
// requirement was split across.
type SwapLeg struct {
	OriginAsset string
	AmountIn    amount.Amount
	Quote       *relay.Quote
}

// Preparation is the ok arm of a preparation run: everything submit needs,
// prebuilt. It is recomputed from scratch on every relevant form change and is
// the only input consulted at submit time.
type Preparation struct {
	Direct   amount.Amount
	Swap     *SwapParams
	SwapLegs []SwapLeg

	Total    amount.Amount
	Fee      bridges.FeeEstimation
	Received amount.Amount
	Minimum  amount.Amount

	Route   bridges.RouteKind
	Params  bridges.WithdrawalParams
	Intents []intents.Intent
}

// Preparer runs the preparation pipeline. It is stateless between runs; each
// call works only from the snapshots passed in.
type Preparer struct {
	sdk    *bridges.SDK
	cache  *bridges.Cache
	quotes QuoteSource
	log    *zap.Logger
}

// NewPreparer assembles the orchestrator over its collaborators.
func NewPreparer(sdk *bridges.SDK, cache *bridges.Cache, quotes QuoteSource, log *zap.Logger) *Preparer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Preparer{sdk: sdk, cache: cache, quotes: quotes, log: log}
}

// Prepare turns a form snapshot plus a balance snapshot into signable
// withdrawal intents, or a typed *PreparationError. A cancelled ctx aborts the
// run and returns the context error; the caller discards the result.
func (p *Preparer) Prepare(ctx context.Context, form Form, balances map[string]amount.Amount) (*Preparation, error) {
	requested := form.Amount

	total, found := tokens.TotalBalance(form.TokenIn, balances)
	if !found {
		return nil, prepErr(ReasonBalanceMissing, nil)
	}
	if amount.Cmp(total, requested) < 0 {
		return nil, prepErr(ReasonBalanceInsufficient, nil)
	}

	if form.Blockchain == chains.NearIntents {
		return p.prepareInternal(form, balances)
	}

	if err := p.cache.WaitReady(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, prepErr(ReasonFeeFetchFailed, err)
	}

	breakdown := RequiredSwap(form.TokenIn, form.TokenOut, requested, balances)

	prep := &Preparation{
		Direct: breakdown.Direct,
		Swap:   breakdown.Swap,
		Total:  breakdown.Direct.Clone(),
	}

	if breakdown.Swap != nil {
		// The requirement is split across the funded family assets greedily by
		// balance; no single origin is ever asked for more than it holds.
		splits := bridges.SplitByBalance(breakdown.Swap.AmountIn, breakdown.Swap.FromAssets, balances)

		covered := amount.Zero(form.TokenOut.Decimals)
		for _, split := range splits {
			covered = amount.Add(covered, split)
		}
		if amount.Cmp(covered, breakdown.Swap.AmountIn) < 0 {
			return nil, prepErr(ReasonBalanceInsufficient, nil)
		}

		decimalsByAsset := make(map[string]uint8)
		for _, base := range form.TokenIn.Underlying() {
			decimalsByAsset[base.AssetID] = base.Decimals
		}

		for _, assetID := range breakdown.Swap.FromAssets {
			split, ok := splits[assetID]
			if !ok {
				continue
			}
			atomic, _ := split.FloorTo(decimalsByAsset[assetID])
			if atomic.IsZero() {
				continue
			}
			quote, err := p.quotes.Once(ctx, QuoteInput{
				OriginAsset:      assetID,
				DestinationAsset: form.TokenOut.AssetID,
				AmountIn:         atomic.Value,
				SignerID:         form.SenderID,
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// A quote-side failure aborts preparation with the quote's error.
				return nil, prepErr(ReasonNoLiquidity, err)
			}
			prep.SwapLegs = append(prep.SwapLegs, SwapLeg{OriginAsset: assetID, AmountIn: atomic, Quote: quote})
			prep.Total = amount.Add(prep.Total, amount.New(quote.AmountOut, form.TokenOut.Decimals))
		}
	}

	prep.Minimum = p.sdk.MinWithdrawal(form.TokenOut.AssetID, form.TokenOut.Decimals, form.Deployment)
	if form.MinReceived != nil {
		prep.Minimum = amount.Max(prep.Minimum, *form.MinReceived)
	}

	prep.Route = bridges.SelectRoute(form.Blockchain, form.Deployment)
	params := bridges.WithdrawalParams{
		AssetID:      form.TokenOut.AssetID,
		Deployment:   form.Deployment,
		TargetChain:  form.Blockchain,
		Amount:       prep.Total,
		Destination:  form.Recipient,
		Memo:         form.Memo,
		FeeInclusive: false,
		Route:        prep.Route,
	}

	fee, err := p.sdk.EstimateWithdrawalFee(ctx, params)
	if err != nil {
		var exceeds *bridges.ErrFeeExceedsAmount
		if errors.As(err, &exceeds) {
			// The estimate is still authoritative: use it so the shortfall
			// reported below is exact.
			fee = exceeds.Estimate
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, prepErr(ReasonFeeFetchFailed, err)
		}
	}
	prep.Fee = fee
	prep.Received = amount.Sub(prep.Total, fee.Fee)

	if amount.Cmp(prep.Received, prep.Minimum) < 0 {
		return nil, &PreparationError{
			Reason:    ReasonAmountTooLow,
			Shortfall: amount.Sub(prep.Minimum, prep.Received),
			Minimum:   prep.Minimum,
		}
	}

	prep.Params = params
	list, err := p.sdk.CreateWithdrawalIntents(ctx, params, fee)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, bridges.ErrMissingTrustline) {
			return nil, prepErr(ReasonMissingTrustline, err)
		}
		return nil, prepErr(ReasonCannotCreateIntent, err)
	}
	prep.Intents = list

	p.log.Debug("withdrawal prepared",
		zap.String("asset", form.TokenOut.AssetID),
		zap.String("chain", form.Blockchain),
		zap.String("received", amount.Format(prep.Received)))
	return prep, nil
}

// prepareInternal handles the near_intents pseudo-chain: no bridge crossing,
// no fee. The requested amount is split greedily across the underlying assets
// by available balance, one transfer intent per nonzero split.
func (p *Preparer) prepareInternal(form Form, balances map[string]amount.Amount) (*Preparation, error) {
	order := make([]string, 0, len(form.TokenIn.Underlying()))
	decimalsByAsset := make(map[string]uint8)
	for _, base := range form.TokenIn.Underlying() {
		order = append(order, base.AssetID)
		decimalsByAsset[base.AssetID] = base.Decimals
	}

	splits := bridges.SplitByBalance(form.Amount, order, balances)
	if len(splits) == 0 {
		return nil, prepErr(ReasonBalanceInsufficient, nil)
	}

	list := make([]intents.Intent, 0, len(splits))
	for _, assetID := range order {
		split, ok := splits[assetID]
		if !ok {
			continue
		}
		atomic, _ := split.FloorTo(decimalsByAsset[assetID])
		if atomic.IsZero() {
			continue
		}
		list = append(list, intents.NewTransfer(form.Recipient, map[string]string{
			assetID: atomic.Value.String(),
		}))
	}

	fee := bridges.FeeEstimation{
		Fee:     amount.Zero(form.TokenOut.Decimals),
		AssetID: form.TokenOut.AssetID,
	}
	return &Preparation{
		Direct:   form.Amount.Clone(),
		Total:    form.Amount.Clone(),
		Fee:      fee,
		Received: form.Amount.Clone(),
		Minimum:  amount.OneAtomic(form.TokenOut.Decimals),
		Route:    bridges.RouteInternal,
		Intents:  list,
		Params: bridges.WithdrawalParams{
			AssetID:     form.TokenOut.AssetID,
			TargetChain: chains.NearIntents,
			Amount:      form.Amount,
			Destination: form.Recipient,
			Route:       bridges.RouteInternal,
		},
	}, nil
}
