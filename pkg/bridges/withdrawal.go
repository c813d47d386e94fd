package bridges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
	"near-intents/pkg/intents"
	"near-intents/pkg/tokens"
)

// ErrMissingTrustline is returned for Stellar destinations whose account has
// no trustline for the withdrawn asset; funds sent anyway would bounce.
var ErrMissingTrustline = errors.New("recipient has no trustline for this asset")

// ErrFeeExceedsAmount signals that the estimated fee would consume the whole
// withdrawal. The estimation carried alongside is still authoritative; callers
// use it to report the shortfall instead of failing blind.
type ErrFeeExceedsAmount struct {
	Estimate FeeEstimation
}

func (e *ErrFeeExceedsAmount) Error() string {
	return fmt.Sprintf("withdrawal fee %s exceeds amount", amount.Format(e.Estimate.Fee))
}

// FeeEstimation is the protocol fee for one withdrawal, in the withdrawn
// asset's own scale.
type FeeEstimation struct {
	Fee     amount.Amount
	AssetID string
}

// WithdrawalParams is everything needed to materialize signable withdrawal
// intents for one destination.
type WithdrawalParams struct {
	AssetID      string
	Deployment   tokens.Deployment
	TargetChain  string
	Amount       amount.Amount
	Destination  string
	Memo         string
	FeeInclusive bool
	Route        RouteKind
}

// TrustlineChecker answers whether a Stellar account holds a trustline for an
// asset. Implemented by the Stellar RPC adapter; nil skips the check.
type TrustlineChecker interface {
	HasTrustline(ctx context.Context, account, assetContract string) (bool, error)
}

// SDK assembles fee estimates and unsigned withdrawal intents. It is the
// in-process stand-in for the external bridging SDK boundary.
type SDK struct {
	cache     *Cache
	trustline TrustlineChecker
}

// NewSDK creates the bridging boundary over a populated registry cache.
func NewSDK(cache *Cache, trustline TrustlineChecker) *SDK {
	return &SDK{cache: cache, trustline: trustline}
}

// EstimateWithdrawalFee computes the protocol fee for the chosen route. PoA
// withdrawals pay the bridge registry's flat fee; NEAR-native and
// virtual-chain withdrawals are fee-free at this stage. When the fee meets or
// exceeds the amount the estimate is returned inside ErrFeeExceedsAmount.
func (s *SDK) EstimateWithdrawalFee(ctx context.Context, params WithdrawalParams) (FeeEstimation, error) {
	est := FeeEstimation{
		Fee:     amount.Zero(params.Deployment.Decimals),
		AssetID: params.AssetID,
	}

	switch params.Route {
	case RouteInternal, RouteNearNative, RouteVirtualChain:
		// No bridge crossing, no protocol fee.
	case RouteOmni, RouteDefault:
		if params.Deployment.Bridge == tokens.BridgePoa || params.Route == RouteOmni {
			limits := s.cache.Limits(params.AssetID)
			est.Fee = amount.New(limits.WithdrawalFee, params.Deployment.Decimals)
		}
	}

	if !est.Fee.IsZero() && amount.Cmp(est.Fee, params.Amount) >= 0 {
		return est, &ErrFeeExceedsAmount{Estimate: est}
	}
	return est, nil
}

// MinWithdrawal determines the smallest allowed withdrawal for a destination.
// Non-PoA bridges accept one atomic unit at the coarser of the token's and the
// deployment's scale; PoA bridges enforce the registry minimum.
func (s *SDK) MinWithdrawal(assetID string, tokenDecimals uint8, dep tokens.Deployment) amount.Amount {
	if dep.Bridge == tokens.BridgePoa {
		limits := s.cache.Limits(assetID)
		return amount.New(limits.MinWithdrawal, dep.Decimals)
	}
	decimals := tokenDecimals
	if dep.Decimals < decimals {
		decimals = dep.Decimals
	}
	return amount.OneAtomic(decimals)
}

// CreateWithdrawalIntents materializes the unsigned intent(s) for a prepared
// withdrawal. Stellar destinations are refused when the recipient lacks a
// trustline for the asset.
func (s *SDK) CreateWithdrawalIntents(ctx context.Context, params WithdrawalParams, fee FeeEstimation) ([]intents.Intent, error) {
	if params.Route == RouteInternal {
		return nil, fmt.Errorf("internal transfers are assembled directly, not through the bridge")
	}

	if params.TargetChain == chains.Stellar && s.trustline != nil {
		ok, err := s.trustline.HasTrustline(ctx, params.Destination, params.Deployment.Address)
		if err != nil {
			return nil, fmt.Errorf("trustline check failed: %w", err)
		}
		if !ok {
			return nil, ErrMissingTrustline
		}
	}

	total := params.Amount.Clone()
	if !params.FeeInclusive {
		total = amount.Add(total, fee.Fee)
	}
	atomic, exact := total.FloorTo(params.Deployment.Decimals)
	if !exact {
		return nil, fmt.Errorf("amount %s not representable at deployment scale %d",
			amount.Format(total), params.Deployment.Decimals)
	}

	if params.Deployment.Native() && params.Deployment.Chain == chains.Near {
		return []intents.Intent{
			intents.NewNativeWithdraw(params.Destination, atomic.Value.String()),
		}, nil
	}

	receiver, memo := withdrawTarget(params)
	return []intents.Intent{
		intents.NewFtWithdraw(tokenContract(params.AssetID, params.Deployment), receiver, atomic.Value.String(), memo),
	}, nil
}

// withdrawTarget resolves the on-NEAR receiver and memo for the withdrawal.
// PoA-bridged tokens are burned by sending them to their bridge contract with
// a WITHDRAW_TO memo naming the external destination.
func withdrawTarget(params WithdrawalParams) (receiver, memo string) {
	if params.Deployment.Bridge == tokens.BridgePoa {
		memo = "WITHDRAW_TO:" + params.Destination
		if params.Memo != "" {
			memo += ":" + params.Memo
		}
		return tokenContract(params.AssetID, params.Deployment), memo
	}
	return params.Destination, params.Memo
}

// tokenContract extracts the NEAR-side contract account for an asset id of
// the form nep141:<contract>.
func tokenContract(assetID string, dep tokens.Deployment) string {
	if idx := strings.Index(assetID, ":"); idx >= 0 {
		return assetID[idx+1:]
	}
	if dep.Address != "" {
		return dep.Address
	}
	return assetID
}

// SplitByBalance distributes a requested amount greedily across the balances
// of the given assets, in order. Assets with zero balance contribute nothing;
// the returned map only carries nonzero splits.
func SplitByBalance(requested amount.Amount, order []string, balances map[string]amount.Amount) map[string]amount.Amount {
	remaining := requested.Clone()
	splits := make(map[string]amount.Amount)
	for _, assetID := range order {
		if remaining.IsZero() {
			break
		}
		bal, ok := balances[assetID]
		if !ok || bal.IsZero() {
			continue
		}
		take := amount.Min(bal, remaining)
		if take.IsZero() {
			continue
		}
		splits[assetID] = take
		remaining = amount.Sub(remaining, take)
	}
	return splits
}
