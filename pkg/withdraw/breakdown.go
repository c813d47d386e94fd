package withdraw

import (
	"near-intents/pkg/amount"
	"near-intents/pkg/tokens"
)

// SwapParams describes the swap leg of a withdrawal: how much must be
// converted into the destination token, and which same-family assets the
// input can come from.
type SwapParams struct {
	AmountIn   amount.Amount
	FromAssets []string
}

// Breakdown splits a requested withdrawal into the part covered by the
// destination token's own balance and the part that must be swapped in.
type Breakdown struct {
	Direct amount.Amount
	Swap   *SwapParams // nil when the direct balance covers the request
}

// RequiredSwap computes the withdraw breakdown. The direct share is capped by
// tokenOut's own balance; whatever remains is the swap requirement, sourced
// from the other underlying tokens. A remainder that rounds to zero at
// tokenOut's scale is dust: it is dropped, never swapped.
func RequiredSwap(tokenIn tokens.Token, tokenOut tokens.BaseToken, requested amount.Amount, balances map[string]amount.Amount) Breakdown {
	directBalance, ok := balances[tokenOut.AssetID]
	if !ok {
		directBalance = amount.Zero(tokenOut.Decimals)
	}

	direct := amount.Min(directBalance, requested)
	remainder := amount.Sub(requested, direct)

	swapIn, _ := remainder.FloorTo(tokenOut.Decimals)
	if swapIn.IsZero() {
		return Breakdown{Direct: direct}
	}

	from := make([]string, 0)
	for _, base := range tokenIn.Underlying() {
		if base.AssetID == tokenOut.AssetID {
			continue
		}
		if bal, ok := balances[base.AssetID]; ok && !bal.IsZero() {
			from = append(from, base.AssetID)
		}
	}

	return Breakdown{
		Direct: direct,
		Swap:   &SwapParams{AmountIn: swapIn, FromAssets: from},
	}
}
