package withdraw

import (
	"near-intents/pkg/amount"
	"near-intents/pkg/tokens"
)

// FastWithdrawals reports the bridge's instantly-withdrawable hot liquidity
// per underlying asset, but only when it matters: if the hot balance does not
// exceed the user's own balance for any grouped token, the whole withdrawal is
// fast anyway and an empty map is returned. As soon as at least one token's
// hot liquidity exceeds the user's balance, the full per-token map comes back
// so the caller can show which part settles instantly.
func FastWithdrawals(token tokens.Token, hotBalances, userBalances map[string]amount.Amount) map[string]amount.Amount {
	exceeds := false
	for _, base := range token.Underlying() {
		hot, ok := hotBalances[base.AssetID]
		if !ok {
			continue
		}
		user, ok := userBalances[base.AssetID]
		if !ok {
			user = amount.Zero(base.Decimals)
		}
		if amount.Cmp(hot, user) > 0 {
			exceeds = true
			break
		}
	}
	if !exceeds {
		return map[string]amount.Amount{}
	}
	return hotBalances
}
