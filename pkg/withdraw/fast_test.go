package withdraw

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"near-intents/pkg/amount"
)

func TestFastWithdrawalsHiddenWhenHotLiquidityWithinBalances(t *testing.T) {
	// Hot liquidity never exceeds what the user holds anyway: no banner.
	hot := map[string]amount.Amount{
		usdcNear().AssetID: amount.FromInt64(100_000_000, 6),
	}
	user := map[string]amount.Amount{
		usdcNear().AssetID: amount.FromInt64(100_000_000, 6),
	}

	assert.Empty(t, FastWithdrawals(unifiedUSDC(), hot, user))
}

func TestFastWithdrawalsFullMapWhenAnyTokenExceeds(t *testing.T) {
	hot := map[string]amount.Amount{
		usdcNear().AssetID:   amount.FromInt64(100_000_000, 6),
		usdcSolana().AssetID: amount.FromInt64(500_000_000, 6),
	}
	user := map[string]amount.Amount{
		usdcNear().AssetID:   amount.FromInt64(100_000_000, 6),
		usdcSolana().AssetID: amount.FromInt64(1_000_000, 6),
	}

	got := FastWithdrawals(unifiedUSDC(), hot, user)
	assert.Equal(t, hot, got, "one exceeding token returns the full hot-balance map")
}

func TestFastWithdrawalsMissingUserBalanceCountsAsZero(t *testing.T) {
	hot := map[string]amount.Amount{
		usdcSolana().AssetID: amount.FromInt64(1, 6),
	}

	got := FastWithdrawals(unifiedUSDC(), hot, map[string]amount.Amount{})
	assert.Equal(t, hot, got)
}
