package withdraw

import (
	"fmt"

	"near-intents/pkg/amount"
)

// Reason tags the closed set of preparation failures. Every failure crossing
// the package boundary carries one of these, never a bare error.
type Reason string

const (
	ReasonBalanceMissing      Reason = "ERR_BALANCE_MISSING"
	ReasonBalanceInsufficient Reason = "ERR_BALANCE_INSUFFICIENT"
	ReasonNoLiquidity         Reason = "ERR_NO_LIQUIDITY"
	ReasonAmountTooLow        Reason = "ERR_AMOUNT_TOO_LOW"
	ReasonFeeFetchFailed      Reason = "ERR_WITHDRAWAL_FEE_FETCH_FAILED"
	ReasonCannotCreateIntent  Reason = "ERR_CANNOT_CREATE_WITHDRAWAL_INTENT"
	ReasonMissingTrustline    Reason = "ERR_MISSING_TRUSTLINE"
)

// PreparationError is the err arm of a preparation result.
type PreparationError struct {
	Reason Reason
	// Shortfall is set for ReasonAmountTooLow: the exact amount missing to
	// reach the minimum, so the caller can suggest a corrected input.
	Shortfall amount.Amount
	// Minimum is the threshold that was not met, for display.
	Minimum amount.Amount
	Cause   error
}

func (e *PreparationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return string(e.Reason)
}

func (e *PreparationError) Unwrap() error {
	return e.Cause
}

// Message maps each reason to the short user-facing text.
func (e *PreparationError) Message() string {
	switch e.Reason {
	case ReasonBalanceMissing:
		return "Balance unavailable"
	case ReasonBalanceInsufficient:
		return "Insufficient balance"
	case ReasonNoLiquidity:
		return "No liquidity providers"
	case ReasonAmountTooLow:
		return fmt.Sprintf("Amount is too low, minimum is %s", amount.Format(e.Minimum))
	case ReasonFeeFetchFailed:
		return "Could not fetch withdrawal fee"
	case ReasonCannotCreateIntent:
		return "Could not construct withdrawal"
	case ReasonMissingTrustline:
		return "Recipient is missing a trustline for this asset"
	default:
		return "Withdrawal preparation failed"
	}
}

func prepErr(reason Reason, cause error) *PreparationError {
	return &PreparationError{Reason: reason, Cause: cause}
}
