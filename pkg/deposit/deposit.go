// Package deposit drives the deposit side of the flow: generate a deposit
// address through the relay, estimate the NEAR storage deposit and the
// maximum sendable value, then hand the transfer to a chain-specific
// depositor.
package deposit

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/balances"
	"near-intents/pkg/relay"
)

// Reason tags the closed set of deposit failures.
type Reason string

const (
	ReasonAddressGeneration  Reason = "ERR_ADDRESS_GENERATION"
	ReasonStorageComputation Reason = "ERR_STORAGE_COMPUTATION"
	ReasonEstimateMax        Reason = "ERR_ESTIMATE_MAX_DEPOSIT"
	ReasonSendFailed         Reason = "ERR_DEPOSIT_SEND_FAILED"
)

// Error is a typed deposit failure.
type Error struct {
	Reason Reason
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Depositor sends one chain-specific deposit transaction.
type Depositor interface {
	SendDeposit(ctx context.Context, address string, amt amount.Amount) (txHash string, err error)
}

// AddressSource materializes deposit addresses. Implemented by the relay
// client: a non-dry quote commits solver liquidity and returns the address.
type AddressSource interface {
	RequestQuote(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error)
	SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error
}

// Service is the deposit orchestrator.
type Service struct {
	relay AddressSource
	near  *balances.NearClient
	log   *zap.Logger
}

// NewService assembles the deposit service.
func NewService(relaySource AddressSource, near *balances.NearClient, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{relay: relaySource, near: near, log: log}
}

// GenerateAddress obtains a deposit address for moving amountIn of
// originAsset into the recipient's intents balance. Unlike the dry quotes the
// poller uses, this commits the relay to the leg.
func (s *Service) GenerateAddress(ctx context.Context, originAsset, destinationAsset string, amountIn *big.Int, recipient string) (*relay.Quote, error) {
	quote, err := s.relay.RequestQuote(ctx, relay.QuoteRequest{
		OriginAsset:      originAsset,
		DestinationAsset: destinationAsset,
		AmountIn:         amountIn,
		Recipient:        recipient,
		Dry:              false,
	})
	if err != nil {
		return nil, &Error{Reason: ReasonAddressGeneration, Cause: err}
	}
	if quote.DepositAddress == "" {
		return nil, &Error{Reason: ReasonAddressGeneration, Cause: fmt.Errorf("relay returned no deposit address")}
	}
	return quote, nil
}

// EstimateStorageDeposit returns the NEP-145 storage deposit the recipient
// may need on the token contract before it can hold the asset. Zero when the
// asset is not a nep141 token.
func (s *Service) EstimateStorageDeposit(ctx context.Context, assetID string) (*big.Int, error) {
	contract, ok := strings.CutPrefix(assetID, "nep141:")
	if !ok {
		return big.NewInt(0), nil
	}
	min, err := s.near.StorageBalanceBounds(ctx, contract)
	if err != nil {
		return nil, &Error{Reason: ReasonStorageComputation, Cause: err}
	}
	return min, nil
}

// NotifyDeposit reports a sent deposit transaction to the relay so settlement
// can begin before chain finality.
func (s *Service) NotifyDeposit(ctx context.Context, depositAddress, txHash string) error {
	if err := s.relay.SubmitDepositTx(ctx, depositAddress, txHash); err != nil {
		s.log.Warn("failed to notify relay of deposit",
			zap.String("address", depositAddress), zap.Error(err))
		return err
	}
	return nil
}

// EstimateMaxSendable computes how much of a balance can be deposited after
// holding back the chain's gas reserve. Never negative.
func EstimateMaxSendable(balance amount.Amount, gasReserve amount.Amount) amount.Amount {
	max := amount.Sub(balance, gasReserve)
	if max.Value.Sign() < 0 {
		return amount.Zero(max.Decimals)
	}
	return max
}
