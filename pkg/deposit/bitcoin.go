package deposit

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"near-intents/config"
	"near-intents/pkg/amount"
)

// BitcoinDepositor sends deposits through a local bitcoin-cli wallet.
type BitcoinDepositor struct {
	cfg config.BitcoinConfig
	log *zap.Logger
}

// NewBitcoinDepositor creates a depositor over the configured CLI.
func NewBitcoinDepositor(cfg config.BitcoinConfig, log *zap.Logger) *BitcoinDepositor {
	if log == nil {
		log = zap.NewNop()
	}
	return &BitcoinDepositor{cfg: cfg, log: log}
}

// SendDeposit sends the atomic (satoshi) amount to the deposit address and
// returns the transaction id.
func (b *BitcoinDepositor) SendDeposit(ctx context.Context, address string, amt amount.Amount) (string, error) {
	if err := b.validateCLI(ctx); err != nil {
		return "", fmt.Errorf("bitcoin-cli validation failed: %w", err)
	}

	// sendtoaddress takes BTC, not satoshi.
	btc := decimal.NewFromBigInt(amt.Value, -int32(amt.Decimals)).String()

	balance, err := b.balance(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get wallet balance: %w", err)
	}
	want, err := decimal.NewFromString(btc)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	if balance.LessThan(want) {
		return "", fmt.Errorf("insufficient balance: have %s BTC, need %s BTC", balance, want)
	}

	output, err := b.run(ctx, "sendtoaddress", address, btc)
	if err != nil {
		return "", err
	}

	txid := strings.TrimSpace(string(output))
	if txid == "" {
		return "", fmt.Errorf("empty transaction ID returned")
	}
	b.log.Info("deposit sent", zap.String("txid", txid), zap.String("to", address), zap.String("btc", btc))
	return txid, nil
}

func (b *BitcoinDepositor) balance(ctx context.Context) (decimal.Decimal, error) {
	output, err := b.run(ctx, "getbalance")
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(strings.TrimSpace(string(output)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}
	return balance, nil
}

func (b *BitcoinDepositor) validateCLI(ctx context.Context) error {
	output, err := b.run(ctx, "getblockchaininfo")
	if err != nil {
		return err
	}
	var info map[string]interface{}
	if err := json.Unmarshal(output, &info); err != nil {
		return fmt.Errorf("invalid bitcoin-cli response: %w", err)
	}
	return nil
}

func (b *BitcoinDepositor) run(ctx context.Context, command string, commandArgs ...string) ([]byte, error) {
	args := append([]string{}, b.cfg.CLIArgs...)
	args = append(args, command)
	args = append(args, commandArgs...)

	cmd := exec.CommandContext(ctx, b.cfg.CLIPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("bitcoin-cli %s failed: %w\nOutput: %s", command, err, string(output))
	}
	return output, nil
}
