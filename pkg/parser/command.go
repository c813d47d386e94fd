// Package parser turns the CLI's natural-language argument forms into
// structured requests.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// WithdrawRequest is a parsed withdraw command.
type WithdrawRequest struct {
	Amount    string
	Symbol    string
	Recipient string
	Chain     string
}

// DepositRequest is a parsed deposit command.
type DepositRequest struct {
	Amount string
	Symbol string
	Chain  string
}

// Recipients keep their case (hex and base58 addresses are case-sensitive);
// only the keywords, symbol and chain are normalized.
var (
	withdrawPattern = regexp.MustCompile(`(?i)^(?:WITHDRAW\s+)?(\d+\.?\d*)\s+([A-Za-z0-9]+)\s+TO\s+(\S+)(?:\s+ON\s+([A-Za-z_]+))?$`)
	depositPattern  = regexp.MustCompile(`(?i)^(?:DEPOSIT\s+)?(\d+\.?\d*)\s+([A-Za-z0-9]+)\s+FROM\s+([A-Za-z_]+)$`)
)

// ParseWithdrawCommand parses a natural language withdraw command.
// Examples:
//   - "100 USDC to alice.near on near"
//   - "0.5 BTC to bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq on bitcoin"
//   - "25 USDC to bob.near on near_intents"
func ParseWithdrawCommand(command string) (*WithdrawRequest, error) {
	matches := withdrawPattern.FindStringSubmatch(strings.TrimSpace(command))
	if matches == nil {
		return nil, fmt.Errorf("invalid withdraw command format. Expected: '<amount> <token> to <recipient> [on <chain>]' (e.g., '100 USDC to alice.near on near')")
	}
	return &WithdrawRequest{
		Amount:    matches[1],
		Symbol:    NormalizeTokenSymbol(matches[2]),
		Recipient: matches[3],
		Chain:     strings.ToLower(matches[4]),
	}, nil
}

// ParseDepositCommand parses a natural language deposit command.
// Examples:
//   - "100 USDC from arbitrum"
//   - "0.01 BTC from bitcoin"
func ParseDepositCommand(command string) (*DepositRequest, error) {
	matches := depositPattern.FindStringSubmatch(strings.TrimSpace(command))
	if matches == nil {
		return nil, fmt.Errorf("invalid deposit command format. Expected: '<amount> <token> from <chain>' (e.g., '100 USDC from arbitrum')")
	}
	return &DepositRequest{
		Amount: matches[1],
		Symbol: NormalizeTokenSymbol(matches[2]),
		Chain:  strings.ToLower(matches[3]),
	}, nil
}

// NormalizeTokenSymbol normalizes a token symbol to the catalog's upper-case
// form.
func NormalizeTokenSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
