// Package intents holds the unsigned intent payloads submitted to the
// settlement contract. This package only assembles intents; signing and
// broadcasting are the submitter's job, outside this module.
package intents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags the closed set of intent payloads this module produces.
type Kind string

const (
	KindTransfer       Kind = "transfer"
	KindFtWithdraw     Kind = "ft_withdraw"
	KindNativeWithdraw Kind = "native_withdraw"
)

// Intent is one declarative instruction for the settlement contract.
type Intent struct {
	Kind Kind `json:"intent"`

	// Transfer fields: amounts per asset id moved to another intents account.
	Tokens map[string]string `json:"tokens,omitempty"`

	// Withdraw fields.
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount,omitempty"`
	Memo   string `json:"memo,omitempty"`

	ReceiverID string `json:"receiver_id"`
}

// NewTransfer builds an internal transfer intent moving amounts (atomic,
// stringified) per asset id to another intents account.
func NewTransfer(receiverID string, tokenAmounts map[string]string) Intent {
	return Intent{Kind: KindTransfer, ReceiverID: receiverID, Tokens: tokenAmounts}
}

// NewFtWithdraw builds a fungible-token withdrawal intent.
func NewFtWithdraw(tokenContract, receiverID, amount, memo string) Intent {
	return Intent{
		Kind:       KindFtWithdraw,
		Token:      tokenContract,
		ReceiverID: receiverID,
		Amount:     amount,
		Memo:       memo,
	}
}

// NewNativeWithdraw builds a native-asset withdrawal intent.
func NewNativeWithdraw(receiverID, amount string) Intent {
	return Intent{Kind: KindNativeWithdraw, ReceiverID: receiverID, Amount: amount}
}

// WalletMessage is the envelope presented to the wallet for signing.
type WalletMessage struct {
	SignerID string   `json:"signer_id"`
	Deadline string   `json:"deadline"`
	Nonce    string   `json:"nonce"`
	Intents  []Intent `json:"intents"`
}

// NewWalletMessage wraps intents into a signable envelope with a fresh nonce
// and the given deadline.
func NewWalletMessage(signerID string, deadline time.Time, list []Intent) WalletMessage {
	return WalletMessage{
		SignerID: signerID,
		Deadline: deadline.UTC().Format(time.RFC3339),
		Nonce:    uuid.NewString(),
		Intents:  list,
	}
}

// Serialize renders the message as the canonical JSON the wallet signs.
func (m WalletMessage) Serialize() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize wallet message: %w", err)
	}
	return data, nil
}
