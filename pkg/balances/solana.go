package balances

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaQuerier reads native and SPL balances.
type SolanaQuerier struct {
	client *rpc.Client
}

// NewSolanaQuerier creates a querier over a Solana RPC endpoint.
func NewSolanaQuerier(rpcURL string) *SolanaQuerier {
	return &SolanaQuerier{client: rpc.New(rpcURL)}
}

// NativeBalance returns the owner's SOL balance in lamports.
func (q *SolanaQuerier) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	pubkey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	balance, err := q.client.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return new(big.Int).SetUint64(balance.Value), nil
}

// SPLBalance returns the owner's balance for a token mint, read from the
// associated token account.
func (q *SolanaQuerier) SPLBalance(ctx context.Context, mintAddr, owner string) (*big.Int, error) {
	pubkey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(pubkey, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	account, err := q.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		// A wallet that never held the token has no associated account.
		if strings.Contains(err.Error(), "could not find account") {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	balance, ok := new(big.Int).SetString(account.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable token balance %q", account.Value.Amount)
	}
	return balance, nil
}
