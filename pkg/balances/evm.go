package balances

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// EVMQuerier reads native and ERC-20 balances on one EVM chain.
type EVMQuerier struct {
	client *ethclient.Client
}

// NewEVMQuerier dials the chain's RPC endpoint.
func NewEVMQuerier(rpcURL string) (*EVMQuerier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return &EVMQuerier{client: client}, nil
}

// NativeBalance returns the owner's native balance in wei.
func (q *EVMQuerier) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address: %s", owner)
	}
	balance, err := q.client.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// ERC20Balance returns the owner's balance on a token contract.
func (q *EVMQuerier) ERC20Balance(ctx context.Context, tokenContract, owner string) (*big.Int, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse balanceOf ABI: %w", err)
	}
	data, err := parsedABI.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	tokenAddr := common.HexToAddress(tokenContract)
	result, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// SuggestGasPrice proxies the chain's current gas price, used when estimating
// the max sendable value for deposits.
func (q *EVMQuerier) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := q.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

// Close closes the underlying client connection.
func (q *EVMQuerier) Close() {
	if q.client != nil {
		q.client.Close()
	}
}
