package deposit

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"near-intents/config"
	"near-intents/pkg/amount"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// EVMDepositor sends deposits on one EVM chain from a configured hot wallet.
// An empty token contract sends the native asset.
type EVMDepositor struct {
	network       config.EVMNetwork
	tokenContract string
	client        *ethclient.Client
	privateKey    *ecdsa.PrivateKey
	from          common.Address
	log           *zap.Logger
}

// NewEVMDepositor connects to the chain named in the config.
func NewEVMDepositor(cfg config.EVMConfig, chain, tokenContract string, log *zap.Logger) (*EVMDepositor, error) {
	network, exists := cfg.Networks[chain]
	if !exists {
		return nil, fmt.Errorf("network %s not configured", chain)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", chain)
	}
	if network.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for network %s", chain)
	}
	if tokenContract != "" && !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &EVMDepositor{
		network:       network,
		tokenContract: tokenContract,
		client:        client,
		privateKey:    privateKey,
		from:          crypto.PubkeyToAddress(privateKey.PublicKey),
		log:           log,
	}, nil
}

// SendDeposit transfers the atomic amount to the deposit address and returns
// the transaction hash.
func (e *EVMDepositor) SendDeposit(ctx context.Context, address string, amt amount.Amount) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid deposit address: %s", address)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := e.gasPrice(ctx)
	if err != nil {
		return "", err
	}

	var tx *types.Transaction
	if e.tokenContract == "" {
		tx, err = e.nativeTransfer(ctx, address, amt.Value, nonce, gasPrice)
	} else {
		tx, err = e.erc20Transfer(ctx, address, amt.Value, nonce, gasPrice)
	}
	if err != nil {
		return "", err
	}

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(e.network.ChainID)), e.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	e.log.Info("deposit sent",
		zap.String("tx", signedTx.Hash().Hex()),
		zap.String("to", address),
		zap.String("amount", amt.Value.String()))
	return signedTx.Hash().Hex(), nil
}

func (e *EVMDepositor) nativeTransfer(ctx context.Context, to string, value *big.Int, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	balance, err := e.client.BalanceAt(ctx, e.from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(value) < 0 {
		return nil, fmt.Errorf("insufficient balance: have %s wei, need %s wei", balance, value)
	}

	gasLimit := uint64(21000)
	if e.network.GasLimit != nil {
		gasLimit = *e.network.GasLimit
	}
	return types.NewTransaction(nonce, common.HexToAddress(to), value, gasLimit, gasPrice, nil), nil
}

func (e *EVMDepositor) erc20Transfer(ctx context.Context, to string, value *big.Int, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	data, err := parsedABI.Pack("transfer", common.HexToAddress(to), value)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	tokenAddress := common.HexToAddress(e.tokenContract)
	gasLimit := uint64(100000)
	if e.network.GasLimit != nil {
		gasLimit = *e.network.GasLimit
	} else {
		msg := ethereum.CallMsg{From: e.from, To: &tokenAddress, Data: data}
		if estimated, err := e.client.EstimateGas(ctx, msg); err == nil {
			gasLimit = estimated * 120 / 100
		}
	}
	return types.NewTransaction(nonce, tokenAddress, big.NewInt(0), gasLimit, gasPrice, data), nil
}

func (e *EVMDepositor) gasPrice(ctx context.Context) (*big.Int, error) {
	if e.network.GasPrice != nil {
		return big.NewInt(*e.network.GasPrice), nil
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// Close closes the client connection.
func (e *EVMDepositor) Close() {
	if e.client != nil {
		e.client.Close()
	}
}
