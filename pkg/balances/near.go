package balances

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/tokens"
)

// DefaultIntentsContract is the settlement contract holding intents balances.
const DefaultIntentsContract = "intents.near"

// NearClient is a minimal NEAR JSON-RPC client for view calls and account
// queries.
type NearClient struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewNearClient creates a client for a NEAR RPC endpoint.
func NewNearClient(url string, log *zap.Logger) *NearClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &NearClient{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

type nearRPCRequest struct {
	JSONRpc string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type nearRPCResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Name  string          `json:"name"`
		Cause json.RawMessage `json:"cause"`
	} `json:"error,omitempty"`
}

type callFunctionResult struct {
	Result []byte   `json:"result"`
	Logs   []string `json:"logs"`
}

type viewAccountResult struct {
	Amount string `json:"amount"`
}

func (c *NearClient) query(ctx context.Context, params, out interface{}) error {
	return c.call(ctx, "query", params, out)
}

func (c *NearClient) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(nearRPCRequest{
		JSONRpc: "2.0",
		ID:      "near-intents",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("NEAR RPC request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("NEAR RPC returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp nearRPCResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("NEAR RPC error: %s %s", resp.Error.Name, string(resp.Error.Cause))
	}
	return json.Unmarshal(resp.Result, out)
}

// TxOutcome classifies a transaction's settlement on chain.
type TxOutcome string

const (
	TxPending   TxOutcome = "pending"
	TxSucceeded TxOutcome = "succeeded"
	TxFailed    TxOutcome = "failed"
)

// TxStatus looks up a transaction's final outcome. A transaction the node does
// not know yet reports pending rather than an error.
func (c *NearClient) TxStatus(ctx context.Context, txHash, senderID string) (TxOutcome, error) {
	var result struct {
		Status map[string]json.RawMessage `json:"status"`
	}
	err := c.call(ctx, "tx", map[string]interface{}{
		"tx_hash":           txHash,
		"sender_account_id": senderID,
		"wait_until":        "NONE",
	}, &result)
	if err != nil {
		if strings.Contains(err.Error(), "UNKNOWN_TRANSACTION") {
			return TxPending, nil
		}
		return TxPending, err
	}

	if _, ok := result.Status["SuccessValue"]; ok {
		return TxSucceeded, nil
	}
	if _, ok := result.Status["Failure"]; ok {
		return TxFailed, nil
	}
	return TxPending, nil
}

// ViewFunction calls a view method on a contract and unmarshals the returned
// JSON into out.
func (c *NearClient) ViewFunction(ctx context.Context, contract, method string, args interface{}, out interface{}) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	var result callFunctionResult
	err = c.query(ctx, map[string]interface{}{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   contract,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
	}, &result)
	if err != nil {
		return err
	}
	return json.Unmarshal(result.Result, out)
}

// AccountBalance returns the native NEAR balance of an account in yocto.
func (c *NearClient) AccountBalance(ctx context.Context, accountID string) (*big.Int, error) {
	var result viewAccountResult
	err := c.query(ctx, map[string]interface{}{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   accountID,
	}, &result)
	if err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(result.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable account balance %q", result.Amount)
	}
	return balance, nil
}

// FtBalance returns an account's NEP-141 token balance.
func (c *NearClient) FtBalance(ctx context.Context, tokenContract, accountID string) (*big.Int, error) {
	var raw string
	err := c.ViewFunction(ctx, tokenContract, "ft_balance_of",
		map[string]string{"account_id": accountID}, &raw)
	if err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable ft balance %q", raw)
	}
	return balance, nil
}

// StorageBalanceBounds returns a NEP-145 contract's minimum storage deposit.
func (c *NearClient) StorageBalanceBounds(ctx context.Context, tokenContract string) (*big.Int, error) {
	var bounds struct {
		Min string `json:"min"`
	}
	if err := c.ViewFunction(ctx, tokenContract, "storage_balance_bounds", struct{}{}, &bounds); err != nil {
		return nil, err
	}
	min, ok := new(big.Int).SetString(bounds.Min, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable storage bound %q", bounds.Min)
	}
	return min, nil
}

// IntentsSource reads intents-ledger balances through the settlement
// contract's multi-token view.
type IntentsSource struct {
	rpc      *NearClient
	contract string
}

// NewIntentsSource creates a balance source over the given settlement
// contract. An empty contract selects the default.
func NewIntentsSource(rpc *NearClient, contract string) *IntentsSource {
	if contract == "" {
		contract = DefaultIntentsContract
	}
	return &IntentsSource{rpc: rpc, contract: contract}
}

// Balances fetches the owner's intents balance for each base token, keyed by
// asset id.
func (s *IntentsSource) Balances(ctx context.Context, owner string, list []tokens.BaseToken) (map[string]amount.Amount, error) {
	tokenIDs := make([]string, 0, len(list))
	for _, t := range list {
		tokenIDs = append(tokenIDs, t.AssetID)
	}

	var raw []string
	err := s.rpc.ViewFunction(ctx, s.contract, "mt_batch_balance_of", map[string]interface{}{
		"account_id": owner,
		"token_ids":  tokenIDs,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("intents balance query failed: %w", err)
	}
	if len(raw) != len(list) {
		return nil, fmt.Errorf("intents balance query returned %d entries for %d tokens", len(raw), len(list))
	}

	out := make(map[string]amount.Amount, len(list))
	for i, t := range list {
		v, ok := new(big.Int).SetString(raw[i], 10)
		if !ok {
			return nil, fmt.Errorf("unparseable balance %q for %s", raw[i], t.AssetID)
		}
		out[t.AssetID] = amount.New(v, t.Decimals)
	}
	return out, nil
}
