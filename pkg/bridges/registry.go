package bridges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TokenLimits holds the PoA bridge's per-token minimums and flat withdrawal
// fee, all in the token's own atomic units.
type TokenLimits struct {
	MinDeposit    *big.Int
	MinWithdrawal *big.Int
	WithdrawalFee *big.Int
}

// Registry queries the PoA bridge service for supported tokens and their
// limits over JSON-RPC.
type Registry struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewRegistry creates a registry client for the PoA bridge RPC endpoint.
func NewRegistry(baseURL string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

type rpcRequest struct {
	JSONRpc string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type supportedToken struct {
	IntentsTokenID       string `json:"intents_token_id"`
	MinDepositAmount     string `json:"min_deposit_amount"`
	MinWithdrawalAmount  string `json:"min_withdrawal_amount"`
	WithdrawalFee        string `json:"withdrawal_fee"`
}

type supportedTokensResult struct {
	Tokens []supportedToken `json:"tokens"`
}

// SupportedTokens fetches the bridge's token registry: asset id to limits.
func (r *Registry) SupportedTokens(ctx context.Context) (map[string]TokenLimits, error) {
	var result supportedTokensResult
	if err := r.call(ctx, "supported_tokens", []interface{}{struct{}{}}, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch supported tokens: %w", err)
	}

	limits := make(map[string]TokenLimits, len(result.Tokens))
	for _, t := range result.Tokens {
		entry := TokenLimits{}
		var ok bool
		if entry.MinDeposit, ok = new(big.Int).SetString(t.MinDepositAmount, 10); !ok {
			r.log.Warn("skipping token with bad min deposit", zap.String("token", t.IntentsTokenID))
			continue
		}
		if entry.MinWithdrawal, ok = new(big.Int).SetString(t.MinWithdrawalAmount, 10); !ok {
			r.log.Warn("skipping token with bad min withdrawal", zap.String("token", t.IntentsTokenID))
			continue
		}
		if entry.WithdrawalFee, ok = new(big.Int).SetString(t.WithdrawalFee, 10); !ok {
			r.log.Warn("skipping token with bad withdrawal fee", zap.String("token", t.IntentsTokenID))
			continue
		}
		limits[t.IntentsTokenID] = entry
	}
	return limits, nil
}

func (r *Registry) call(ctx context.Context, method string, params, out interface{}) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRpc: "2.0",
		ID:      "near-intents",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rpc", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("bridge RPC request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge RPC returned status %d: %s", httpResp.StatusCode, string(body))
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("bridge RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return json.Unmarshal(resp.Result, out)
}
