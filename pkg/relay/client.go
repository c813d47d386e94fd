package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"go.uber.org/zap"

	"near-intents/pkg/tokens"
)

// ErrNoLiquidity is returned when the relay has no solver willing to quote the
// requested pair at the requested size.
var ErrNoLiquidity = errors.New("no liquidity providers for this pair")

// Client wraps the 1Click SDK with typed calls for the catalog, quotes,
// execution status and deposit submission.
type Client struct {
	api *oneclick.APIClient
	jwt string
	log *zap.Logger
}

// NewClient creates an authenticated relay client. An empty baseURL keeps the
// SDK's default server.
func NewClient(jwtToken, baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := oneclick.NewConfiguration()
	if baseURL != "" {
		cfg.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}
	return &Client{
		api: oneclick.NewAPIClient(cfg),
		jwt: jwtToken,
		log: log,
	}
}

func (c *Client) authCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwt)
}

// TokenCatalog fetches the supported-token list and maps it into catalog
// entries, tagging each with its bridge kind.
func (c *Client) TokenCatalog(ctx context.Context) ([]tokens.CatalogEntry, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token catalog returned status %d", httpResp.StatusCode)
	}

	entries := make([]tokens.CatalogEntry, 0, len(resp))
	for _, t := range resp {
		assetID := t.GetAssetId()
		chain := strings.ToLower(t.GetBlockchain())
		entries = append(entries, tokens.CatalogEntry{
			AssetID:         assetID,
			Symbol:          t.GetSymbol(),
			Decimals:        uint8(t.GetDecimals()),
			Blockchain:      chain,
			ContractAddress: t.GetContractAddress(),
			Bridge:          bridgeKindFor(assetID, chain),
		})
	}
	return entries, nil
}

// bridgeKindFor classifies an asset's bridge from its id and chain. PoA-bridged
// assets live under *.omft.near; multi-token (nep245) assets ride the HOT
// bridge; aurora deployments go through the engine precompile.
func bridgeKindFor(assetID, chain string) tokens.BridgeKind {
	switch {
	case chain == "aurora":
		return tokens.BridgeAuroraEngine
	case strings.HasPrefix(assetID, "nep245:"):
		return tokens.BridgeHotOmni
	case strings.Contains(assetID, ".omft.near"):
		return tokens.BridgePoa
	case strings.Contains(assetID, "omni.near"):
		return tokens.BridgeNearOmni
	default:
		return tokens.BridgeDirect
	}
}

// Quote is the relay's answer for one swap leg.
type Quote struct {
	AmountIn       *big.Int
	AmountOut      *big.Int
	DepositAddress string // empty for dry quotes
	Deadline       time.Time
	TimeEstimate   int
}

// QuoteRequest describes one swap leg to price.
type QuoteRequest struct {
	OriginAsset      string
	DestinationAsset string
	AmountIn         *big.Int
	Recipient        string
	RefundTo         string
	// Dry quotes only price the leg; non-dry quotes materialize a deposit
	// address and commit solver liquidity.
	Dry bool
}

const defaultSlippageTolerance = 100 // 1%

// RequestQuote prices a swap leg through the relay.
func (c *Client) RequestQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	refundTo := req.RefundTo
	if refundTo == "" {
		refundTo = req.Recipient
	}
	deadline := time.Now().Add(24 * time.Hour)

	quoteReq := oneclick.NewQuoteRequest(
		req.Dry,
		"EXACT_INPUT",
		defaultSlippageTolerance,
		req.OriginAsset,
		"INTENTS",
		req.DestinationAsset,
		req.AmountIn.String(),
		refundTo,
		"INTENTS",
		req.Recipient,
		"DESTINATION_CHAIN",
		deadline,
	)

	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.authCtx(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, c.quoteError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("quote returned status %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	details := resp.GetQuote()
	amountIn, ok := new(big.Int).SetString(details.GetAmountIn(), 10)
	if !ok {
		return nil, fmt.Errorf("unparseable amountIn %q in quote", details.GetAmountIn())
	}
	amountOut, ok := new(big.Int).SetString(details.GetAmountOut(), 10)
	if !ok {
		return nil, fmt.Errorf("unparseable amountOut %q in quote", details.GetAmountOut())
	}

	return &Quote{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		DepositAddress: details.GetDepositAddress(),
		Deadline:       deadline,
		TimeEstimate:   int(details.GetTimeEstimate()),
	}, nil
}

// quoteError digs the relay's message out of an error response body. A quote
// the relay cannot fill maps to ErrNoLiquidity.
func (c *Client) quoteError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote: %w", err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return fmt.Errorf("failed to get quote (status %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			if strings.Contains(strings.ToLower(message), "no quote") {
				return ErrNoLiquidity
			}
			return fmt.Errorf("relay error (status %d): %s", httpResp.StatusCode, message)
		}
	}
	return fmt.Errorf("relay error (status %d): %s", httpResp.StatusCode, string(body))
}

// ExecutionStatus fetches the settlement status for a deposit address.
func (c *Client) ExecutionStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.authCtx(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status returned %d", httpResp.StatusCode)
	}
	return resp, nil
}

// SubmitDepositTx notifies the relay of a sent deposit transaction.
func (c *Client) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.authCtx(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("submit deposit returned %d", httpResp.StatusCode)
	}
	return nil
}
