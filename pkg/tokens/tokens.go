package tokens

import (
	"fmt"

	"near-intents/pkg/amount"
)

// BridgeKind identifies the mechanism that moves a deployment's value between
// the intents ledger and its external chain. It determines fee and
// minimum-withdrawal semantics.
type BridgeKind string

const (
	BridgeDirect       BridgeKind = "direct"
	BridgePoa          BridgeKind = "poa"
	BridgeAuroraEngine BridgeKind = "aurora_engine"
	BridgeHotOmni      BridgeKind = "hot_omni"
	BridgeNearOmni     BridgeKind = "near_omni"
)

// Deployment is one concrete representation of a token on one chain: either a
// fungible contract or the chain's native asset.
type Deployment struct {
	Chain    string
	Address  string // contract address, empty for the native asset
	Decimals uint8
	Bridge   BridgeKind
}

// Native reports whether the deployment is the chain's native asset.
func (d Deployment) Native() bool {
	return d.Address == ""
}

// BaseToken is a single on-chain asset identified by its intents asset id.
// Every base token has at least one deployment.
type BaseToken struct {
	AssetID     string
	Symbol      string
	Name        string
	Decimals    uint8
	OriginChain string
	FamilyID    string // abstract family (AID) shared across chains; may be empty
	Deployments []Deployment
}

// DeploymentOn returns the token's deployment on the given chain, if any.
func (t BaseToken) DeploymentOn(chain string) (Deployment, bool) {
	for _, d := range t.Deployments {
		if d.Chain == chain {
			return d, true
		}
	}
	return Deployment{}, false
}

// UnifiedToken is a virtual aggregation of base tokens that represent the same
// asset on different chains (e.g. USDC on five chains).
type UnifiedToken struct {
	ID       string
	Symbol   string
	FamilyID string
	Tokens   []BaseToken
}

// Token is the closed base-or-unified sum. The two concrete types are the only
// implementations; dispatch with a type switch.
type Token interface {
	TokenSymbol() string
	// Underlying returns the base tokens the value can live in: the token
	// itself, or every member of the unified group.
	Underlying() []BaseToken
	sealed()
}

func (t BaseToken) TokenSymbol() string    { return t.Symbol }
func (t BaseToken) Underlying() []BaseToken { return []BaseToken{t} }
func (t BaseToken) sealed()                {}

func (t UnifiedToken) TokenSymbol() string    { return t.Symbol }
func (t UnifiedToken) Underlying() []BaseToken { return t.Tokens }
func (t UnifiedToken) sealed()                {}

// Representative returns a base token standing in for the whole token: the
// token itself, or the first member of a unified group.
func Representative(t Token) BaseToken {
	under := t.Underlying()
	if len(under) == 0 {
		panic(fmt.Sprintf("token %s has no underlying base tokens", t.TokenSymbol()))
	}
	return under[0]
}

// TotalBalance sums the balances of all underlying base tokens, normalizing
// scales as it goes. The second result is false when no underlying token has a
// recorded balance at all.
func TotalBalance(t Token, balances map[string]amount.Amount) (amount.Amount, bool) {
	var total amount.Amount
	found := false
	for _, base := range t.Underlying() {
		bal, ok := balances[base.AssetID]
		if !ok {
			continue
		}
		if !found {
			total = bal.Clone()
			found = true
			continue
		}
		total = amount.Add(total, bal)
	}
	return total, found
}
