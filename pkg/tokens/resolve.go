package tokens

import (
	"fmt"

	"near-intents/pkg/chains"
)

// Families groups base tokens by their abstract family id (AID), e.g. every
// chain-deployment of USDC under one key.
type Families map[string][]BaseToken

// ErrNoCorrespondingToken is returned when no deployment of the token exists
// on the requested chain. This indicates a token-list construction bug, not a
// transient fault; callers treat it as fatal.
type ErrNoCorrespondingToken struct {
	Symbol string
	Chain  string
}

func (e *ErrNoCorrespondingToken) Error() string {
	return fmt.Sprintf("no corresponding token found for %s on %s", e.Symbol, e.Chain)
}

// ResolveTokenOut derives the concrete destination token for a withdrawal from
// the input token and the target blockchain.
//
// The near_intents pseudo-chain needs no routing: any representative base
// token of the input serves, since settlement stays internal. Hyperliquid is a
// virtual route; the chain actually used for deposit address generation is
// substituted by asset class before normal resolution. Otherwise the token's
// family (or, if untagged, its own underlying tokens) is searched for a member
// deployed on the target chain; first match wins.
func ResolveTokenOut(targetChain string, tokenIn Token, families Families) (BaseToken, Deployment, error) {
	if targetChain == chains.NearIntents {
		rep := Representative(tokenIn)
		var dep Deployment
		if len(rep.Deployments) > 0 {
			dep = rep.Deployments[0]
		}
		return rep, dep, nil
	}

	chain := targetChain
	if targetChain == chains.Hyperliquid {
		chain = chains.HyperliquidRouteChain(tokenIn.TokenSymbol())
	}

	candidates := tokenIn.Underlying()
	if famID := familyID(tokenIn); famID != "" {
		if members, ok := families[famID]; ok {
			candidates = members
		}
	}

	for _, candidate := range candidates {
		if candidate.OriginChain == chain {
			if dep, ok := candidate.DeploymentOn(chain); ok {
				return candidate, dep, nil
			}
			if len(candidate.Deployments) > 0 {
				return candidate, candidate.Deployments[0], nil
			}
		}
	}
	for _, candidate := range candidates {
		if dep, ok := candidate.DeploymentOn(chain); ok {
			return candidate, dep, nil
		}
	}

	return BaseToken{}, Deployment{}, &ErrNoCorrespondingToken{Symbol: tokenIn.TokenSymbol(), Chain: targetChain}
}

func familyID(t Token) string {
	switch v := t.(type) {
	case BaseToken:
		return v.FamilyID
	case UnifiedToken:
		return v.FamilyID
	default:
		return ""
	}
}
