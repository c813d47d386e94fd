package bridges

import (
	"near-intents/pkg/chains"
	"near-intents/pkg/tokens"
)

// RouteKind selects which withdrawal path materializes the intents. Internal
// transfers are first-class here even though the form still addresses them via
// the near_intents pseudo-chain.
type RouteKind string

const (
	RouteInternal     RouteKind = "internal"
	RouteVirtualChain RouteKind = "virtual_chain"
	RouteNearNative   RouteKind = "near_native"
	RouteOmni         RouteKind = "omni"
	RouteDefault      RouteKind = "default"
)

// SelectRoute picks the route config for a destination deployment.
func SelectRoute(targetChain string, dep tokens.Deployment) RouteKind {
	if targetChain == chains.NearIntents {
		return RouteInternal
	}
	switch {
	case dep.Bridge == tokens.BridgeAuroraEngine || targetChain == chains.Hyperliquid:
		return RouteVirtualChain
	case dep.Chain == chains.Near:
		return RouteNearNative
	case dep.Bridge == tokens.BridgeHotOmni || dep.Bridge == tokens.BridgeNearOmni:
		return RouteOmni
	default:
		return RouteDefault
	}
}
