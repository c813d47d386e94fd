package chains

import "strings"

// Chain names as used by the intents token catalog.
const (
	Near        = "near"
	Eth         = "eth"
	Base        = "base"
	Arbitrum    = "arbitrum"
	Polygon     = "polygon"
	Bsc         = "bsc"
	Gnosis      = "gnosis"
	Berachain   = "berachain"
	Aurora      = "aurora"
	Bitcoin     = "bitcoin"
	Solana      = "solana"
	Dogecoin    = "dogecoin"
	XRPLedger   = "xrpledger"
	Zcash       = "zcash"
	Ton         = "ton"
	Stellar     = "stellar"
	Tron        = "tron"
	Hyperliquid = "hyperliquid"

	// NearIntents is the pseudo-chain for internal, bridge-free transfers
	// between intents accounts. It is not a real ledger; withdrawals targeting
	// it become internal transfer intents with zero fee.
	NearIntents = "near_intents"
)

// Family groups chains by address format and signing scheme.
type Family string

const (
	FamilyNear    Family = "near"
	FamilyEVM     Family = "evm"
	FamilySolana  Family = "solana"
	FamilyBitcoin Family = "bitcoin"
	FamilyTon     Family = "ton"
	FamilyStellar Family = "stellar"
	FamilyTron    Family = "tron"
	FamilyXRP     Family = "xrp"
	FamilyUnknown Family = "unknown"
)

var evmChains = map[string]bool{
	Eth: true, Base: true, Arbitrum: true, Polygon: true, Bsc: true,
	Gnosis: true, Berachain: true, Aurora: true, Hyperliquid: true,
}

// FamilyOf returns the address family for a chain name.
func FamilyOf(chain string) Family {
	chain = strings.ToLower(chain)
	switch {
	case chain == Near || chain == NearIntents:
		return FamilyNear
	case evmChains[chain]:
		return FamilyEVM
	case chain == Solana:
		return FamilySolana
	case chain == Bitcoin || chain == Dogecoin || chain == Zcash:
		return FamilyBitcoin
	case chain == Ton:
		return FamilyTon
	case chain == Stellar:
		return FamilyStellar
	case chain == Tron:
		return FamilyTron
	case chain == XRPLedger:
		return FamilyXRP
	default:
		return FamilyUnknown
	}
}

// IsEVM reports whether the chain uses EVM hex addressing.
func IsEVM(chain string) bool {
	return evmChains[strings.ToLower(chain)]
}

// RequiresMemo reports whether withdrawals to the chain carry a destination
// memo. Only ledgers that demand a tag accept one; everywhere else the memo
// is forced empty.
func RequiresMemo(chain string) bool {
	return strings.ToLower(chain) == XRPLedger
}

// HyperliquidRouteChain returns the chain actually used to generate the
// deposit address for a Hyperliquid withdrawal, chosen by asset class.
func HyperliquidRouteChain(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "BTC", "WBTC":
		return Bitcoin
	case "SOL":
		return Solana
	default:
		return Eth
	}
}
