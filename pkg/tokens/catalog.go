package tokens

import (
	"fmt"
	"sort"
	"strings"
)

// CatalogEntry is one row of the token catalog as served by the relay, before
// grouping into unified tokens.
type CatalogEntry struct {
	AssetID         string
	Symbol          string
	Name            string
	Decimals        uint8
	Blockchain      string
	ContractAddress string
	Bridge          BridgeKind
}

// Catalog is the full token universe: base tokens keyed by asset id, unified
// groupings, and the family index used by tokenOut resolution.
type Catalog struct {
	Base     map[string]BaseToken
	Unified  map[string]UnifiedToken
	Families Families
}

// BuildCatalog assembles a Catalog from raw relay entries. Entries sharing a
// symbol are grouped into one family and one unified token. Duplicate asset
// ids with differing decimals are a data error and are rejected outright, not
// merged.
func BuildCatalog(entries []CatalogEntry) (*Catalog, error) {
	base := make(map[string]BaseToken)
	for _, e := range entries {
		if e.AssetID == "" {
			return nil, fmt.Errorf("catalog entry %s has empty asset id", e.Symbol)
		}
		if prev, ok := base[e.AssetID]; ok {
			if prev.Decimals != e.Decimals {
				return nil, fmt.Errorf("duplicate asset %s with conflicting decimals (%d vs %d)",
					e.AssetID, prev.Decimals, e.Decimals)
			}
			continue
		}
		bridge := e.Bridge
		if bridge == "" {
			bridge = BridgeDirect
		}
		famID := strings.ToUpper(e.Symbol)
		base[e.AssetID] = BaseToken{
			AssetID:     e.AssetID,
			Symbol:      e.Symbol,
			Name:        e.Name,
			Decimals:    e.Decimals,
			OriginChain: strings.ToLower(e.Blockchain),
			FamilyID:    famID,
			Deployments: []Deployment{{
				Chain:    strings.ToLower(e.Blockchain),
				Address:  e.ContractAddress,
				Decimals: e.Decimals,
				Bridge:   bridge,
			}},
		}
	}

	families := make(Families)
	for _, t := range base {
		families[t.FamilyID] = append(families[t.FamilyID], t)
	}
	for id := range families {
		members := families[id]
		sort.Slice(members, func(i, j int) bool { return members[i].AssetID < members[j].AssetID })
		families[id] = members
	}

	unified := make(map[string]UnifiedToken)
	for id, members := range families {
		if len(members) < 2 {
			continue
		}
		unified[id] = UnifiedToken{
			ID:       "unified:" + strings.ToLower(id),
			Symbol:   members[0].Symbol,
			FamilyID: id,
			Tokens:   members,
		}
	}

	return &Catalog{Base: base, Unified: unified, Families: families}, nil
}

// Lookup finds a token by symbol, preferring the unified grouping when one
// exists so balances aggregate across chains.
func (c *Catalog) Lookup(symbol string) (Token, bool) {
	famID := strings.ToUpper(symbol)
	if u, ok := c.Unified[famID]; ok {
		return u, true
	}
	for _, t := range c.Base {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return nil, false
}

// LookupOnChain finds the base token with the given symbol deployed on the
// given chain.
func (c *Catalog) LookupOnChain(symbol, chain string) (BaseToken, bool) {
	chain = strings.ToLower(chain)
	for _, t := range c.Base {
		if strings.EqualFold(t.Symbol, symbol) && t.OriginChain == chain {
			return t, true
		}
	}
	return BaseToken{}, false
}
