package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all supported tokens",
	Long: `List all tokens in the intents catalog, grouped into unified families
where the same asset is deployed on multiple chains.

You can filter tokens by blockchain or symbol.

Examples:
  near-intents list-tokens
  near-intents list-tokens --chain solana
  near-intents list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, log, err := setup(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	relayClient := relay.NewClient(cfg.JWTToken, cfg.BaseURL, log)
	catalog, err := loadCatalog(ctx, relayClient, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterCatalog(catalog, filterChain, filterSymbol)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tokensJSON(filtered), "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayCatalog(filtered)
	}
}

func filterCatalog(catalog *tokens.Catalog, chain, symbol string) []tokens.BaseToken {
	out := make([]tokens.BaseToken, 0, len(catalog.Base))
	for _, t := range catalog.Base {
		if chain != "" && !strings.EqualFold(t.OriginChain, chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OriginChain != out[j].OriginChain {
			return out[i].OriginChain < out[j].OriginChain
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

type tokenRow struct {
	AssetID    string `json:"asset_id"`
	Symbol     string `json:"symbol"`
	Blockchain string `json:"blockchain"`
	Decimals   uint8  `json:"decimals"`
	Bridge     string `json:"bridge"`
	Unified    bool   `json:"unified"`
}

func tokensJSON(list []tokens.BaseToken) []tokenRow {
	rows := make([]tokenRow, 0, len(list))
	for _, t := range list {
		bridge := ""
		if len(t.Deployments) > 0 {
			bridge = string(t.Deployments[0].Bridge)
		}
		rows = append(rows, tokenRow{
			AssetID:    t.AssetID,
			Symbol:     t.Symbol,
			Blockchain: t.OriginChain,
			Decimals:   t.Decimals,
			Bridge:     bridge,
		})
	}
	return rows
}

func displayCatalog(list []tokens.BaseToken) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	byChain := make(map[string][]tokens.BaseToken)
	for _, t := range list {
		byChain[t.OriginChain] = append(byChain[t.OriginChain], t)
	}

	chainNames := make([]string, 0, len(byChain))
	for chain := range byChain {
		chainNames = append(chainNames, chain)
	}
	sort.Strings(chainNames)

	for _, chain := range chainNames {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, t := range byChain[chain] {
			bridge := ""
			if len(t.Deployments) > 0 {
				bridge = string(t.Deployments[0].Bridge)
			}
			assetID := t.AssetID
			if len(assetID) > 44 {
				assetID = assetID[:41] + "..."
			}
			fmt.Printf("  %-10s  %2d decimals  %-13s %s\n",
				color.YellowString(t.Symbol),
				t.Decimals,
				bridge,
				color.HiBlackString(assetID))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(list), len(chainNames))
}
