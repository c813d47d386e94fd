package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/amount"
	"near-intents/pkg/balances"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
	"near-intents/pkg/withdraw"
)

var (
	balancesAll     bool
	balancesTimeout time.Duration
)

var balancesCmd = &cobra.Command{
	Use:   "balances [token]",
	Short: "Show your intents balances",
	Long: `Show your NEAR Intents balances, per chain. With a token argument only
that token's family is fetched; without one the whole catalog is queried.

Examples:
  near-intents balances
  near-intents balances USDC
  near-intents balances --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().BoolVar(&balancesAll, "all", false, "Include zero balances")
	balancesCmd.Flags().DurationVar(&balancesTimeout, "timeout", 30*time.Second, "How long to wait for the balance fetch")
}

func runBalances(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, log, err := setup(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := cmd.Context()

	relayClient := relay.NewClient(cfg.JWTToken, cfg.BaseURL, log)
	catalog, err := loadCatalog(ctx, relayClient, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	near := balances.NewNearClient(cfg.NearRPCUrl, log)
	source := balances.NewIntentsSource(near, cfg.IntentsContract)
	owner := withdraw.InternalUserID(cfg.SignerID)

	var (
		list   []tokens.BaseToken
		result map[string]amount.Amount
	)

	s := newSpinner("Fetching balances...")
	if !jsonOutput {
		s.Start()
	}

	if len(args) == 1 {
		token, ok := catalog.Lookup(args[0])
		if !ok {
			if !jsonOutput {
				s.Stop()
			}
			printError(fmt.Errorf("token %s not found. Try: near-intents list-tokens", args[0]))
			os.Exit(1)
		}
		list = token.Underlying()

		// The tracker supersedes in-flight fetches; for a one-shot command it
		// simply delivers the single result.
		tracker := balances.NewTracker(source, log)
		tracker.Refresh(ctx, balances.Params{Owner: owner, Token: token})
		select {
		case up := <-tracker.Updates():
			result, err = up.Balances, up.Err
		case <-time.After(balancesTimeout):
			err = fmt.Errorf("balance fetch timed out after %s", balancesTimeout)
		}
	} else {
		for _, t := range catalog.Base {
			list = append(list, t)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].AssetID < list[j].AssetID })
		result, err = source.Balances(ctx, owner, list)
	}

	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printBalancesJSON(owner, list, result)
	} else {
		displayBalances(owner, list, result)
	}
}

func displayBalances(owner string, list []tokens.BaseToken, result map[string]amount.Amount) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                          INTENTS BALANCES")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Account: %s\n", color.CyanString(owner))

	bySymbol := make(map[string][]tokens.BaseToken)
	for _, t := range list {
		bySymbol[strings.ToUpper(t.Symbol)] = append(bySymbol[strings.ToUpper(t.Symbol)], t)
	}
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	shown := 0
	for _, sym := range symbols {
		members := bySymbol[sym]
		total := amount.Amount{}
		rows := make([]string, 0, len(members))
		for _, t := range members {
			bal, ok := result[t.AssetID]
			if !ok || (bal.IsZero() && !balancesAll) {
				continue
			}
			total = amount.Add(total, bal)
			rows = append(rows, fmt.Sprintf("    %-12s %s",
				t.OriginChain, amount.Format(bal)))
		}
		if len(rows) == 0 {
			continue
		}
		shown++
		fmt.Printf("\n  %s  %s\n", color.YellowString(sym), color.GreenString(amount.Format(total)))
		for _, row := range rows {
			fmt.Println(row)
		}
	}

	if shown == 0 {
		fmt.Println("\n  No balances found.")
	}
	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}

func printBalancesJSON(owner string, list []tokens.BaseToken, result map[string]amount.Amount) {
	type row struct {
		AssetID string `json:"asset_id"`
		Symbol  string `json:"symbol"`
		Chain   string `json:"chain"`
		Balance string `json:"balance"`
	}
	rows := make([]row, 0, len(list))
	for _, t := range list {
		bal, ok := result[t.AssetID]
		if !ok || (bal.IsZero() && !balancesAll) {
			continue
		}
		rows = append(rows, row{
			AssetID: t.AssetID,
			Symbol:  t.Symbol,
			Chain:   t.OriginChain,
			Balance: amount.Format(bal),
		})
	}
	output := map[string]interface{}{"account": owner, "balances": rows}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}
