package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"near-intents/config"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
)

var rootCmd = &cobra.Command{
	Use:   "near-intents",
	Short: "A CLI for withdrawals and deposits on the NEAR Intents ledger",
	Long: `near-intents moves value between your NEAR Intents balance and external
chains. It prepares withdrawals (direct balance plus a swap leg where needed),
hands the signable intents to your wallet, and tracks settlement. Deposits get
a relay-generated address and can be sent automatically from configured
wallets.

Examples:
  near-intents withdraw 100 USDC to 0x1234...abcd on arbitrum
  near-intents deposit 0.01 BTC from bitcoin
  near-intents balances USDC
  near-intents list-tokens --chain solana
  near-intents status --watch`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// setup loads the configuration and builds the logger every command shares.
// --verbose forces debug level regardless of the configured one.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

// loadCatalog fetches the relay's token list and groups it into the catalog.
func loadCatalog(ctx context.Context, relayClient *relay.Client, jsonOutput bool) (*tokens.Catalog, error) {
	s := newSpinner("Loading token catalog...")
	if !jsonOutput {
		s.Start()
	}
	entries, err := relayClient.TokenCatalog(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return nil, err
	}
	return tokens.BuildCatalog(entries)
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
