package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/balances"
	"near-intents/pkg/withdraw"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status [submission-id]",
	Short: "Show recorded withdrawals and their settlement status",
	Long: `Show the withdrawals recorded in the local history file. With --watch,
submissions still pending are polled against the chain until they settle or
fail; watching resumes across restarts from the history file.

Examples:
  near-intents status
  near-intents status 8f14e45f-ceea-4672-95f2-0dd419db87c5
  near-intents status --watch
  near-intents status --watch --interval 10`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll pending submissions until they settle")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

// settlementChecker resolves a submission's settlement transaction on NEAR.
type settlementChecker struct {
	near   *balances.NearClient
	signer string
}

func (c *settlementChecker) Check(ctx context.Context, sub withdraw.Submission) (withdraw.SubmissionStatus, error) {
	if sub.TxHash == "" {
		return sub.Status, nil
	}
	outcome, err := c.near.TxStatus(ctx, sub.TxHash, c.signer)
	if err != nil {
		return sub.Status, err
	}
	switch outcome {
	case balances.TxSucceeded:
		return withdraw.StatusSettled, nil
	case balances.TxFailed:
		return withdraw.StatusFailed, nil
	default:
		return withdraw.StatusPending, nil
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, log, err := setup(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer log.Sync()

	history, err := withdraw.NewHistory(cfg.HistoryFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		sub, err := history.Get(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(sub, "", "  ")
			fmt.Println(string(jsonData))
		} else {
			displaySubmission(sub)
		}
		return
	}

	if watchStatus {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		near := balances.NewNearClient(cfg.NearRPCUrl, log)
		checker := &settlementChecker{near: near, signer: cfg.SignerID}
		watchSubmissions(cmd.Context(), history, checker)
		return
	}

	subs := history.List()
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(subs, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displaySubmissions(subs)
}

// watchSubmissions polls every pending submission until all reach a terminal
// status.
func watchSubmissions(ctx context.Context, history *withdraw.History, checker *settlementChecker) {
	pending := history.Pending()
	if len(pending) == 0 {
		fmt.Println("\nNo pending withdrawals to watch.")
		return
	}

	fmt.Printf("\nWatching %d pending withdrawal(s). Checking every %d seconds. Press Ctrl+C to stop.\n\n",
		len(pending), watchInterval)
	for _, sub := range pending {
		fmt.Printf("  %s  %s %s -> %s  %s\n",
			shortID(sub.ID), sub.Amount, symbolOf(sub.AssetID), sub.Recipient, coloredStatus(sub.Status))
	}

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	remaining := make(map[string]bool, len(pending))
	for _, sub := range pending {
		remaining[sub.ID] = true
	}

	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for id := range remaining {
			sub, err := history.Get(id)
			if err != nil {
				delete(remaining, id)
				continue
			}
			status, err := checker.Check(ctx, *sub)
			if err != nil {
				color.Red("  %s  check failed: %v", shortID(id), err)
				continue
			}
			if status == sub.Status {
				continue
			}
			if err := history.UpdateStatus(id, status, ""); err != nil {
				color.Red("  %s  failed to record status: %v", shortID(id), err)
			}
			fmt.Printf("  %s  %s\n", shortID(id), coloredStatus(status))
			if status != withdraw.StatusPending {
				delete(remaining, id)
			}
		}
	}

	printSuccess("All watched withdrawals reached a terminal status.")
}

func displaySubmissions(subs []*withdraw.Submission) {
	if len(subs) == 0 {
		fmt.Println("\nNo withdrawals recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            WITHDRAWAL HISTORY")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, sub := range subs {
		fmt.Printf("  %s  %s  %-8s %-12s %s  %s\n",
			shortID(sub.ID),
			sub.CreatedAt.Format("2006-01-02 15:04"),
			sub.Amount,
			symbolOf(sub.AssetID),
			coloredStatus(sub.Status),
			color.HiBlackString(sub.Recipient))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d withdrawal(s)\n\n", len(subs))
}

func displaySubmission(sub *withdraw.Submission) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      WITHDRAWAL STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:        %s\n", color.CyanString(sub.ID))
	fmt.Printf("  Created:   %s\n", sub.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Asset:     %s\n", sub.AssetID)
	fmt.Printf("  Chain:     %s\n", sub.Chain)
	fmt.Printf("  Amount:    %s\n", sub.Amount)
	fmt.Printf("  Recipient: %s\n", color.CyanString(sub.Recipient))
	fmt.Printf("  Status:    %s\n", coloredStatus(sub.Status))
	if sub.TxHash != "" {
		fmt.Printf("  Tx Hash:   %s\n", color.HiBlackString(sub.TxHash))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredStatus(status withdraw.SubmissionStatus) string {
	switch status {
	case withdraw.StatusSettled:
		return color.GreenString(strings.ToUpper(string(status)))
	case withdraw.StatusFailed:
		return color.RedString(strings.ToUpper(string(status)))
	default:
		return color.YellowString(strings.ToUpper(string(status)))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// symbolOf pulls a readable token name out of an asset id for list display.
func symbolOf(assetID string) string {
	if idx := strings.Index(assetID, ":"); idx >= 0 {
		assetID = assetID[idx+1:]
	}
	if idx := strings.Index(assetID, "."); idx >= 0 {
		assetID = assetID[:idx]
	}
	return assetID
}
