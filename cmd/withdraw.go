package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/balances"
	"near-intents/pkg/bridges"
	"near-intents/pkg/intents"
	"near-intents/pkg/parser"
	"near-intents/pkg/relay"
	"near-intents/pkg/withdraw"
)

var (
	withdrawChain       string
	withdrawMemo        string
	withdrawMinReceived string
	withdrawYes         bool
	withdrawTimeout     time.Duration
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <token> to <recipient> [on <chain>]",
	Short: "Withdraw tokens from your intents balance to an external chain",
	Long: `Withdraw tokens from your NEAR Intents balance to a recipient on an
external chain. When your balance of the token on the destination chain does
not cover the amount, the remainder is swapped in from your balances of the
same token on other chains.

The pseudo-chain near_intents transfers between intents accounts directly:
no bridge crossing and no fee.

Examples:
  near-intents withdraw 100 USDC to 0x1234...abcd on arbitrum
  near-intents withdraw 0.5 BTC to bc1q... on bitcoin
  near-intents withdraw 25 USDC to bob.near on near_intents
  near-intents withdraw 50 XRP to r4bA... on xrpledger --memo 12345`,
	Args: cobra.MinimumNArgs(3),
	Run:  runWithdraw,
}

func init() {
	rootCmd.AddCommand(withdrawCmd)

	withdrawCmd.Flags().StringVar(&withdrawChain, "chain", "", "Destination chain (overrides 'on <chain>')")
	withdrawCmd.Flags().StringVar(&withdrawMemo, "memo", "", "Destination memo/tag (ledgers that require one)")
	withdrawCmd.Flags().StringVar(&withdrawMinReceived, "min-received", "", "Refuse the withdrawal if the received amount would be lower")
	withdrawCmd.Flags().BoolVarP(&withdrawYes, "yes", "y", false, "Skip confirmation prompt")
	withdrawCmd.Flags().DurationVar(&withdrawTimeout, "timeout", 60*time.Second, "How long to wait for preparation")
}

func runWithdraw(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseWithdrawCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if withdrawChain != "" {
		req.Chain = strings.ToLower(withdrawChain)
	}
	if req.Chain == "" {
		printError(fmt.Errorf("destination chain required: add 'on <chain>' or --chain"))
		os.Exit(1)
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	relayClient := relay.NewClient(cfg.JWTToken, cfg.BaseURL, log)
	catalog, err := loadCatalog(ctx, relayClient, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	token, ok := catalog.Lookup(req.Symbol)
	if !ok {
		printError(fmt.Errorf("token %s not found. Try: near-intents list-tokens", req.Symbol))
		os.Exit(1)
	}

	form, err := withdraw.NewForm(cfg.SignerID, token, req.Chain, catalog.Families)
	if err != nil {
		printError(fmt.Errorf("%s has no deployment on %s: %w", req.Symbol, req.Chain, err))
		os.Exit(1)
	}

	// The bridge registry populates in the background; preparation waits for
	// it with a bounded timeout.
	registry := bridges.NewRegistry(cfg.BridgeBaseURL, log)
	cache := bridges.NewCache(registry, log)
	go func() {
		if err := cache.Populate(ctx); err != nil {
			log.Warn("failed to populate bridge registry", zap.Error(err))
		}
	}()

	poller := withdraw.NewPoller(relayClient, 0, log)
	go poller.Run(ctx)

	sdk := bridges.NewSDK(cache, nil)
	preparer := withdraw.NewPreparer(sdk, cache, poller, log)

	near := balances.NewNearClient(cfg.NearRPCUrl, log)
	source := balances.NewIntentsSource(near, cfg.IntentsContract)
	tracker := balances.NewTracker(source, log)

	history, err := withdraw.NewHistory(cfg.HistoryFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctrl := withdraw.NewController(withdraw.Deps{
		Preparer:  preparer,
		Poller:    poller,
		Submitter: &walletSubmitter{in: bufio.NewReader(os.Stdin)},
		Checker:   &settlementChecker{near: near, signer: cfg.SignerID},
		History:   history,
		Families:  catalog.Families,
		Log:       log,
	}, form)
	go ctrl.Run(ctx)

	ctrl.Send(withdraw.UpdateAmount{Input: req.Amount})
	ctrl.Send(withdraw.UpdateRecipient{Recipient: req.Recipient})
	if withdrawMemo != "" {
		ctrl.Send(withdraw.UpdateDestinationMemo{Memo: withdrawMemo})
	}
	if withdrawMinReceived != "" {
		min, res := amount.Parse(withdrawMinReceived, form.TokenOut.Decimals)
		if res != amount.ParseOK {
			printError(fmt.Errorf("invalid --min-received amount %q", withdrawMinReceived))
			os.Exit(1)
		}
		ctrl.Send(withdraw.UpdateMinReceived{Amount: min})
	}

	// Feed balance snapshots to the machine; the first one triggers
	// preparation once the form is complete.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case up := <-tracker.Updates():
				if up.Err == nil {
					ctrl.Send(withdraw.BalancesUpdated{Balances: up.Balances})
				}
			}
		}
	}()
	tracker.Refresh(ctx, balances.Params{
		Owner: withdraw.InternalUserID(cfg.SignerID),
		Token: token,
	})

	prep, err := awaitPreparation(ctrl, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	snap := ctrl.Snapshot()
	if jsonOutput {
		printPreparationJSON(snap.Form, prep)
		if !withdrawYes {
			return
		}
	} else {
		displayPreparation(snap.Form, prep)
	}

	if !withdrawYes && !jsonOutput {
		if !confirm("Proceed with withdrawal?") {
			fmt.Println("\nWithdrawal cancelled.")
			return
		}
	}

	ctrl.Send(withdraw.Submit{})
	txHash, err := awaitSubmission(ctrl)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	printSuccess(color.GreenString("Withdrawal submitted."))
	fmt.Printf("  Transaction: %s\n", color.CyanString(txHash))
	fmt.Println("\nTrack settlement with:")
	color.Cyan("  near-intents status --watch\n")
}

// awaitPreparation polls the machine until a preparation (or a typed failure)
// lands. Form-level validation errors surface immediately.
func awaitPreparation(ctrl *withdraw.Controller, jsonOutput bool) (*withdraw.Preparation, error) {
	s := newSpinner("Preparing withdrawal...")
	if !jsonOutput {
		s.Start()
		defer s.Stop()
	}

	deadline := time.Now().Add(withdrawTimeout)
	for {
		snap := ctrl.Snapshot()

		if snap.Form.AmountParse == amount.ParseInvalid {
			return nil, fmt.Errorf("invalid amount %q", snap.Form.AmountInput)
		}
		if snap.Form.AmountParse == amount.ParseNegative {
			return nil, fmt.Errorf("amount must be positive")
		}
		if snap.Form.RecipientErr != nil {
			return nil, fmt.Errorf("invalid recipient: %w", snap.Form.RecipientErr)
		}
		if snap.Form.MemoErr != nil {
			return nil, fmt.Errorf("invalid memo: %w", snap.Form.MemoErr)
		}

		if snap.PrepErr != nil {
			return nil, preparationFailure(snap.PrepErr)
		}
		if snap.Prep != nil {
			return snap.Prep, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("preparation timed out after %s", withdrawTimeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func preparationFailure(perr *withdraw.PreparationError) error {
	switch perr.Reason {
	case withdraw.ReasonAmountTooLow:
		return fmt.Errorf("%s: add %s to reach the minimum of %s",
			perr.Message(), amount.Format(perr.Shortfall), amount.Format(perr.Minimum))
	case withdraw.ReasonBalanceInsufficient:
		return fmt.Errorf("%s: your intents balance does not cover the amount", perr.Message())
	default:
		return perr
	}
}

// awaitSubmission polls until the submission started by Submit completes. If a
// background re-preparation claimed the machine before the Submit event landed,
// the event was dropped (submission fails closed) and the caller must re-run.
func awaitSubmission(ctrl *withdraw.Controller) (string, error) {
	submitted := false
	for {
		snap := ctrl.Snapshot()
		state := ctrl.State()
		switch {
		case state == withdraw.StateSubmitting:
			submitted = true
		case submitted || snap.SubmitErr != nil || snap.LastTxHash != "":
			if snap.SubmitErr != nil {
				return "", snap.SubmitErr
			}
			if snap.LastTxHash != "" {
				return snap.LastTxHash, nil
			}
		case state != withdraw.StateEditingIdle:
			return "", fmt.Errorf("preparation was superseded before submission; run the withdrawal again")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func displayPreparation(form withdraw.Form, prep *withdraw.Preparation) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 WITHDRAWAL PREPARED")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Token:       %s\n", color.YellowString(form.TokenOut.Symbol))
	fmt.Printf("  Destination: %s on %s\n", color.CyanString(form.Recipient), form.Blockchain)
	fmt.Printf("  Amount:      %s\n", amount.Format(prep.Total))
	fmt.Printf("  Direct:      %s\n", amount.Format(prep.Direct))
	for _, leg := range prep.SwapLegs {
		fmt.Printf("  Swap leg:    %s from %s -> %s out\n",
			amount.Format(leg.AmountIn), symbolOf(leg.OriginAsset),
			amount.FormatBig(leg.Quote.AmountOut, form.TokenOut.Decimals))
	}
	fmt.Printf("  Fee:         %s\n", amount.Format(prep.Fee.Fee))
	fmt.Printf("  Received:    %s\n", color.GreenString(amount.Format(prep.Received)))
	fmt.Printf("  Minimum:     %s\n", amount.Format(prep.Minimum))
	fmt.Printf("  Route:       %s\n", prep.Route)
	if form.Memo != "" {
		fmt.Printf("  Memo:        %s\n", color.MagentaString(form.Memo))
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func printPreparationJSON(form withdraw.Form, prep *withdraw.Preparation) {
	output := map[string]interface{}{
		"token":     form.TokenOut.Symbol,
		"asset_id":  form.TokenOut.AssetID,
		"chain":     form.Blockchain,
		"recipient": form.Recipient,
		"total":     amount.Format(prep.Total),
		"direct":    amount.Format(prep.Direct),
		"fee":       amount.Format(prep.Fee.Fee),
		"received":  amount.Format(prep.Received),
		"minimum":   amount.Format(prep.Minimum),
		"route":     prep.Route,
		"intents":   prep.Intents,
	}
	if len(prep.SwapLegs) > 0 {
		legs := make([]map[string]string, 0, len(prep.SwapLegs))
		for _, leg := range prep.SwapLegs {
			legs = append(legs, map[string]string{
				"origin_asset": leg.OriginAsset,
				"amount_in":    amount.Format(leg.AmountIn),
				"amount_out":   amount.FormatBig(leg.Quote.AmountOut, form.TokenOut.Decimals),
			})
		}
		output["swap_legs"] = legs
	}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}

// walletSubmitter hands the prepared intents to the user's wallet: it prints
// the canonical signable payload and records the settlement transaction hash
// the wallet reports back. Signing itself stays outside this process.
type walletSubmitter struct {
	in *bufio.Reader
}

func (w *walletSubmitter) Submit(_ context.Context, form withdraw.Form, prep *withdraw.Preparation) (string, error) {
	msg := intents.NewWalletMessage(form.SenderID, time.Now().Add(10*time.Minute), prep.Intents)
	payload, err := msg.Serialize()
	if err != nil {
		return "", err
	}

	fmt.Println("\nSign this message with your wallet:")
	fmt.Println()
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "  ", "  "); err == nil {
		fmt.Println("  " + pretty.String())
	} else {
		fmt.Println("  " + string(payload))
	}

	fmt.Print("\nSettlement transaction hash (empty to cancel): ")
	line, err := w.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read transaction hash: %w", err)
	}
	txHash := strings.TrimSpace(line)
	if txHash == "" {
		return "", fmt.Errorf("submission cancelled")
	}
	return txHash, nil
}
