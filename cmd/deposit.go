package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	solana "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"near-intents/config"
	"near-intents/pkg/amount"
	"near-intents/pkg/balances"
	"near-intents/pkg/chains"
	"near-intents/pkg/deposit"
	"near-intents/pkg/parser"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
)

var (
	depositAuto    bool
	depositYes     bool
	depositTimeout time.Duration
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount> <token> from <chain>",
	Short: "Deposit tokens from an external chain into your intents balance",
	Long: `Generate a deposit address for moving tokens from an external chain into
your NEAR Intents balance. The relay commits solver liquidity when the address
is generated; send the exact amount to it.

With --auto and a configured hot wallet for the source chain, the deposit
transaction is sent for you and the relay is notified immediately.

Examples:
  near-intents deposit 100 USDC from arbitrum
  near-intents deposit 0.01 BTC from bitcoin --auto
  near-intents deposit 2 SOL from solana --auto --yes`,
	Args: cobra.MinimumNArgs(3),
	Run:  runDeposit,
}

func init() {
	rootCmd.AddCommand(depositCmd)

	depositCmd.Flags().BoolVar(&depositAuto, "auto", false, "Send the deposit from a configured hot wallet")
	depositCmd.Flags().BoolVarP(&depositYes, "yes", "y", false, "Skip confirmation prompt")
	depositCmd.Flags().DurationVar(&depositTimeout, "timeout", 60*time.Second, "How long to wait for address generation")
}

func runDeposit(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseDepositCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
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

	base, ok := catalog.LookupOnChain(req.Symbol, req.Chain)
	if !ok {
		printError(fmt.Errorf("%s is not deployed on %s. Try: near-intents list-tokens --chain %s",
			req.Symbol, req.Chain, req.Chain))
		os.Exit(1)
	}

	amt, res := amount.Parse(req.Amount, base.Decimals)
	if res != amount.ParseOK || amt.IsZero() {
		printError(fmt.Errorf("invalid amount %q", req.Amount))
		os.Exit(1)
	}

	near := balances.NewNearClient(cfg.NearRPCUrl, log)
	svc := deposit.NewService(relayClient, near, log)
	ctrl := deposit.NewController(svc, log)
	go ctrl.Run(ctx)

	balance, reserve := sourceChainBalance(ctx, cfg, base, req.Chain, log)

	ctrl.Send(deposit.Begin{
		OriginAsset:      base.AssetID,
		DestinationAsset: base.AssetID,
		AmountIn:         amt,
		Recipient:        cfg.SignerID,
		Balance:          balance,
		GasReserve:       reserve,
	})

	s := newSpinner("Generating deposit address...")
	if !jsonOutput {
		s.Start()
	}
	err = awaitDepositState(ctrl, deposit.StateReady, depositTimeout)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	snap := ctrl.Snapshot()
	if jsonOutput {
		printDepositJSON(req, base, snap)
	} else {
		displayDepositAddress(req, base, amt, snap)
	}

	if !depositAuto && !cfg.AutoDeposit.Enabled {
		if !jsonOutput {
			fmt.Println("\nAfter sending, track settlement with:")
			color.Cyan("  near-intents status --watch\n")
		}
		return
	}

	if !depositYes && !jsonOutput {
		if !confirm("Send the deposit from the configured wallet?") {
			fmt.Println("\nDeposit not sent. Transfer manually to the address above.")
			return
		}
	}

	depositor, err := depositorFor(cfg, base, req.Chain, log)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctrl.Send(deposit.Submit{Depositor: depositor})

	s = newSpinner("Sending deposit...")
	if !jsonOutput {
		s.Start()
	}
	err = awaitDepositState(ctrl, deposit.StateDone, depositTimeout)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		if derr := ctrl.Snapshot().Err; derr != nil {
			printError(derr)
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	printSuccess(color.GreenString("Deposit sent."))
	fmt.Printf("  Transaction: %s\n", color.CyanString(ctrl.Snapshot().TxHash))
}

// sourceChainBalance best-effort queries the hot wallet's balance on the
// source chain so the max sendable value can be shown. Chains without a
// querier just skip the estimate.
func sourceChainBalance(ctx context.Context, cfg *config.Config, base tokens.BaseToken, chain string, log *zap.Logger) (amount.Amount, amount.Amount) {
	dep, _ := base.DeploymentOn(chain)

	switch chains.FamilyOf(chain) {
	case chains.FamilyEVM:
		network, ok := cfg.EVM.Networks[chain]
		if !ok || network.RPCUrl == "" {
			return amount.Amount{}, amount.Amount{}
		}
		querier, err := balances.NewEVMQuerier(network.RPCUrl)
		if err != nil {
			log.Debug("evm balance query unavailable", zap.Error(err))
			return amount.Amount{}, amount.Amount{}
		}
		defer querier.Close()
		owner := evmAddressOf(network.PrivateKey)
		if owner == "" {
			return amount.Amount{}, amount.Amount{}
		}
		var raw *big.Int
		if dep.Native() {
			raw, err = querier.NativeBalance(ctx, owner)
		} else {
			raw, err = querier.ERC20Balance(ctx, dep.Address, owner)
		}
		if err != nil {
			log.Debug("evm balance query failed", zap.Error(err))
			return amount.Amount{}, amount.Amount{}
		}
		return amount.New(raw, dep.Decimals), evmGasReserve(ctx, querier, dep)

	case chains.FamilySolana:
		if cfg.Solana.RPCUrl == "" || cfg.Solana.PrivateKey == "" {
			return amount.Amount{}, amount.Amount{}
		}
		querier := balances.NewSolanaQuerier(cfg.Solana.RPCUrl)
		owner := solanaAddressOf(cfg.Solana.PrivateKey)
		if owner == "" {
			return amount.Amount{}, amount.Amount{}
		}
		var raw *big.Int
		var err error
		if dep.Native() {
			raw, err = querier.NativeBalance(ctx, owner)
		} else {
			raw, err = querier.SPLBalance(ctx, dep.Address, owner)
		}
		if err != nil {
			log.Debug("solana balance query failed", zap.Error(err))
			return amount.Amount{}, amount.Amount{}
		}
		reserve := amount.Amount{}
		if dep.Native() {
			reserve = amount.FromInt64(5000, dep.Decimals)
		}
		return amount.New(raw, dep.Decimals), reserve
	}

	return amount.Amount{}, amount.Amount{}
}

// evmGasReserve holds back gas for one native transfer at the suggested price.
// Token deposits pay gas in the native asset, so their reserve is zero here.
func evmGasReserve(ctx context.Context, querier *balances.EVMQuerier, dep tokens.Deployment) amount.Amount {
	if !dep.Native() {
		return amount.Amount{}
	}
	price, err := querier.SuggestGasPrice(ctx)
	if err != nil {
		return amount.Amount{}
	}
	reserve := new(big.Int).Mul(price, big.NewInt(21000))
	return amount.New(reserve, dep.Decimals)
}

// evmAddressOf derives the hot wallet's address from its configured key.
func evmAddressOf(privateKeyHex string) string {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return ""
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func solanaAddressOf(privateKeyBase58 string) string {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return ""
	}
	return key.PublicKey().String()
}

func depositorFor(cfg *config.Config, base tokens.BaseToken, chain string, log *zap.Logger) (deposit.Depositor, error) {
	dep, _ := base.DeploymentOn(chain)

	switch chains.FamilyOf(chain) {
	case chains.FamilyEVM:
		return deposit.NewEVMDepositor(cfg.EVM, chain, dep.Address, log)
	case chains.FamilySolana:
		return deposit.NewSolanaDepositor(cfg.Solana, dep.Address, log)
	case chains.FamilyBitcoin:
		if !cfg.AutoDeposit.Bitcoin.Enabled {
			return nil, fmt.Errorf("bitcoin auto-deposit not enabled in configuration")
		}
		return deposit.NewBitcoinDepositor(cfg.AutoDeposit.Bitcoin, log), nil
	}
	return nil, fmt.Errorf("auto-deposit not supported for chain %s", chain)
}

func awaitDepositState(ctrl *deposit.Controller, want deposit.MachineState, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if ctrl.State() == want {
			return nil
		}
		if derr := ctrl.Snapshot().Err; derr != nil {
			return derr
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, want)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func displayDepositAddress(req *parser.DepositRequest, base tokens.BaseToken, amt amount.Amount, snap deposit.Ctx) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nSend %s %s on %s to:\n\n", amount.Format(amt), color.YellowString(base.Symbol), req.Chain)
	color.Cyan("  %s\n", snap.Quote.DepositAddress)

	if !snap.MaxSendable.IsZero() {
		fmt.Printf("\n  Max sendable:    %s (balance minus gas reserve)\n", amount.Format(snap.MaxSendable))
	}
	if snap.StorageDeposit != nil && snap.StorageDeposit.Sign() > 0 {
		fmt.Printf("  Storage deposit: %s yocto may be charged on first receipt\n", snap.StorageDeposit)
	}
	if snap.Quote.TimeEstimate > 0 {
		fmt.Printf("  Estimated time:  %d seconds\n", snap.Quote.TimeEstimate)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func printDepositJSON(req *parser.DepositRequest, base tokens.BaseToken, snap deposit.Ctx) {
	output := map[string]interface{}{
		"deposit_address": snap.Quote.DepositAddress,
		"asset_id":        base.AssetID,
		"chain":           req.Chain,
		"amount":          amount.Format(snap.AmountIn),
		"max_sendable":    amount.Format(snap.MaxSendable),
		"status":          "address_generated",
	}
	if snap.StorageDeposit != nil {
		output["storage_deposit"] = snap.StorageDeposit.String()
	}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}
