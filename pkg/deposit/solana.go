package deposit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"near-intents/config"
	"near-intents/pkg/amount"
)

// solanaBaseFee is the flat per-signature fee in lamports.
const solanaBaseFee = 5000

// SolanaDepositor sends deposits on Solana from a configured hot wallet. An
// empty mint sends native SOL.
type SolanaDepositor struct {
	cfg        config.SolanaConfig
	tokenMint  string
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	log        *zap.Logger
}

// NewSolanaDepositor connects to the configured Solana endpoint.
func NewSolanaDepositor(cfg config.SolanaConfig, tokenMint string, log *zap.Logger) (*SolanaDepositor, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}

	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SolanaDepositor{
		cfg:        cfg,
		tokenMint:  tokenMint,
		client:     rpc.New(cfg.RPCUrl),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		log:        log,
	}, nil
}

// SendDeposit transfers the atomic amount (lamports or token base units) to
// the deposit address.
func (s *SolanaDepositor) SendDeposit(ctx context.Context, address string, amt amount.Amount) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid deposit address: %w", err)
	}
	if !amt.Value.IsUint64() {
		return "", fmt.Errorf("amount %s out of range", amt.Value)
	}
	units := amt.Value.Uint64()

	var sig solana.Signature
	if s.tokenMint == "" {
		sig, err = s.sendNativeSOL(ctx, recipient, units)
	} else {
		sig, err = s.sendSPLToken(ctx, recipient, units)
	}
	if err != nil {
		return "", err
	}

	s.log.Info("deposit sent",
		zap.String("signature", sig.String()),
		zap.String("to", address),
		zap.Uint64("amount", units))
	return sig.String(), nil
}

func (s *SolanaDepositor) sendNativeSOL(ctx context.Context, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Value < lamports+solanaBaseFee {
		return solana.Signature{}, fmt.Errorf("insufficient balance: have %d lamports, need %d including fee",
			balance.Value, lamports+solanaBaseFee)
	}

	instruction := system.NewTransferInstruction(lamports, s.publicKey, recipient).Build()
	return s.signAndSend(ctx, []solana.Instruction{instruction})
}

func (s *SolanaDepositor) sendSPLToken(ctx context.Context, recipient solana.PublicKey, units uint64) (solana.Signature, error) {
	mint, err := solana.PublicKeyFromBase58(s.tokenMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid token mint address: %w", err)
	}

	source, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive source token account: %w", err)
	}
	balance, err := s.tokenBalance(ctx, source)
	if err != nil {
		return solana.Signature{}, err
	}
	if balance < units {
		return solana.Signature{}, fmt.Errorf("insufficient token balance: have %d, need %d", balance, units)
	}

	dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	instructions := []solana.Instruction{}
	exists, err := s.accountExists(ctx, dest)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to check destination account: %w", err)
	}
	if !exists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			s.publicKey, recipient, mint,
		).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(
		units, source, dest, s.publicKey, []solana.PublicKey{},
	).Build())

	return s.signAndSend(ctx, instructions)
}

func (s *SolanaDepositor) signAndSend(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(s.publicKey))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.commitment(),
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (s *SolanaDepositor) tokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	info, err := s.client.GetTokenAccountBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get token balance: %w", err)
	}
	units, err := strconv.ParseUint(info.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return units, nil
}

func (s *SolanaDepositor) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return info.Value != nil, nil
}

func (s *SolanaDepositor) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.cfg.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
