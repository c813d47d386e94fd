package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration, constructed once at startup and
// passed explicitly to every component that needs it.
type Config struct {
	// Relay access.
	JWTToken string
	BaseURL  string

	// PoA bridge registry endpoint.
	BridgeBaseURL string

	// Settlement.
	IntentsContract string
	SignerID        string

	// Chain RPC endpoints.
	NearRPCUrl string
	EVM        EVMConfig
	Solana     SolanaConfig

	AutoDeposit AutoDepositConfig

	HistoryFile string

	Logging LoggingConfig
}

// LoggingConfig selects the logger's level and output format.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// EVMNetwork is one EVM chain's endpoint and signing configuration.
type EVMNetwork struct {
	RPCUrl     string
	ChainID    int64
	PrivateKey string
	GasLimit   *uint64
	GasPrice   *int64
}

// EVMConfig maps chain names to their network configuration.
type EVMConfig struct {
	Networks map[string]EVMNetwork
}

// SolanaConfig holds the Solana endpoint and signing configuration.
type SolanaConfig struct {
	RPCUrl        string
	PrivateKey    string
	Commitment    string
	SkipPreflight bool
}

// BitcoinConfig drives the bitcoin-cli based depositor.
type BitcoinConfig struct {
	Enabled bool
	CLIPath string
	CLIArgs []string
}

// AutoDepositConfig enables sending deposit transactions directly from
// configured hot wallets instead of printing instructions.
type AutoDepositConfig struct {
	Enabled bool
	Bitcoin BitcoinConfig
	EVM     bool
	Solana  bool
}

// Load reads configuration from a .env file (if present), environment
// variables and an optional yaml config file. It returns the config by value;
// there is no package-level state.
func Load() (*Config, error) {
	// Best effort: a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(".near-intents")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	v.SetDefault("base_url", "https://1click.chaindefuser.com")
	v.SetDefault("bridge_base_url", "https://bridge.chaindefuser.com")
	v.SetDefault("intents_contract", "intents.near")
	v.SetDefault("near_rpc_url", "https://rpc.mainnet.near.org")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("solana.commitment", "confirmed")

	v.SetEnvPrefix("NEAR_INTENTS")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		JWTToken:        v.GetString("jwt_token"),
		BaseURL:         v.GetString("base_url"),
		BridgeBaseURL:   v.GetString("bridge_base_url"),
		IntentsContract: v.GetString("intents_contract"),
		SignerID:        v.GetString("signer_id"),
		NearRPCUrl:      v.GetString("near_rpc_url"),
		HistoryFile:     v.GetString("history_file"),
		Logging: LoggingConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Solana: SolanaConfig{
			RPCUrl:        v.GetString("solana.rpc_url"),
			PrivateKey:    v.GetString("solana.private_key"),
			Commitment:    v.GetString("solana.commitment"),
			SkipPreflight: v.GetBool("solana.skip_preflight"),
		},
		AutoDeposit: AutoDepositConfig{
			Enabled: v.GetBool("auto_deposit.enabled"),
			EVM:     v.GetBool("auto_deposit.evm"),
			Solana:  v.GetBool("auto_deposit.solana"),
			Bitcoin: BitcoinConfig{
				Enabled: v.GetBool("auto_deposit.bitcoin.enabled"),
				CLIPath: v.GetString("auto_deposit.bitcoin.cli_path"),
				CLIArgs: v.GetStringSlice("auto_deposit.bitcoin.cli_args"),
			},
		},
	}

	cfg.EVM.Networks = make(map[string]EVMNetwork)
	for name := range v.GetStringMap("evm.networks") {
		prefix := "evm.networks." + name
		network := EVMNetwork{
			RPCUrl:     v.GetString(prefix + ".rpc_url"),
			ChainID:    v.GetInt64(prefix + ".chain_id"),
			PrivateKey: v.GetString(prefix + ".private_key"),
		}
		if v.IsSet(prefix + ".gas_limit") {
			limit := v.GetUint64(prefix + ".gas_limit")
			network.GasLimit = &limit
		}
		if v.IsSet(prefix + ".gas_price") {
			price := v.GetInt64(prefix + ".gas_price")
			network.GasPrice = &price
		}
		cfg.EVM.Networks[name] = network
	}

	if cfg.JWTToken == "" {
		return nil, fmt.Errorf("JWT token not found. Set NEAR_INTENTS_JWT_TOKEN or add jwt_token to .near-intents.yaml")
	}
	if cfg.SignerID == "" {
		return nil, fmt.Errorf("signer id not found. Set NEAR_INTENTS_SIGNER_ID or add signer_id to .near-intents.yaml")
	}

	return cfg, nil
}
