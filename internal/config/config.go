// Package config loads the matcher's TOML configuration document (§6)
// with viper, the same way the teacher's chain binary layers viper over
// its own config files.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"
)

// Network holds the chain connection settings.
type Network struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID uint64 `mapstructure:"chain_id"`
}

// Contracts holds the hex addresses of the on-chain collaborators and
// the trading pair this engine instance drives. §6 does not name a
// trading_pair key directly, but §4.4's cold sync needs one concrete
// bytes32 to query OrderBook.order_books with; this engine drives a
// single configured pair per process, one instance per pair.
type Contracts struct {
	Sequencer   string `mapstructure:"sequencer"`
	OrderBook   string `mapstructure:"orderbook"`
	Account     string `mapstructure:"account"`
	TradingPair string `mapstructure:"trading_pair"`
}

// Sync holds cold-sync behavior settings.
type Sync struct {
	StartBlock     uint64 `mapstructure:"start_block"`
	SyncHistorical bool   `mapstructure:"sync_historical"`
}

// Matching holds Dispatcher tick settings.
type Matching struct {
	MaxBatchSize       int `mapstructure:"max_batch_size"`
	MatchingIntervalMs int `mapstructure:"matching_interval_ms"`
}

// Executor holds transaction-signing and gas settings.
type Executor struct {
	PrivateKey   string `mapstructure:"private_key"`
	GasPriceGwei int64  `mapstructure:"gas_price_gwei"`
	GasLimit     uint64 `mapstructure:"gas_limit"`
}

// Config is the full recognized configuration document (§6).
type Config struct {
	Network   Network   `mapstructure:"network"`
	Contracts Contracts `mapstructure:"contracts"`
	Sync      Sync      `mapstructure:"sync"`
	Matching  Matching  `mapstructure:"matching"`
	Executor  Executor  `mapstructure:"executor"`
}

// Default returns a Config with the engine's conservative defaults,
// matching the teacher's own DefaultConfig pattern.
func Default() Config {
	return Config{
		Sync: Sync{
			SyncHistorical: true,
		},
		Matching: Matching{
			MaxBatchSize:       100,
			MatchingIntervalMs: 500,
		},
		Executor: Executor{
			GasPriceGwei: 1,
			GasLimit:     3_000_000,
		},
	}
}

// Load reads a TOML document at path into a Config, starting from
// Default and overlaying every recognized key the file sets.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		return cfg, apperrors.ErrInvalidConfig.Wrap(err.Error())
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, apperrors.ErrInvalidConfig.Wrap(err.Error())
	}
	return cfg, cfg.Validate()
}

// Validate checks the subset of fields the engine cannot run without.
func (c Config) Validate() error {
	if c.Network.RPCURL == "" {
		return apperrors.ErrInvalidConfig.Wrap("network.rpc_url is required")
	}
	if c.Contracts.Sequencer == "" || c.Contracts.OrderBook == "" {
		return apperrors.ErrInvalidConfig.Wrap("contracts.sequencer and contracts.orderbook are required")
	}
	if c.Contracts.TradingPair == "" {
		return apperrors.ErrInvalidConfig.Wrap("contracts.trading_pair is required")
	}
	if c.Matching.MaxBatchSize <= 0 {
		return apperrors.ErrInvalidConfig.Wrap("matching.max_batch_size must be positive")
	}
	if c.Matching.MatchingIntervalMs <= 0 {
		return apperrors.ErrInvalidConfig.Wrap("matching.matching_interval_ms must be positive")
	}
	return nil
}
