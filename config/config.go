package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Default system contract addresses of an hbbft POSDAO chain.
const (
	DefaultValidatorSetContract  = "0x1000000000000000000000000000000000000001"
	DefaultStakingContract       = "0x1100000000000000000000000000000000000001"
	DefaultBlockRewardContract   = "0x2000000000000000000000000000000000000001"
	DefaultKeyGenHistoryContract = "0x7000000000000000000000000000000000000001"
)

// Contracts holds the addresses of the system contracts the synchronizer reads.
type Contracts struct {
	ValidatorSet  string
	Staking       string
	BlockReward   string
	KeyGenHistory string
}

// Config holds all configuration for the synchronizer.
type Config struct {
	// Ledger endpoints. When WSURL is set the split RPC/websocket client is
	// used, otherwise RPCURL is dialed as a single provider.
	RPCURL string
	WSURL  string

	Contracts Contracts

	// Optional "my" address used for stake, reward and balance lookups.
	StakerAddress string

	PollInterval          time.Duration
	CallTimeout           time.Duration
	PoolConcurrency       int
	RPCRPS                int
	ResubscribeMaxRetries int

	// Optional Postgres snapshot sink
	DatabaseURL    string
	MaxConnections int32

	Port     string
	LogLevel string
	LogFile  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Contracts: Contracts{
			ValidatorSet:  DefaultValidatorSetContract,
			Staking:       DefaultStakingContract,
			BlockReward:   DefaultBlockRewardContract,
			KeyGenHistory: DefaultKeyGenHistoryContract,
		},
		PollInterval:          time.Second,
		CallTimeout:           10 * time.Second,
		PoolConcurrency:       16,
		RPCRPS:                50,
		ResubscribeMaxRetries: 10,
		MaxConnections:        4,
		Port:                  "8080",
		LogLevel:              "info",
	}

	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		return nil, errors.New("RPC_URL is required")
	}
	cfg.WSURL = os.Getenv("WS_URL")

	addrs := []struct {
		key string
		dst *string
	}{
		{"VALIDATOR_SET_CONTRACT", &cfg.Contracts.ValidatorSet},
		{"STAKING_CONTRACT", &cfg.Contracts.Staking},
		{"BLOCK_REWARD_CONTRACT", &cfg.Contracts.BlockReward},
		{"KEY_GEN_HISTORY_CONTRACT", &cfg.Contracts.KeyGenHistory},
		{"STAKER_ADDRESS", &cfg.StakerAddress},
	}
	for _, a := range addrs {
		v := os.Getenv(a.key)
		if v == "" {
			continue
		}
		if !common.IsHexAddress(v) {
			return nil, errors.Errorf("%s is not a valid address: %q", a.key, v)
		}
		*a.dst = common.HexToAddress(v).Hex()
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"CALL_TIMEOUT", &cfg.CallTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", d.key)
		}
		if parsed <= 0 {
			return nil, errors.Errorf("%s must be positive", d.key)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"POOL_CONCURRENCY", &cfg.PoolConcurrency},
		{"RPC_RPS", &cfg.RPCRPS},
		{"RESUBSCRIBE_MAX_RETRIES", &cfg.ResubscribeMaxRetries},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", i.key)
		}
		if n <= 0 {
			return nil, errors.Errorf("%s must be positive", i.key)
		}
		*i.dst = n
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "parse MAX_CONNECTIONS")
		}
		cfg.MaxConnections = int32(n)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}
