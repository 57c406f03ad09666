// Package config loads the loanbridged runtime configuration. Collaborator
// addresses, chain parameters and gateway settings come from a TOML file;
// secrets (signer key, shared secret) come only from the environment.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

const (
	envSignerKey    = "LOANBRIDGE_SIGNER_KEY"
	envSharedSecret = "LOANBRIDGE_SHARED_SECRET"

	defaultListen             = "0.0.0.0:9555"
	defaultSharedSecretHeader = "X-Loanbridge-Shared-Secret"
	defaultRateLimitPerMin    = 120
	defaultLogLevel           = "info"
)

type Config struct {
	Chain         ChainConfig         `toml:"chain"`
	Contracts     ContractsConfig     `toml:"contracts"`
	Roles         RolesConfig         `toml:"roles"`
	Gateway       GatewayConfig       `toml:"gateway"`
	Observability ObservabilityConfig `toml:"observability"`

	// SignerKey and SharedSecret are environment-only.
	SignerKey    string `toml:"-"`
	SharedSecret string `toml:"-"`
}

type ChainConfig struct {
	RPCURL  string `toml:"RPCURL"`
	ChainID int64  `toml:"ChainID"`
}

type ContractsConfig struct {
	Facility        string `toml:"Facility"`
	Oracle          string `toml:"Oracle"`
	Messenger       string `toml:"Messenger"`
	SettlementAsset string `toml:"SettlementAsset"`
}

type RolesConfig struct {
	SuperAdmin string   `toml:"SuperAdmin"`
	Admins     []string `toml:"Admins"`
	Pausers    []string `toml:"Pausers"`
}

type GatewayConfig struct {
	Listen             string `toml:"Listen"`
	SharedSecretHeader string `toml:"SharedSecretHeader"`
	RateLimitPerMin    int    `toml:"RateLimitPerMin"`
}

type ObservabilityConfig struct {
	LogLevel     string `toml:"LogLevel"`
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	OTLPInsecure bool   `toml:"OTLPInsecure"`
}

// Load decodes the TOML file at path, applies defaults and reads the
// environment-only secrets.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.SignerKey = strings.TrimSpace(os.Getenv(envSignerKey))
	cfg.SharedSecret = strings.TrimSpace(os.Getenv(envSharedSecret))
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.Gateway.Listen) == "" {
		cfg.Gateway.Listen = defaultListen
	}
	if strings.TrimSpace(cfg.Gateway.SharedSecretHeader) == "" {
		cfg.Gateway.SharedSecretHeader = defaultSharedSecretHeader
	}
	if cfg.Gateway.RateLimitPerMin == 0 {
		cfg.Gateway.RateLimitPerMin = defaultRateLimitPerMin
	}
	if strings.TrimSpace(cfg.Observability.LogLevel) == "" {
		cfg.Observability.LogLevel = defaultLogLevel
	}
}

// Validate ensures the configuration names every immutable collaborator.
// Zero or malformed collaborator addresses are rejected here so a
// misconfigured deployment never reaches the point of moving funds.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Chain.RPCURL) == "" {
		return fmt.Errorf("chain.RPCURL is required")
	}
	if cfg.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.ChainID must be positive")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"contracts.Facility", cfg.Contracts.Facility},
		{"contracts.Oracle", cfg.Contracts.Oracle},
		{"contracts.Messenger", cfg.Contracts.Messenger},
		{"contracts.SettlementAsset", cfg.Contracts.SettlementAsset},
		{"roles.SuperAdmin", cfg.Roles.SuperAdmin},
	} {
		if _, err := parseAddress(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	for _, raw := range append(append([]string{}, cfg.Roles.Admins...), cfg.Roles.Pausers...) {
		if _, err := parseAddress(raw); err != nil {
			return fmt.Errorf("roles: %w", err)
		}
	}
	if cfg.SignerKey == "" {
		return fmt.Errorf("%s is required", envSignerKey)
	}
	if cfg.SharedSecret == "" {
		return fmt.Errorf("%s is required", envSharedSecret)
	}
	if cfg.Gateway.RateLimitPerMin < 0 {
		return fmt.Errorf("gateway.RateLimitPerMin must be non-negative")
	}
	return nil
}

// ChainID returns the configured chain identifier as a big integer.
func (cfg *Config) ChainID() *big.Int {
	return big.NewInt(cfg.Chain.ChainID)
}

// Address parses a configured hex address that Validate already vetted.
func Address(raw string) common.Address {
	addr, err := parseAddress(raw)
	if err != nil {
		panic(fmt.Sprintf("config address %q: %v", raw, err))
	}
	return addr
}

// Addresses parses a list of configured hex addresses.
func Addresses(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		out = append(out, Address(entry))
	}
	return out
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address not allowed")
	}
	return addr, nil
}

// Sanitized returns a copy with secrets masked for logging.
func (cfg Config) Sanitized() Config {
	clone := cfg
	if clone.SignerKey != "" {
		clone.SignerKey = "***"
	}
	if clone.SharedSecret != "" {
		clone.SharedSecret = "***"
	}
	return clone
}
