package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
[chain]
RPCURL = "http://127.0.0.1:8545"
ChainID = 11155111

[contracts]
Facility = "0x0000000000000000000000000000000000000aa1"
Oracle = "0x0000000000000000000000000000000000000aa2"
Messenger = "0x0000000000000000000000000000000000000aa3"
SettlementAsset = "0x0000000000000000000000000000000000000aa4"

[roles]
SuperAdmin = "0x0000000000000000000000000000000000000bb1"
Admins = ["0x0000000000000000000000000000000000000bb2"]
Pausers = ["0x0000000000000000000000000000000000000bb3"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loanbridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("LOANBRIDGE_SIGNER_KEY", "ab"+strings.Repeat("cd", 31))
	t.Setenv("LOANBRIDGE_SHARED_SECRET", "topsecret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Listen != defaultListen {
		t.Fatalf("listen default not applied: %q", cfg.Gateway.Listen)
	}
	if cfg.Gateway.SharedSecretHeader != defaultSharedSecretHeader {
		t.Fatalf("header default not applied: %q", cfg.Gateway.SharedSecretHeader)
	}
	if cfg.Gateway.RateLimitPerMin != defaultRateLimitPerMin {
		t.Fatalf("rate limit default not applied: %d", cfg.Gateway.RateLimitPerMin)
	}
	if cfg.Observability.LogLevel != defaultLogLevel {
		t.Fatalf("log level default not applied: %q", cfg.Observability.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsZeroCollaborators(t *testing.T) {
	t.Setenv("LOANBRIDGE_SIGNER_KEY", "ab"+strings.Repeat("cd", 31))
	t.Setenv("LOANBRIDGE_SHARED_SECRET", "topsecret")

	broken := strings.Replace(sampleConfig,
		`Facility = "0x0000000000000000000000000000000000000aa1"`,
		`Facility = "0x0000000000000000000000000000000000000000"`, 1)
	cfg, err := Load(writeConfig(t, broken))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "contracts.Facility") {
		t.Fatalf("expected facility rejection, got %v", err)
	}
}

func TestValidateRequiresSecrets(t *testing.T) {
	t.Setenv("LOANBRIDGE_SIGNER_KEY", "")
	t.Setenv("LOANBRIDGE_SHARED_SECRET", "topsecret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "LOANBRIDGE_SIGNER_KEY") {
		t.Fatalf("expected signer key rejection, got %v", err)
	}
}

func TestValidateRejectsMalformedRoleAddress(t *testing.T) {
	t.Setenv("LOANBRIDGE_SIGNER_KEY", "ab"+strings.Repeat("cd", 31))
	t.Setenv("LOANBRIDGE_SHARED_SECRET", "topsecret")

	broken := strings.Replace(sampleConfig,
		`Pausers = ["0x0000000000000000000000000000000000000bb3"]`,
		`Pausers = ["not-an-address"]`, 1)
	cfg, err := Load(writeConfig(t, broken))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "roles") {
		t.Fatalf("expected role rejection, got %v", err)
	}
}

func TestSanitizedMasksSecrets(t *testing.T) {
	cfg := Config{SignerKey: "deadbeef", SharedSecret: "hunter2"}
	masked := cfg.Sanitized()
	if masked.SignerKey != "***" || masked.SharedSecret != "***" {
		t.Fatalf("secrets not masked: %+v", masked)
	}
	if cfg.SignerKey != "deadbeef" {
		t.Fatalf("original mutated")
	}
}
