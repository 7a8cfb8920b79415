package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port=%s", cfg.Port)
	}
	if cfg.CacheGracePeriod != 2*time.Minute {
		t.Fatalf("grace=%v", cfg.CacheGracePeriod)
	}
	if cfg.PoolMinBalance.IsZero() || cfg.PoolTargetBalance.IsZero() {
		t.Fatalf("balances: min=%s target=%s", cfg.PoolMinBalance, cfg.PoolTargetBalance)
	}
}

func TestLoadAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	content := `accounts:
  - address: "0xabc"
    credential: "plain-key"
  - address: "0xdef"
    credential: "ENC[v1]:deadbeef"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts=%d", len(accounts))
	}
	if accounts[0].Address != "0xabc" || accounts[1].Credential != "ENC[v1]:deadbeef" {
		t.Fatalf("accounts=%+v", accounts)
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	if _, err := LoadAccounts(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
