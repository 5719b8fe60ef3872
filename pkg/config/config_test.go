package config

import "testing"

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	cfg := &Config{ListenAddr: ":8080"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when DatabaseURL is empty")
	}
}

func TestValidate_RequiresListenAddr(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/gateway"}
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when ListenAddr is empty")
	}
}

func TestValidate_PassesWithBothSet(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/gateway", ListenAddr: ":8080"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestChainEnabled_FalseWhenNoChainURL(t *testing.T) {
	cfg := &Config{}
	if cfg.ChainEnabled() {
		t.Fatal("expected ChainEnabled() false with no ChainURL")
	}
}

func TestChainEnabled_TrueWhenChainURLSet(t *testing.T) {
	cfg := &Config{ChainURL: "http://chain-adapter:9000"}
	if !cfg.ChainEnabled() {
		t.Fatal("expected ChainEnabled() true when ChainURL is set")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error from Load: %v", err)
	}
	if cfg.ListenAddr == "" {
		t.Fatal("expected a default ListenAddr")
	}
	if cfg.BatchCronSchedule != "0 2 * * *" {
		t.Fatalf("expected default batch schedule of daily at 02:00, got %q", cfg.BatchCronSchedule)
	}
	if cfg.ChainEnabled() {
		t.Fatal("expected chain disabled by default (no CHAIN_URL set)")
	}
}
