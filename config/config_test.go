package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	main := Default(Mainnet)
	test := Default(Testnet)
	if main.Network != Mainnet || test.Network != Testnet {
		t.Fatalf("networks = %s/%s", main.Network, test.Network)
	}
	if main.Client.Endpoint == test.Client.Endpoint {
		t.Error("mainnet and testnet share an endpoint")
	}
	if err := Validate(main); err != nil {
		t.Errorf("Validate(mainnet) error: %v", err)
	}
	if err := Validate(test); err != nil {
		t.Errorf("Validate(testnet) error: %v", err)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := Default(Testnet)
	cfg.DataDir = "/data"
	if got := cfg.KeystoreDir(); got != filepath.Join("/data", "testnet", "keystore") {
		t.Errorf("KeystoreDir() = %s", got)
	}
	if got := cfg.StoreDir(); got != filepath.Join("/data", "testnet", "store") {
		t.Errorf("StoreDir() = %s", got)
	}
	if got := cfg.ConfigFile(); got != filepath.Join("/data", "walletkit.conf") {
		t.Errorf("ConfigFile() = %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad network", func(c *Config) { c.Network = "devnet" }, false},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, false},
		{"endpoint without scheme", func(c *Config) { c.Client.Endpoint = "127.0.0.1:8545" }, false},
		{"endpoint ws", func(c *Config) { c.Client.Endpoint = "ws://127.0.0.1:8545" }, false},
		{"https endpoint", func(c *Config) { c.Client.Endpoint = "https://indexer.example.org/rpc" }, true},
		{"zero timeout", func(c *Config) { c.Client.Timeout = 0 }, false},
		{"zero concurrency", func(c *Config) { c.Client.Concurrency = 0 }, false},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }, false},
		{"memory storage", func(c *Config) { c.Storage.Backend = "memory" }, true},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis"; c.Storage.RedisAddr = "" }, false},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "leveldb" }, false},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, false},
		{"blank network uids", func(c *Config) { c.Networks = []string{"ethereum-mainnet", " "} }, false},
		{"duplicate network uids", func(c *Config) { c.Networks = []string{"tezos-mainnet", " tezos-mainnet"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(Mainnet)
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.ok && err != nil {
				t.Fatalf("Validate() error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletkit.conf")
	content := `# comment
network = testnet
client.endpoint = "http://indexer:9000"
client.timeout = 3s
networks = ethereum-sepolia, tezos-ghostnet
metrics.enabled = yes
storage.backend = MEMORY
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg := Default(Mainnet)
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}
	if cfg.Network != Testnet {
		t.Errorf("Network = %s", cfg.Network)
	}
	if cfg.Client.Endpoint != "http://indexer:9000" {
		t.Errorf("Endpoint = %s", cfg.Client.Endpoint)
	}
	if cfg.Client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %s", cfg.Client.Timeout)
	}
	if len(cfg.Networks) != 2 || cfg.Networks[1] != "tezos-ghostnet" {
		t.Errorf("Networks = %v", cfg.Networks)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %s", cfg.Storage.Backend)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if values, err := LoadFile(filepath.Join(t.TempDir(), "missing.conf")); err != nil || len(values) != 0 {
		t.Fatalf("LoadFile(missing) = %v, %v", values, err)
	}

	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("no equals sign\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile(bad) = nil error")
	}

	cfg := Default(Mainnet)
	if err := ApplyFileConfig(cfg, map[string]string{"client.timeout": "soon"}); err == nil {
		t.Error("ApplyFileConfig(bad duration) = nil error")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{
		"--testnet", "--endpoint=http://x:1", "--timeout", "2s",
		"--networks", "a,b", "--metrics=false", "--log-json",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if f.Network != "testnet" {
		t.Errorf("Network = %q", f.Network)
	}
	if !f.SetMetrics || f.Metrics {
		t.Errorf("metrics flag = set %v value %v", f.SetMetrics, f.Metrics)
	}

	cfg := Default(Mainnet)
	cfg.Metrics.Enabled = true
	ApplyFlags(cfg, f)
	if cfg.Network != Testnet || cfg.Client.Endpoint != "http://x:1" || cfg.Client.Timeout != 2*time.Second {
		t.Errorf("config = %+v", cfg.Client)
	}
	if cfg.Metrics.Enabled {
		t.Error("--metrics=false did not disable metrics")
	}
	if !cfg.Log.JSON {
		t.Error("--log-json not applied")
	}
	if len(cfg.Networks) != 2 {
		t.Errorf("Networks = %v", cfg.Networks)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	if _, err := ParseFlags([]string{"--bogus"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if _, err := ParseFlags([]string{"extra", "--testnet"}); err == nil {
		t.Error("flag after positional argument accepted")
	}
	f, err := ParseFlags([]string{"-h"})
	if err != nil || !f.Help {
		t.Errorf("ParseFlags(-h) = %+v, %v", f, err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := Load([]string{"--datadir", dir, "--testnet"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	for _, d := range []string{cfg.KeystoreDir(), cfg.StoreDir(), cfg.LogsDir()} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("directory %s not created: %v", d, err)
		}
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// File beats defaults, flags beat the file.
	conf := "network = testnet\nclient.concurrency = 9\nsync.interval = 1m\n"
	if err := os.WriteFile(cfg.ConfigFile(), []byte(conf), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	cfg, _, err = Load([]string{"--datadir", dir, "--testnet", "--sync-interval", "5s"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Client.Concurrency != 9 {
		t.Errorf("Concurrency = %d, want 9 from file", cfg.Client.Concurrency)
	}
	if cfg.Sync.Interval != 5*time.Second {
		t.Errorf("Interval = %s, want 5s from flags", cfg.Sync.Interval)
	}

	if _, _, err := Load([]string{"--datadir", dir, "--testnet", "--storage", "redis", "--redis", ""}); err != nil {
		t.Fatalf("Load(redis) error: %v", err)
	}
	if _, _, err := Load([]string{"--datadir", dir, "--storage", "nosql"}); err == nil {
		t.Error("Load() accepted an unknown backend")
	}
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(t.TempDir(), Testnet)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Network != Testnet {
		t.Errorf("Network = %s", cfg.Network)
	}
}
