// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Network catalog: ledgers, currencies, units and fee tiers (YAML)
//   - Runtime settings: data directory, indexer client, sync, storage, logging
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType selects mainnet or testnet catalog entries.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`
	// Account is the keystore whose accounts the managers serve.
	Account string `conf:"account"`

	// Catalog is the network catalog path; empty uses the embedded one.
	Catalog string `conf:"catalog"`
	// Networks lists the network uids to manage; empty means every
	// catalog network of the selected type.
	Networks []string `conf:"networks"`

	Client  ClientConfig
	Sync    SyncConfig
	Storage StorageConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// ClientConfig is the ledger indexer the managers query.
type ClientConfig struct {
	Endpoint    string        `conf:"client.endpoint"`
	Timeout     time.Duration `conf:"client.timeout"`
	Concurrency int           `conf:"client.concurrency"`
}

type SyncConfig struct {
	Interval time.Duration `conf:"sync.interval"`
}

// StorageConfig selects where managers persist reported transfers.
type StorageConfig struct {
	Backend   string `conf:"storage.backend"` // badger, memory or redis
	RedisAddr string `conf:"storage.redis"`
}

type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.walletkit
//	macOS:   ~/Library/Application Support/Walletkit
//	Windows: %APPDATA%\Walletkit
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletkit"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Walletkit")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Walletkit")
		}
		return filepath.Join(home, "AppData", "Roaming", "Walletkit")
	default:
		return filepath.Join(home, ".walletkit")
	}
}

// NetworkDataDir returns the directory for the selected network type.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// StoreDir returns the Badger directory shared by the managers.
func (c *Config) StoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "store")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "walletkit.conf")
}
