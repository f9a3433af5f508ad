package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value
	case "account":
		cfg.Account = value
	case "catalog":
		cfg.Catalog = value
	case "networks":
		cfg.Networks = parseStringList(value)

	// Client
	case "client.endpoint":
		cfg.Client.Endpoint = value
	case "client.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Client.Timeout = d
	case "client.concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Client.Concurrency = n

	// Sync
	case "sync.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Sync.Interval = d

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = strings.ToLower(value)
	case "storage.redis":
		cfg.Storage.RedisAddr = value

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# Walletkit Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.walletkit)
# datadir = ~/.walletkit

# Keystore holding the accounts to manage (see walletkit-cli init)
account = default

# ============================================================================
# Networks
# ============================================================================

# Network catalog (YAML). Empty uses the built-in catalog.
# catalog = /etc/walletkit/networks.yaml

# Networks to manage (comma-separated uids). Empty manages every catalog
# network of the selected type.
# networks = ethereum-mainnet,tezos-mainnet

# ============================================================================
# Indexer Client
# ============================================================================

client.endpoint = ` + cfg.Client.Endpoint + `
client.timeout = ` + cfg.Client.Timeout.String() + `
client.concurrency = ` + strconv.Itoa(cfg.Client.Concurrency) + `

sync.interval = ` + cfg.Sync.Interval.String() + `

# ============================================================================
# Storage
# ============================================================================

# badger (default), memory or redis
storage.backend = badger
# storage.redis = 127.0.0.1:6379

# ============================================================================
# Metrics
# ============================================================================

metrics.enabled = false
# metrics.addr = 127.0.0.1:9464

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
