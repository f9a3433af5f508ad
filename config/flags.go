package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network  string
	DataDir  string
	Config   string
	Account  string
	Catalog  string
	Networks string

	// Client
	Endpoint    string
	Timeout     time.Duration
	Concurrency int

	// Sync
	SyncInterval time.Duration

	// Storage
	Storage string
	Redis   string

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetMetrics bool
	SetLogJSON bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("walletkitd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	var testnet bool
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Account, "account", "", "Keystore name")
	fs.StringVar(&f.Catalog, "catalog", "", "Network catalog (YAML) path")
	fs.StringVar(&f.Networks, "networks", "", "Comma-separated network uids to manage")

	// Client
	fs.StringVar(&f.Endpoint, "endpoint", "", "Ledger indexer JSON-RPC endpoint")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-request timeout")
	fs.IntVar(&f.Concurrency, "concurrency", 0, "Concurrent indexer requests")

	// Sync
	fs.DurationVar(&f.SyncInterval, "sync-interval", 0, "Time between syncs")

	// Storage
	fs.StringVar(&f.Storage, "storage", "", "Storage backend (badger, memory, redis)")
	fs.StringVar(&f.Redis, "redis", "", "Redis address for the redis backend")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", false, "Serve Prometheus metrics")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Metrics listen address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			f.Help = true
			return f, nil
		}
		return nil, err
	}

	if testnet {
		f.Network = string(Testnet)
	}
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// A positional argument stops the parser; anything flag-like after it
	// was silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Account != "" {
		cfg.Account = f.Account
	}
	if f.Catalog != "" {
		cfg.Catalog = f.Catalog
	}
	if f.Networks != "" {
		cfg.Networks = parseStringList(f.Networks)
	}

	// Client
	if f.Endpoint != "" {
		cfg.Client.Endpoint = f.Endpoint
	}
	if f.Timeout != 0 {
		cfg.Client.Timeout = f.Timeout
	}
	if f.Concurrency != 0 {
		cfg.Client.Concurrency = f.Concurrency
	}

	if f.SyncInterval != 0 {
		cfg.Sync.Interval = f.SyncInterval
	}

	// Storage
	if f.Storage != "" {
		cfg.Storage.Backend = f.Storage
	}
	if f.Redis != "" {
		cfg.Storage.RedisAddr = f.Redis
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the daemon help text to stdout.
func PrintUsage() {
	usage := `Walletkit - multi-ledger wallet manager

Usage:
  walletkitd [options]
  walletkitd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.walletkit)
  --config, -c    Config file path (default: <datadir>/walletkit.conf)
  --account       Keystore name (default: default)
  --catalog       Network catalog YAML (default: built-in catalog)
  --networks      Comma-separated network uids (default: all of the type)

Client Options:
  --endpoint      Indexer JSON-RPC endpoint (mainnet: :8545, testnet: :8645)
  --timeout       Per-request timeout (default: 10s)
  --concurrency   Concurrent indexer requests (default: 4)

Sync Options:
  --sync-interval Time between syncs (mainnet: 30s, testnet: 10s)

Storage Options:
  --storage       Backend: badger (default), memory or redis
  --redis         Redis address (default: 127.0.0.1:6379)

Metrics Options:
  --metrics       Serve Prometheus metrics on /metrics
  --metrics-addr  Metrics listen address (default: 127.0.0.1:9464)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Manage every testnet network in the built-in catalog
  walletkitd --testnet

  # Only Sepolia, against a remote indexer, with metrics
  walletkitd --testnet --networks=ethereum-sepolia \
    --endpoint=https://indexer.example.org --metrics

Note:
  Create an account first with walletkit-cli init. Data directories are
  created automatically on first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.EqualFold(flags.Network, string(Testnet)) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// LoadFromFile loads config from defaults + conf file only (no CLI flags).
func LoadFromFile(dataDir string, network NetworkType) (*Config, error) {
	cfg := Default(network)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	fileValues, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. It is safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.KeystoreDir(),
		cfg.StoreDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
