package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Account: "default",
		Client: ClientConfig{
			Endpoint:    "http://127.0.0.1:8545",
			Timeout:     10 * time.Second,
			Concurrency: 4,
		},
		Sync: SyncConfig{
			Interval: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   "badger",
			RedisAddr: "127.0.0.1:6379",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Client.Endpoint = "http://127.0.0.1:8645"
	cfg.Sync.Interval = 10 * time.Second
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
