package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}

	if cfg.Account == "" || strings.ContainsAny(cfg.Account, `/\`) {
		return fmt.Errorf("account must be a plain keystore name")
	}

	if strings.TrimSpace(cfg.Client.Endpoint) == "" {
		return fmt.Errorf("client.endpoint is empty")
	}
	u, err := url.Parse(cfg.Client.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client.endpoint must be an http(s) URL")
	}
	if cfg.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	if cfg.Client.Concurrency <= 0 {
		return fmt.Errorf("client.concurrency must be positive")
	}
	if cfg.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}

	switch cfg.Storage.Backend {
	case "", "badger", "memory":
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.backend=redis requires storage.redis")
		}
	default:
		return fmt.Errorf("storage.backend must be badger, memory or redis")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.enabled requires metrics.addr")
	}

	seen := make(map[string]struct{}, len(cfg.Networks))
	for i, uids := range cfg.Networks {
		s := strings.TrimSpace(uids)
		if s == "" {
			return fmt.Errorf("networks[%d] is empty", i)
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("networks has duplicate uids %q", s)
		}
		seen[s] = struct{}{}
		cfg.Networks[i] = s
	}
	return nil
}
