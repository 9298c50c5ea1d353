package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Signet, Regtest:
	default:
		return fmt.Errorf("network must be %q, %q, %q, or %q", Mainnet, Testnet, Signet, Regtest)
	}

	if cfg.RPC.URL == "" {
		return fmt.Errorf("rpc.url must not be empty")
	}
	u, err := url.Parse(cfg.RPC.URL)
	if err != nil {
		return fmt.Errorf("rpc.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("rpc.url must be http or https, got %q", u.Scheme)
	}
	if cfg.RPC.TimeoutSeconds < 0 {
		return fmt.Errorf("rpc.timeout must not be negative")
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}

	return nil
}
