// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Chain parameters: fixed by the network being indexed
//   - Node settings: Runtime configuration, can vary per deployment
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies the chain being indexed.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Signet  NetworkType = "signet"
	Regtest NetworkType = "regtest"
)

// Config holds runtime configuration for the indexer.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Source node RPC
	RPC RPCConfig

	// Indexing
	Index IndexConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds the bitcoind RPC connection settings.
type RPCConfig struct {
	URL            string `conf:"rpc.url"`
	User           string `conf:"rpc.user"`
	Pass           string `conf:"rpc.pass"`
	TimeoutSeconds int    `conf:"rpc.timeout"`
}

// IndexConfig holds indexing settings.
type IndexConfig struct {
	// Sats enables per-satoshi range tracking. Without it only
	// inscriptions are tracked, and on mainnet only block headers are
	// fetched, so inscriptions are not tracked there either.
	Sats bool `conf:"index.sats"`

	// HeightLimit stops indexing before this height (0 = no limit).
	HeightLimit uint64 `conf:"index.heightlimit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.satindex
//	macOS:   ~/Library/Application Support/Satindex
//	Windows: %APPDATA%\Satindex
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".satindex"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Satindex")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Satindex")
		}
		return filepath.Join(home, "AppData", "Roaming", "Satindex")
	default:
		return filepath.Join(home, ".satindex")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// IndexDir returns the index database directory.
func (c *Config) IndexDir() string {
	return filepath.Join(c.ChainDataDir(), "index")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "satindex.conf")
}
