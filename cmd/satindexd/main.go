// Satindex daemon.
//
// Walks a Bitcoin-style chain from genesis via bitcoind RPC and maintains
// the persistent sat-range and inscription index.
//
// Usage:
//
//	satindexd [--index-sats --rpc-user=... --rpc-pass=...]
//	satindexd --help
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/satlabs/satindex/config"
	"github.com/satlabs/satindex/internal/index"
	klog "github.com/satlabs/satindex/internal/log"
	"github.com/satlabs/satindex/internal/rpcclient"
	"github.com/satlabs/satindex/internal/storage"
)

// pollInterval is how long the daemon waits between update passes once it
// has caught up with the chain tip.
const pollInterval = 5 * time.Second

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ──────────────────────────────────────────────────
	// Default to logging to <datadir>/logs/satindex.log alongside console.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.LogsDir(), "satindex.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("satindexd")

	logger.Info().
		Str("network", string(cfg.Network)).
		Bool("index_sats", cfg.Index.Sats).
		Str("rpc", cfg.RPC.URL).
		Msg("Starting Satindex")

	// ── 3. Open storage ─────────────────────────────────────────────────
	store, err := storage.NewBadger(cfg.IndexDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.IndexDir()).Msg("Failed to open database")
	}
	defer store.Close()

	logger.Info().Str("path", cfg.IndexDir()).Msg("Database opened")

	// ── 4. Create RPC client and index ──────────────────────────────────
	client := rpcclient.NewWithTimeout(cfg.RPC.URL, cfg.RPC.User, cfg.RPC.Pass,
		time.Duration(cfg.RPC.TimeoutSeconds)*time.Second)

	idx := index.Open(store, client, index.Options{
		IndexSats:   cfg.Index.Sats,
		Mainnet:     cfg.Network == config.Mainnet,
		HeightLimit: cfg.Index.HeightLimit,
	})

	// ── 5. Wire signals to the interrupt counter ────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			index.Interrupt()
		}
	}()

	// ── 6. Update loop ──────────────────────────────────────────────────
	for !index.Interrupted() {
		if err := idx.Update(); err != nil {
			if errors.Is(err, index.ErrReorgDetected) {
				logger.Error().Err(err).Msg("Reorg detected; restart to reindex")
			} else {
				logger.Error().Err(err).Msg("Update failed")
			}
			os.Exit(1)
		}

		height, err := idx.Height()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read index height")
			os.Exit(1)
		}
		logger.Info().Uint64("next_height", height).Msg("Caught up with chain tip")

		if cfg.Index.HeightLimit > 0 && height >= cfg.Index.HeightLimit {
			logger.Info().Uint64("limit", cfg.Index.HeightLimit).Msg("Height limit reached")
			break
		}

		time.Sleep(pollInterval)
	}

	logger.Info().Msg("Goodbye!")
}
