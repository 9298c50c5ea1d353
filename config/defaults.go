package config

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			URL:            "http://127.0.0.1:8332",
			TimeoutSeconds: 10,
		},
		Index: IndexConfig{
			Sats: false,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	cfg := DefaultMainnet()
	cfg.Network = network
	switch network {
	case Testnet:
		cfg.RPC.URL = "http://127.0.0.1:18332"
	case Signet:
		cfg.RPC.URL = "http://127.0.0.1:38332"
	case Regtest:
		cfg.RPC.URL = "http://127.0.0.1:18443"
	}
	return cfg
}
