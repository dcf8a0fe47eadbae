package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default devnet endpoints and token identity. The mint matches the devnet
// USDC faucet token; override both for mainnet deployments.
const (
	DefaultRPCEndpoint = "https://api.devnet.solana.com"
	DefaultUSDCMint    = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// Config carries everything the gateway needs from the environment. It is
// loaded once in main and passed into constructors explicitly, so tests can
// build their own instead of reaching for process-wide state.
type Config struct {
	Port string

	// External tabular store (Supabase PostgREST).
	SupabaseURL string
	SupabaseKey string

	// Solana network.
	RPCEndpoint string
	USDCMint    string

	// Donor signer. Either a base58-encoded secret key or a path to a
	// solana-keygen JSON file. Both empty means the gateway runs without a
	// connected wallet and donations are rejected up front.
	DonorSecretKey  string
	DonorKeygenFile string

	// How long to poll for transaction confirmation before giving up.
	ConfirmTimeout time.Duration

	// Reconciliation worker pool.
	ReconcileWorkers   int
	ReconcileQueueSize int
	ReconcileSchedule  string
}

// Load reads configuration from the environment, with a .env file as an
// optional local convenience.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseKey:        os.Getenv("SUPABASE_SERVICE_KEY"),
		RPCEndpoint:        getEnv("SOLANA_RPC_ENDPOINT", DefaultRPCEndpoint),
		USDCMint:           getEnv("USDC_MINT_ADDRESS", DefaultUSDCMint),
		DonorSecretKey:     os.Getenv("DONOR_SECRET_KEY"),
		DonorKeygenFile:    os.Getenv("DONOR_KEYGEN_FILE"),
		ConfirmTimeout:     getEnvDuration("CONFIRM_TIMEOUT", 90*time.Second),
		ReconcileWorkers:   getEnvInt("RECONCILE_WORKERS", 2),
		ReconcileQueueSize: getEnvInt("RECONCILE_QUEUE_SIZE", 100),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "@every 2m"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
