package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlaceholderContract is the address the dashboard shipped with. It does not
// point at a deployed LeafConfidentialTrade contract.
const PlaceholderContract = "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6"

type API struct {
	Addr        string
	CORSOrigins []string
}

type Chain struct {
	// RPCURL selects the go-ethereum client. Empty means the in-process
	// dev chain is used instead.
	RPCURL          string
	ChainID         int64
	ContractAddress string
	// ReceiptPoll is the interval between TransactionReceipt lookups.
	ReceiptPoll time.Duration
	// DevMineDelay is how long the dev chain waits before a receipt exists.
	DevMineDelay time.Duration
}

type Wallet struct {
	PrivateKeyHex string
	AutoConnect   bool
}

type Storage struct {
	DBPath    string
	TxLogPath string
	// Retention is how long a finished submission stays in memory. Older
	// ones are still served from the journal.
	Retention time.Duration
	// EvictInterval is how often Retention is applied; zero disables eviction.
	EvictInterval time.Duration
}

type Log struct {
	File  string
	Level string
}

type Config struct {
	API     API
	Chain   Chain
	Wallet  Wallet
	Storage Storage
	Log     Log
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Chain: Chain{
			ChainID:         11155111, // Sepolia
			ContractAddress: PlaceholderContract,
			ReceiptPoll:     2 * time.Second,
			DevMineDelay:    1500 * time.Millisecond,
		},
		Wallet: Wallet{
			AutoConnect: false,
		},
		Storage: Storage{
			DBPath:        "data/submissions.db",
			TxLogPath:     "data/transactions.log",
			Retention:     time.Hour,
			EvictInterval: time.Minute,
		},
		Log: Log{
			File:  "data/leafd.log",
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// .env is optional
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}

	cfg.Chain.RPCURL = getEnv("RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.ContractAddress = getEnv("CONTRACT_ADDRESS", cfg.Chain.ContractAddress)
	if id := os.Getenv("CHAIN_ID"); id != "" {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil && v > 0 {
			cfg.Chain.ChainID = v
		}
	}
	cfg.Chain.ReceiptPoll = getMillis("RECEIPT_POLL_MS", cfg.Chain.ReceiptPoll)
	cfg.Chain.DevMineDelay = getMillis("DEV_MINE_DELAY_MS", cfg.Chain.DevMineDelay)

	cfg.Wallet.PrivateKeyHex = strings.TrimPrefix(os.Getenv("WALLET_PRIVATE_KEY"), "0x")
	if auto := os.Getenv("WALLET_AUTOCONNECT"); auto != "" {
		cfg.Wallet.AutoConnect = auto == "true"
	}

	cfg.Storage.DBPath = getEnv("DB_PATH", cfg.Storage.DBPath)
	cfg.Storage.TxLogPath = getEnv("TX_LOG_FILE", cfg.Storage.TxLogPath)
	cfg.Storage.Retention = getMillis("SUBMISSION_RETENTION_MS", cfg.Storage.Retention)
	cfg.Storage.EvictInterval = getMillis("SUBMISSION_EVICT_INTERVAL_MS", cfg.Storage.EvictInterval)

	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	return cfg
}

// UsesDevChain reports whether no RPC endpoint is configured.
func (c Config) UsesDevChain() bool { return c.Chain.RPCURL == "" }

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getMillis(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
