package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	VenueAggregator = "aggregator"
	VenueRouter     = "router"
)

type Config struct {
	// Server
	Port            int
	CORSAllowOrigin string

	// Secrets (from .env)
	SharedSecret string
	PrivateKey   string
	WebhookURL   string
	BotName      string

	// Blockchain
	RPCURL        string
	ChainID       int64
	WETHAddress   string
	GasLimit      int
	GasMultiplier float64

	// Venue
	SwapVenue     string
	AggregatorURL string
	RouterAddress string
	QuoterAddress string
	FeeTiers      []uint32

	// Trading parameters
	TradePercent int
	SlippageBps  int
	DeadlineSec  int64
	DryRun       bool

	// Policy
	AllowDegradedQuote bool
	DedupeSignals      bool
	TokenAllowlist     []string
	MaxDailySignals    int
	MaxAmountInWei     string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Server
		Port:            envInt("PORT", 10000),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Secrets
		SharedSecret: strings.TrimSpace(envStr("SHARED_SECRET", "")),
		PrivateKey:   strings.TrimSpace(envStr("PRIVATE_KEY", "")),
		WebhookURL:   envStr("WEBHOOK_URL", ""),
		BotName:      envStr("BOT_NAME", "SwapEngine"),

		// Blockchain
		RPCURL:        strings.TrimSpace(envStr("RPC_URL", "")),
		ChainID:       int64(envInt("CHAIN_ID", 8453)),
		WETHAddress:   envStr("WETH_ADDRESS", "0x4200000000000000000000000000000000000006"),
		GasLimit:      envInt("GAS_LIMIT", 350000),
		GasMultiplier: envFloat("GAS_MULTIPLIER", 1.2),

		// Venue
		SwapVenue:     envStr("SWAP_VENUE", VenueAggregator),
		AggregatorURL: envStr("AGGREGATOR_URL", "https://base.api.0x.org/swap/v1/quote"),
		RouterAddress: envStr("ROUTER_ADDRESS", ""),
		QuoterAddress: envStr("QUOTER_ADDRESS", ""),
		FeeTiers:      envTiers("FEE_TIERS", []uint32{500, 3000, 10000}),

		// Trading parameters
		TradePercent: envInt("TRADE_PERCENT", 90),
		SlippageBps:  envInt("SLIPPAGE_BPS", 150),
		DeadlineSec:  int64(envInt("DEADLINE_SEC", 300)),
		DryRun:       envBool("DRY_RUN", false),

		// Policy
		AllowDegradedQuote: envBool("ALLOW_DEGRADED_QUOTE", false),
		DedupeSignals:      envBool("DEDUPE_SIGNALS", false),
		TokenAllowlist:     envCSV("TOKEN_ALLOWLIST"),
		MaxDailySignals:    envInt("MAX_DAILY_SIGNALS", 0),
		MaxAmountInWei:     envStr("MAX_AMOUNT_IN_WEI", ""),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "swap_engine"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.RPCURL == "" {
		errs = append(errs, "RPC_URL is required")
	}
	if c.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY is required")
	}
	if c.TradePercent < 1 || c.TradePercent > 100 {
		errs = append(errs, "TRADE_PERCENT must be in [1,100]")
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10000 {
		errs = append(errs, "SLIPPAGE_BPS must be in [0,10000]")
	}

	switch c.SwapVenue {
	case VenueAggregator:
		if c.AggregatorURL == "" {
			errs = append(errs, "AGGREGATOR_URL is required for the aggregator venue")
		}
	case VenueRouter:
		if c.RouterAddress == "" {
			errs = append(errs, "ROUTER_ADDRESS is required for the router venue")
		}
		if c.QuoterAddress == "" && !c.AllowDegradedQuote {
			errs = append(errs, "QUOTER_ADDRESS is required unless ALLOW_DEGRADED_QUOTE=true")
		}
	default:
		errs = append(errs, fmt.Sprintf("SWAP_VENUE must be %q or %q", VenueAggregator, VenueRouter))
	}

	if _, ok := c.MaxAmountIn(); !ok {
		errs = append(errs, "MAX_AMOUNT_IN_WEI is not a valid integer")
	}

	if c.SharedSecret == "" {
		fmt.Println("[WARN] SHARED_SECRET not set, every webhook request will be rejected")
	}
	if c.AllowDegradedQuote {
		fmt.Println("[WARN] ALLOW_DEGRADED_QUOTE=true, swaps may execute with no slippage guard")
	}
	if c.DryRun {
		fmt.Println("[WARN] DRY_RUN=true, no transactions will be submitted")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// MaxAmountIn parses the per-trade cap. Empty means no cap.
func (c *Config) MaxAmountIn() (*big.Int, bool) {
	if c.MaxAmountInWei == "" {
		return nil, true
	}
	v, ok := new(big.Int).SetString(c.MaxAmountInWei, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func (c *Config) Print() {
	fmt.Println("=== Swap Engine Configuration ===")

	if c.DryRun {
		fmt.Println("════════════════════════════════")
		fmt.Println("  DRY RUN MODE ENABLED")
		fmt.Println("  No transactions will execute")
		fmt.Println("════════════════════════════════")
	} else {
		fmt.Println("  LIVE TRADING MODE")
	}

	fmt.Println("---------------------------------")
	fmt.Printf("Chain ID: %d\n", c.ChainID)
	fmt.Printf("Venue: %s\n", c.SwapVenue)
	if c.SwapVenue == VenueRouter {
		fmt.Printf("  Router: %s\n", truncAddr(c.RouterAddress))
		fmt.Printf("  Quoter: %s\n", boolLabel(c.QuoterAddress != "", truncAddr(c.QuoterAddress), "not set (degraded quotes only)"))
		fmt.Printf("  Fee tiers: %v\n", c.FeeTiers)
	} else {
		fmt.Printf("  Aggregator: %s\n", c.AggregatorURL)
	}
	fmt.Println("---------------------------------")
	fmt.Printf("Trade size: %d%% of balance\n", c.TradePercent)
	fmt.Printf("Slippage: %d bps\n", c.SlippageBps)
	fmt.Printf("Deadline: %ds\n", c.DeadlineSec)
	fmt.Printf("Degraded quotes allowed: %v\n", c.AllowDegradedQuote)
	fmt.Printf("Signal dedupe: %v\n", c.DedupeSignals)
	if c.MaxDailySignals > 0 {
		fmt.Printf("Max daily signals: %d\n", c.MaxDailySignals)
	}
	fmt.Println("=================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func envCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envTiers(key string, fallback []uint32) []uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []uint32
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return fallback
		}
		out = append(out, uint32(n))
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func truncAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:10]
	}
	return addr
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
