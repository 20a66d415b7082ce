package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawmove/swap-engine/internal/api"
	"github.com/rawmove/swap-engine/internal/broadcast"
	"github.com/rawmove/swap-engine/internal/config"
	"github.com/rawmove/swap-engine/internal/db"
	"github.com/rawmove/swap-engine/internal/ethereum"
	"github.com/rawmove/swap-engine/internal/executor"
	"github.com/rawmove/swap-engine/internal/external"
	"github.com/rawmove/swap-engine/internal/notifications"
	"github.com/rawmove/swap-engine/internal/repository"
	"github.com/rawmove/swap-engine/internal/risk"
	"github.com/rawmove/swap-engine/internal/swap"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

const banner = `
╔══════════════════════════════════════╗
║      RAWMOVE Swap Engine v0.3        ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Chain client
	chain, err := ethereum.NewClient(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID, cfg.GasLimit, cfg.GasMultiplier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ETH] Client init failed: %v\n", err)
		os.Exit(1)
	}
	defer chain.Close()
	fmt.Printf("[ETH] Wallet: %s\n", chain.WalletAddress().Hex())

	// Database: execution history, daily counters and the replay guard.
	// Optional so a dry-run sandbox can come up without Postgres.
	var pool *pgxpool.Pool
	var store api.SignalStore
	var counter risk.DailySignalCounter
	if cfg.DBUser != "" {
		fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err = db.Connect(cfg.DSN())
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			pool.Close()
			fmt.Println("[DB] Connection pool closed")
		}()

		if err := db.TestConnection(pool); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
			os.Exit(1)
		}

		repo := repository.NewSignalRepo(pool)
		store = repo
		counter = repo
	} else {
		fmt.Println("[DB] Skipped - no DB_USER configured, history and dedupe disabled")
	}

	// Swap venue
	var venue swap.Venue
	switch cfg.SwapVenue {
	case config.VenueRouter:
		venue, err = ethereum.NewRouterVenue(chain, cfg.RouterAddress, cfg.QuoterAddress, cfg.WETHAddress, cfg.FeeTiers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ETH] Router venue init failed: %v\n", err)
			os.Exit(1)
		}
	default:
		venue = external.NewZeroExClient(cfg.AggregatorURL, chain.WalletAddress())
	}
	fmt.Printf("[VENUE] Using %s\n", venue.Name())

	// Pre-trade risk limits
	maxIn, _ := cfg.MaxAmountIn()
	guard := risk.NewGuardian(risk.Limits{
		MaxDailySignals: cfg.MaxDailySignals,
		MaxAmountInWei:  maxIn,
	}, counter)

	seq := executor.NewSequencer(chain, venue, guard, executor.Options{
		WETH:               gethcommon.HexToAddress(cfg.WETHAddress),
		DefaultPercent:     cfg.TradePercent,
		DeadlineSec:        cfg.DeadlineSec,
		DryRun:             cfg.DryRun,
		AllowDegradedQuote: cfg.AllowDegradedQuote,
	})

	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)
	bcast := broadcast.NewBroadcaster()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(api.Deps{
		Pool:      pool,
		Store:     store,
		Exec:      seq,
		Chain:     chain,
		Notify:    notify,
		Broadcast: bcast,
	}, api.Settings{
		Port:            cfg.Port,
		SharedSecret:    cfg.SharedSecret,
		ChainID:         cfg.ChainID,
		VenueName:       venue.Name(),
		WETHAddress:     cfg.WETHAddress,
		DryRun:          cfg.DryRun,
		DedupeSignals:   cfg.DedupeSignals,
		TokenAllowlist:  cfg.TokenAllowlist,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	notify.Send("Swap engine started")
	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
