package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawmove/swap-engine/internal/broadcast"
	"github.com/rawmove/swap-engine/internal/executor"
	"github.com/rawmove/swap-engine/internal/models"
	"github.com/rawmove/swap-engine/internal/notifications"
	"github.com/rawmove/swap-engine/internal/signal"
)

const maxQueryLimit = 1000

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// SignalExecutor runs one validated signal to completion.
// Satisfied by executor.Sequencer; faked in tests.
type SignalExecutor interface {
	Execute(ctx context.Context, sig *signal.Signal) (*executor.Result, error)
}

// SignalStore is the slice of the repository the HTTP layer uses.
type SignalStore interface {
	Record(ctx context.Context, rec *models.SignalRecord) (*models.SignalRecord, error)
	GetByDay(ctx context.Context, tradingDay string) ([]models.SignalRecord, error)
	GetAll(ctx context.Context, limit int) ([]models.SignalRecord, error)
	SeenToday(ctx context.Context, signalID string) (bool, error)
	GetStats(ctx context.Context) (*models.ExecutionStats, error)
}

// WalletReader is what the diagnostics endpoints need from the chain client.
type WalletReader interface {
	WalletAddress() common.Address
	ETHBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
}

// Deps carries everything the server talks to. Pool may be nil in tests.
type Deps struct {
	Pool      *pgxpool.Pool
	Store     SignalStore
	Exec      SignalExecutor
	Chain     WalletReader
	Notify    *notifications.Sender
	Broadcast *broadcast.Broadcaster
}

// Settings are the request-handling knobs lifted from config.
type Settings struct {
	Port            int
	SharedSecret    string
	ChainID         int64
	VenueName       string
	WETHAddress     string
	DryRun          bool
	DedupeSignals   bool
	TokenAllowlist  []string
	CORSAllowOrigin string
}

type Server struct {
	deps       Deps
	settings   Settings
	allowed    map[string]bool // lowercased token allow-list; empty = all allowed
	httpServer *http.Server
}

func NewServer(deps Deps, settings Settings) *Server {
	s := &Server{deps: deps, settings: settings}

	if len(settings.TokenAllowlist) > 0 {
		s.allowed = make(map[string]bool, len(settings.TokenAllowlist))
		for _, t := range settings.TokenAllowlist {
			s.allowed[strings.ToLower(t)] = true
		}
	}

	mux := http.NewServeMux()

	// Signal intake
	mux.HandleFunc("POST /{$}", s.handleHook)
	mux.HandleFunc("POST /hook", s.handleHook)

	// Liveness
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /test", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Diagnostics
	mux.HandleFunc("GET /diag", s.handleDiag)
	mux.HandleFunc("GET /addr", s.handleAddr)
	mux.HandleFunc("GET /env", s.handleEnv)

	// Execution history
	mux.HandleFunc("GET /v1/signals/today", s.handleSignalsToday)
	mux.HandleFunc("GET /v1/signals/day/{date}", s.handleSignalsByDay)
	mux.HandleFunc("GET /v1/signals/all", s.handleAllSignals)
	mux.HandleFunc("GET /v1/signals/stats", s.handleSignalStats)

	// Live event stream
	if deps.Broadcast != nil {
		mux.HandleFunc("GET /ws", deps.Broadcast.Handler())
	}

	handler := s.authMiddleware(corsMiddleware(mux, settings.CORSAllowOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // a live swap holds the request open
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] Server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Webhook intake: POST http://localhost%s/hook\n", s.httpServer.Addr)
	if s.settings.SharedSecret != "" {
		fmt.Println("[API] Webhook gate: enabled (shared secret)")
	} else {
		fmt.Println("[API] Webhook gate: NO SECRET CONFIGURED, all signals rejected")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

// authMiddleware protects the read endpoints (history, diagnostics) with
// the shared secret when one is configured. The hook does its own stricter
// gate, and liveness probes stay open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	open := map[string]bool{
		"/": true, "/test": true, "/health": true, "/hook": true, "/ws": true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.settings.SharedSecret == "" || r.Method != http.MethodGet || open[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-Secret") != s.settings.SharedSecret {
			writeError(w, http.StatusUnauthorized, "invalid or missing X-Secret header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Secret")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
