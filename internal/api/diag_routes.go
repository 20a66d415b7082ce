package api

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "swap-engine",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if s.deps.Pool == nil {
		dbStatus = "not configured"
	} else if err := s.deps.Pool.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Database: dbStatus},
	})
}

func (s *Server) handleAddr(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chain == nil {
		writeError(w, http.StatusServiceUnavailable, "chain client not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"wallet": s.deps.Chain.WalletAddress().Hex(),
	})
}

// handleDiag reports wallet balances and runtime state. Never secrets.
func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chain == nil {
		writeError(w, http.StatusServiceUnavailable, "chain client not available")
		return
	}

	out := map[string]any{
		"wallet":  s.deps.Chain.WalletAddress().Hex(),
		"chainId": s.settings.ChainID,
		"venue":   s.settings.VenueName,
		"dryRun":  s.settings.DryRun,
	}

	if eth, err := s.deps.Chain.ETHBalance(r.Context()); err != nil {
		out["ethBalanceError"] = err.Error()
	} else {
		out["ethBalanceWei"] = eth.String()
	}

	if s.settings.WETHAddress != "" {
		weth := common.HexToAddress(s.settings.WETHAddress)
		if bal, err := s.deps.Chain.TokenBalance(r.Context(), weth); err != nil {
			out["wethBalanceError"] = err.Error()
		} else {
			out["wethBalanceWei"] = bal.String()
		}
	}

	if s.deps.Broadcast != nil {
		out["wsClients"] = s.deps.Broadcast.ClientCount()
	}

	writeJSON(w, http.StatusOK, out)
}

// handleEnv echoes the non-secret configuration the process is running with.
func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chainId":        s.settings.ChainID,
		"venue":          s.settings.VenueName,
		"wethAddress":    s.settings.WETHAddress,
		"dryRun":         s.settings.DryRun,
		"dedupeSignals":  s.settings.DedupeSignals,
		"tokenAllowlist": s.settings.TokenAllowlist,
		"gateEnabled":    s.settings.SharedSecret != "",
	})
}
