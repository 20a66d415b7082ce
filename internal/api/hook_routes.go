package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rawmove/swap-engine/internal/broadcast"
	"github.com/rawmove/swap-engine/internal/executor"
	"github.com/rawmove/swap-engine/internal/models"
	"github.com/rawmove/swap-engine/internal/signal"
)

// hookResponse is the 200 body for an executed signal. Amounts are decimal
// strings; wei does not survive a float64 round trip.
type hookResponse struct {
	OK             bool           `json:"ok"`
	SignalID       string         `json:"signalId"`
	Side           string         `json:"side"`
	Venue          string         `json:"venue"`
	AmountIn       string         `json:"amountIn"`
	ExpectedOut    string         `json:"expectedOut,omitempty"`
	MinOut         string         `json:"minOut"`
	FeeTier        uint32         `json:"feeTier,omitempty"`
	ApproveTxHash  string         `json:"approveTxHash,omitempty"`
	TxHash         string         `json:"txHash,omitempty"`
	UnwrapTxHash   string         `json:"unwrapTxHash,omitempty"`
	UsedFallback   bool           `json:"usedFallback"`
	FallbackReason string         `json:"fallbackReason,omitempty"`
	DryRun         bool           `json:"dryRun"`
	FinalState     executor.State `json:"finalState"`
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	var sig signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": "invalid_payload", "detail": "malformed JSON",
		})
		return
	}

	// Gate before anything else. An empty configured secret fails closed.
	if !s.gateOK(&sig, r) {
		fmt.Printf("[HOOK] Rejected signal %q: bad or missing secret\n", sig.SignalID)
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"ok": false, "error": "unauthorized",
		})
		return
	}

	if vr := signal.Validate(&sig, s.settings.ChainID); !vr.OK() {
		fmt.Printf("[HOOK] Invalid signal %q: %s\n", sig.SignalID, vr.Error())
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": "invalid_payload",
			"missing": vr.Missing, "invalid": vr.Invalid,
		})
		return
	}

	if !s.tokensAllowed(&sig) {
		fmt.Printf("[HOOK] Rejected signal %q: token not in allow-list\n", sig.SignalID)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": "token_not_allowed",
		})
		return
	}

	if s.settings.DedupeSignals && s.deps.Store != nil {
		seen, err := s.deps.Store.SeenToday(r.Context(), sig.SignalID)
		if err != nil {
			fmt.Printf("[HOOK] Dedupe lookup failed for %q: %v\n", sig.SignalID, err)
		} else if seen {
			writeJSON(w, http.StatusConflict, map[string]any{
				"ok": false, "error": "duplicate_signal", "signalId": sig.SignalID,
			})
			return
		}
	}

	fmt.Printf("[HOOK] Accepted signal %s: %s %s\n", sig.SignalID, strings.ToUpper(sig.Side), sig.Symbol)

	res, execErr := s.deps.Exec.Execute(r.Context(), &sig)

	s.persist(&sig, res, execErr)
	if s.deps.Notify != nil {
		s.deps.Notify.ReportExecution(sig.SignalID, sig.Symbol, res, execErr)
	}
	s.publish(&sig, res, execErr)

	if execErr != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok": false, "error": execErr.Error(),
			"signalId": sig.SignalID, "finalState": res.FinalState,
			"usedFallback": res.UsedFallback, "dryRun": res.DryRun,
		})
		return
	}

	writeJSON(w, http.StatusOK, hookResponse{
		OK:             true,
		SignalID:       sig.SignalID,
		Side:           res.Side,
		Venue:          res.Venue,
		AmountIn:       bigStr(res.AmountIn),
		ExpectedOut:    bigStr(res.ExpectedOut),
		MinOut:         bigStr(res.MinOut),
		FeeTier:        res.FeeTier,
		ApproveTxHash:  res.ApproveTxHash,
		TxHash:         res.TxHash,
		UnwrapTxHash:   res.UnwrapTxHash,
		UsedFallback:   res.UsedFallback,
		FallbackReason: res.FallbackReason,
		DryRun:         res.DryRun,
		FinalState:     res.FinalState,
	})
}

// gateOK checks the shared secret, from the X-Secret header or the body.
func (s *Server) gateOK(sig *signal.Signal, r *http.Request) bool {
	if s.settings.SharedSecret == "" {
		return false
	}
	if r.Header.Get("X-Secret") == s.settings.SharedSecret {
		return true
	}
	return sig.Secret == s.settings.SharedSecret
}

// tokensAllowed enforces the optional token allow-list. Native sentinels
// are always allowed; they name the chain's own asset.
func (s *Server) tokensAllowed(sig *signal.Signal) bool {
	if s.allowed == nil {
		return true
	}
	for _, t := range []string{sig.SrcToken, sig.DstToken} {
		if signal.IsNative(t) {
			continue
		}
		if !s.allowed[strings.ToLower(t)] {
			return false
		}
	}
	return true
}

// persist records the attempt whether it succeeded or not. A storage
// failure is logged and swallowed: the swap already happened.
func (s *Server) persist(sig *signal.Signal, res *executor.Result, execErr error) {
	if s.deps.Store == nil {
		return
	}

	status := "done"
	var errStr *string
	if execErr != nil {
		status = "failed"
		msg := execErr.Error()
		errStr = &msg
	}

	rec := &models.SignalRecord{
		Timestamp:      time.Now(),
		SignalID:       sig.SignalID,
		Symbol:         sig.Symbol,
		TF:             sig.TF,
		Side:           res.Side,
		Venue:          res.Venue,
		AmountIn:       bigStrPtr(res.AmountIn),
		ExpectedOut:    bigStrPtr(res.ExpectedOut),
		MinOut:         bigStrPtr(res.MinOut),
		ApproveTxHash:  strPtr(res.ApproveTxHash),
		TxHash:         strPtr(res.TxHash),
		UnwrapTxHash:   strPtr(res.UnwrapTxHash),
		Status:         status,
		UsedFallback:   res.UsedFallback,
		FallbackReason: strPtr(res.FallbackReason),
		IsDryRun:       res.DryRun,
		Error:          errStr,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.deps.Store.Record(ctx, rec); err != nil {
		fmt.Printf("[HOOK] Failed to record signal %s: %v\n", sig.SignalID, err)
	}
}

func (s *Server) publish(sig *signal.Signal, res *executor.Result, execErr error) {
	if s.deps.Broadcast == nil {
		return
	}

	ev := broadcast.Event{
		At:           time.Now().UTC(),
		SignalID:     sig.SignalID,
		Symbol:       sig.Symbol,
		Side:         res.Side,
		Venue:        res.Venue,
		Status:       "done",
		AmountIn:     bigStr(res.AmountIn),
		MinOut:       bigStr(res.MinOut),
		TxHash:       res.TxHash,
		UnwrapTxHash: res.UnwrapTxHash,
		UsedFallback: res.UsedFallback,
		DryRun:       res.DryRun,
	}
	if execErr != nil {
		ev.Status = "failed"
		ev.Error = execErr.Error()
	}
	s.deps.Broadcast.Publish(ev)
}

// --- small conversions ---

func bigStr(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func bigStrPtr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
