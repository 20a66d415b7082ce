package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rawmove/swap-engine/internal/executor"
	"github.com/rawmove/swap-engine/internal/models"
	"github.com/rawmove/swap-engine/internal/signal"
)

type fakeExec struct {
	res     *executor.Result
	err     error
	called  int
	lastSig *signal.Signal
}

func (f *fakeExec) Execute(ctx context.Context, sig *signal.Signal) (*executor.Result, error) {
	f.called++
	f.lastSig = sig
	if f.res == nil {
		f.res = &executor.Result{FinalState: executor.StateFailed}
	}
	return f.res, f.err
}

type fakeStore struct {
	seen     bool
	recorded []*models.SignalRecord
}

func (f *fakeStore) Record(ctx context.Context, rec *models.SignalRecord) (*models.SignalRecord, error) {
	f.recorded = append(f.recorded, rec)
	return rec, nil
}

func (f *fakeStore) GetByDay(ctx context.Context, day string) ([]models.SignalRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetAll(ctx context.Context, limit int) ([]models.SignalRecord, error) {
	return nil, nil
}

func (f *fakeStore) SeenToday(ctx context.Context, signalID string) (bool, error) {
	return f.seen, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*models.ExecutionStats, error) {
	return &models.ExecutionStats{}, nil
}

func testSettings() Settings {
	return Settings{
		Port:         0,
		SharedSecret: "hunter2",
		ChainID:      8453,
		VenueName:    "test-venue",
		DryRun:       true,
	}
}

func validPayload() map[string]any {
	return map[string]any{
		"action":      "trade",
		"side":        "SELL",
		"chainId":     8453,
		"srcToken":    "0x0000000000000000000000000000000000000000",
		"dstToken":    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"amountMode":  "exact_input",
		"amountValue": 90,
		"slippageBps": 150,
		"deadlineSec": 300,
		"symbol":      "ETHUSDC",
		"tf":          "15",
		"signalId":    "sig-001",
	}
}

func postHook(t *testing.T, srv *Server, payload map[string]any, secret string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Secret", secret)
	}
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
	return out
}

func TestHook_WrongSecret(t *testing.T) {
	exec := &fakeExec{}
	srv := NewServer(Deps{Exec: exec}, testSettings())

	rr := postHook(t, srv, validPayload(), "wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if exec.called != 0 {
		t.Fatal("executor must not run for unauthorized requests")
	}

	body := decodeBody(t, rr)
	if body["error"] != "unauthorized" {
		t.Fatalf("expected unauthorized error, got %v", body)
	}
}

func TestHook_EmptyConfiguredSecretRejectsEverything(t *testing.T) {
	settings := testSettings()
	settings.SharedSecret = ""
	exec := &fakeExec{}
	srv := NewServer(Deps{Exec: exec}, settings)

	// Even an empty supplied secret must not match an empty configured one.
	rr := postHook(t, srv, validPayload(), "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no configured secret, got %d", rr.Code)
	}
	if exec.called != 0 {
		t.Fatal("executor must not run when the gate is unconfigured")
	}
}

func TestHook_SecretInBody(t *testing.T) {
	exec := &fakeExec{res: dryRunResult()}
	srv := NewServer(Deps{Exec: exec}, testSettings())

	payload := validPayload()
	payload["secret"] = "hunter2"

	rr := postHook(t, srv, payload, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with body secret, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHook_MissingSlippage(t *testing.T) {
	exec := &fakeExec{}
	srv := NewServer(Deps{Exec: exec}, testSettings())

	payload := validPayload()
	delete(payload, "slippageBps")

	rr := postHook(t, srv, payload, "hunter2")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["error"] != "invalid_payload" {
		t.Fatalf("expected invalid_payload, got %v", body)
	}

	missing, ok := body["missing"].([]any)
	if !ok || len(missing) != 1 || missing[0] != "slippageBps" {
		t.Fatalf("expected missing=[slippageBps], got %v", body["missing"])
	}
	if exec.called != 0 {
		t.Fatal("executor must not run for invalid payloads")
	}
}

func TestHook_WrongChain(t *testing.T) {
	srv := NewServer(Deps{Exec: &fakeExec{}}, testSettings())

	payload := validPayload()
	payload["chainId"] = 1

	rr := postHook(t, srv, payload, "hunter2")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong chain, got %d", rr.Code)
	}
}

func TestHook_MalformedJSON(t *testing.T) {
	srv := NewServer(Deps{Exec: &fakeExec{}}, testSettings())

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func dryRunResult() *executor.Result {
	return &executor.Result{
		Side:        "SELL",
		Venue:       "test-venue",
		AmountIn:    big.NewInt(900),
		ExpectedOut: big.NewInt(1000),
		MinOut:      big.NewInt(990),
		TxHash:      "0xswap",
		DryRun:      true,
		FinalState:  executor.StateDone,
	}
}

func TestHook_SuccessResponse(t *testing.T) {
	exec := &fakeExec{res: dryRunResult()}
	store := &fakeStore{}
	srv := NewServer(Deps{Exec: exec, Store: store}, testSettings())

	rr := postHook(t, srv, validPayload(), "hunter2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body)
	}
	if body["amountIn"] != "900" || body["minOut"] != "990" {
		t.Fatalf("amounts must be decimal strings: %v", body)
	}
	if body["txHash"] != "0xswap" || body["side"] != "SELL" {
		t.Fatalf("unexpected response: %v", body)
	}

	if len(store.recorded) != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", len(store.recorded))
	}
	rec := store.recorded[0]
	if rec.Status != "done" || !rec.IsDryRun || *rec.AmountIn != "900" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestHook_ExecutionFailure(t *testing.T) {
	exec := &fakeExec{
		res: &executor.Result{Side: "SELL", FinalState: executor.StateFailed},
		err: errors.New("swap confirmation: transaction reverted"),
	}
	store := &fakeStore{}
	srv := NewServer(Deps{Exec: exec, Store: store}, testSettings())

	rr := postHook(t, srv, validPayload(), "hunter2")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["ok"] != false {
		t.Fatalf("expected ok:false, got %v", body)
	}

	if len(store.recorded) != 1 || store.recorded[0].Status != "failed" {
		t.Fatalf("failed execution must still be recorded: %+v", store.recorded)
	}
	if store.recorded[0].Error == nil {
		t.Fatal("record must carry the execution error")
	}
}

func TestHook_DuplicateSignal(t *testing.T) {
	settings := testSettings()
	settings.DedupeSignals = true
	exec := &fakeExec{}
	srv := NewServer(Deps{Exec: exec, Store: &fakeStore{seen: true}}, settings)

	rr := postHook(t, srv, validPayload(), "hunter2")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate signal, got %d", rr.Code)
	}
	if exec.called != 0 {
		t.Fatal("duplicate signal must not execute")
	}
}

func TestHook_DedupeDisabledByDefault(t *testing.T) {
	exec := &fakeExec{res: dryRunResult()}
	srv := NewServer(Deps{Exec: exec, Store: &fakeStore{seen: true}}, testSettings())

	rr := postHook(t, srv, validPayload(), "hunter2")
	if rr.Code != http.StatusOK {
		t.Fatalf("replay must execute when dedupe is off, got %d", rr.Code)
	}
	if exec.called != 1 {
		t.Fatalf("expected execution, called=%d", exec.called)
	}
}

func TestHook_TokenAllowlist(t *testing.T) {
	settings := testSettings()
	settings.TokenAllowlist = []string{"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"}
	exec := &fakeExec{res: dryRunResult()}
	srv := NewServer(Deps{Exec: exec}, settings)

	// Native + listed token passes.
	rr := postHook(t, srv, validPayload(), "hunter2")
	if rr.Code != http.StatusOK {
		t.Fatalf("allow-listed tokens must pass, got %d: %s", rr.Code, rr.Body.String())
	}

	// Unlisted token is rejected before execution.
	payload := validPayload()
	payload["dstToken"] = "0x1111111111111111111111111111111111111111"
	rr = postHook(t, srv, payload, "hunter2")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unlisted token, got %d", rr.Code)
	}
	if exec.called != 1 {
		t.Fatalf("unlisted token must not execute, called=%d", exec.called)
	}
}

func TestHook_RootAndHookAreSameHandler(t *testing.T) {
	exec := &fakeExec{res: dryRunResult()}
	srv := NewServer(Deps{Exec: exec}, testSettings())

	body, _ := json.Marshal(validPayload())
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("X-Secret", "hunter2")
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("POST / must accept signals, got %d: %s", rr.Code, rr.Body.String())
	}
}
