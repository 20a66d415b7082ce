package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawmove/swap-engine/internal/signal"
	"github.com/rawmove/swap-engine/internal/swap"
)

var (
	wethAddr   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdcAddr   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bDa02913")
	routerAddr = common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481")
	walletAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeChain records every chain interaction in order so tests can assert
// the approve-before-swap / unwrap-after-confirm sequence.
type fakeChain struct {
	ops []string

	ethBalance   *big.Int
	tokenBalance map[common.Address]*big.Int
	allowance    *big.Int

	txCounter   int
	revertTxs   map[string]bool
	approveErr  error
	submitErr   error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		ethBalance:   big.NewInt(0),
		tokenBalance: map[common.Address]*big.Int{},
		allowance:    big.NewInt(0),
		revertTxs:    map[string]bool{},
	}
}

func (f *fakeChain) WalletAddress() common.Address { return walletAddr }

func (f *fakeChain) ETHBalance(context.Context) (*big.Int, error) {
	f.ops = append(f.ops, "ethBalance")
	return new(big.Int).Set(f.ethBalance), nil
}

func (f *fakeChain) TokenBalance(_ context.Context, token common.Address) (*big.Int, error) {
	f.ops = append(f.ops, "tokenBalance:"+token.Hex())
	if b, ok := f.tokenBalance[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) Allowance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	f.ops = append(f.ops, "allowance")
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(_ context.Context, _, _ common.Address, _ *big.Int) (string, error) {
	if f.approveErr != nil {
		return "", f.approveErr
	}
	f.txCounter++
	hash := fmt.Sprintf("0xapprove%d", f.txCounter)
	f.ops = append(f.ops, "approve:"+hash)
	return hash, nil
}

func (f *fakeChain) SignAndSend(_ context.Context, _ common.Address, _ *big.Int, _ []byte, _ uint64) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.txCounter++
	hash := fmt.Sprintf("0xswap%d", f.txCounter)
	f.ops = append(f.ops, "send:"+hash)
	return hash, nil
}

func (f *fakeChain) WaitMined(_ context.Context, txHash string) error {
	f.ops = append(f.ops, "wait:"+txHash)
	if f.revertTxs[txHash] {
		return fmt.Errorf("transaction %s reverted", txHash)
	}
	return nil
}

func (f *fakeChain) UnwrapWETH(_ context.Context, _ common.Address, _ *big.Int) (string, error) {
	f.txCounter++
	hash := fmt.Sprintf("0xunwrap%d", f.txCounter)
	f.ops = append(f.ops, "unwrap:"+hash)
	return hash, nil
}

// fakeVenue returns a canned quote.
type fakeVenue struct {
	quote *swap.Quote
	err   error
	got   *swap.QuoteRequest
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) Quote(_ context.Context, req swap.QuoteRequest) (*swap.Quote, error) {
	v.got = &req
	if v.err != nil {
		return nil, v.err
	}
	return v.quote, nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func buySignal() *signal.Signal {
	return &signal.Signal{
		Action:      "swap",
		Side:        "BUY",
		ChainID:     int64Ptr(8453),
		SrcToken:    usdcAddr.Hex(),
		DstToken:    signal.NativeEEEE,
		AmountMode:  signal.AmountModeExactInput,
		AmountValue: intPtr(90),
		SlippageBps: intPtr(100),
		DeadlineSec: int64Ptr(300),
		Symbol:      "ETHUSDC",
		TF:          "15m",
		SignalID:    "sig-1",
	}
}

func erc20Quote(minOut int64, needsUnwrap bool) *swap.Quote {
	return &swap.Quote{
		AmountOut:       big.NewInt(minOut * 10000 / 9900),
		MinOut:          big.NewInt(minOut),
		To:              routerAddr,
		CallData:        []byte{0x01},
		Value:           big.NewInt(0),
		AllowanceTarget: routerAddr,
		NeedsUnwrap:     needsUnwrap,
	}
}

func defaultOpts() Options {
	return Options{
		WETH:           wethAddr,
		DefaultPercent: 90,
		DeadlineSec:    300,
	}
}

func TestExecuteApproveBeforeSwap(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(0) // required will be 900

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if res.FinalState != StateDone {
		t.Fatalf("expected Done, got %s", res.FinalState)
	}
	if res.AmountIn.Int64() != 900 {
		t.Fatalf("expected amountIn 900 (90%% of 1000), got %s", res.AmountIn)
	}

	want := []string{
		"tokenBalance:" + usdcAddr.Hex(),
		"allowance",
		"approve:0xapprove1",
		"wait:0xapprove1",
		"send:0xswap2",
		"wait:0xswap2",
	}
	if len(chain.ops) != len(want) {
		t.Fatalf("op sequence mismatch:\n got %v\nwant %v", chain.ops, want)
	}
	for i := range want {
		if chain.ops[i] != want[i] {
			t.Fatalf("op %d: got %s, want %s (full: %v)", i, chain.ops[i], want[i], chain.ops)
		}
	}

	if res.ApproveTxHash != "0xapprove1" || res.TxHash != "0xswap2" {
		t.Fatalf("unexpected hashes: approve=%s swap=%s", res.ApproveTxHash, res.TxHash)
	}
}

func TestExecuteSkipsApproveWhenAllowanceSufficient(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if res.ApproveTxHash != "" {
		t.Fatal("approve should be skipped when allowance covers the trade")
	}
	for _, op := range chain.ops {
		if op[:4] == "appr" {
			t.Fatalf("unexpected approve op: %v", chain.ops)
		}
	}
	// AllowanceChecked state must still be recorded.
	found := false
	for _, step := range res.Steps {
		if step.State == StateAllowanceChecked {
			found = true
		}
	}
	if !found {
		t.Fatal("AllowanceChecked step missing")
	}
}

func TestExecuteNativeSellNoApprove(t *testing.T) {
	chain := newFakeChain()
	chain.ethBalance = big.NewInt(2000)

	// Native input: no allowance target on the quote.
	quote := erc20Quote(990, false)
	quote.AllowanceTarget = common.Address{}
	quote.Value = big.NewInt(1800)
	venue := &fakeVenue{quote: quote}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	sig := buySignal()
	sig.Side = "SELL"
	sig.SrcToken = signal.NativeEEEE
	sig.DstToken = usdcAddr.Hex()

	res, err := seq.Execute(context.Background(), sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.AmountIn.Int64() != 1800 {
		t.Fatalf("expected 90%% of ETH balance, got %s", res.AmountIn)
	}
	want := []string{"ethBalance", "send:0xswap1", "wait:0xswap1"}
	if fmt.Sprint(chain.ops) != fmt.Sprint(want) {
		t.Fatalf("got ops %v, want %v", chain.ops, want)
	}
}

func TestExecuteUnwrapAfterConfirm(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)
	chain.tokenBalance[wethAddr] = big.NewInt(555)

	venue := &fakeVenue{quote: erc20Quote(990, true)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if res.UnwrapTxHash == "" {
		t.Fatal("expected unwrap tx")
	}

	want := []string{
		"tokenBalance:" + usdcAddr.Hex(),
		"allowance",
		"send:0xswap1",
		"wait:0xswap1",
		"tokenBalance:" + wethAddr.Hex(),
		"unwrap:0xunwrap2",
		"wait:0xunwrap2",
	}
	if fmt.Sprint(chain.ops) != fmt.Sprint(want) {
		t.Fatalf("got ops %v, want %v", chain.ops, want)
	}
}

func TestExecuteUnwrapSkippedWhenNothingWrapped(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)
	// WETH balance stays zero.

	venue := &fakeVenue{quote: erc20Quote(990, true)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if res.UnwrapTxHash != "" {
		t.Fatal("unwrap must be skipped when wrapped balance is zero")
	}
	if res.FinalState != StateDone {
		t.Fatalf("expected Done, got %s", res.FinalState)
	}
}

func TestExecuteRevertedSwapFails(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)
	chain.revertTxs["0xswap1"] = true

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err == nil {
		t.Fatal("expected error for reverted swap")
	}
	if res.FinalState != StateFailed {
		t.Fatalf("expected Failed, got %s", res.FinalState)
	}
	// The hash of the reverted tx is still reported.
	if res.TxHash != "0xswap1" {
		t.Fatalf("expected reverted tx hash, got %q", res.TxHash)
	}
}

func TestExecuteInsufficientBalance(t *testing.T) {
	chain := newFakeChain() // zero balances

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if !errors.Is(err, swap.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if res.FinalState != StateFailed {
		t.Fatalf("expected Failed, got %s", res.FinalState)
	}
}

func TestExecuteDryRunSubmitsNothing(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	opts := defaultOpts()
	opts.DryRun = true
	seq := NewSequencer(chain, venue, nil, opts)

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun {
		t.Fatal("result must be flagged dryRun")
	}
	if res.TxHash != "" || res.ApproveTxHash != "" {
		t.Fatal("dry run must not submit transactions")
	}
	want := []string{"tokenBalance:" + usdcAddr.Hex()}
	if fmt.Sprint(chain.ops) != fmt.Sprint(want) {
		t.Fatalf("dry run touched the chain: %v", chain.ops)
	}
	if res.FinalState != StateDone {
		t.Fatalf("expected Done, got %s", res.FinalState)
	}
}

func degradedQuote(reason string) *swap.Quote {
	return &swap.Quote{
		AmountOut:      big.NewInt(0),
		MinOut:         big.NewInt(0),
		To:             routerAddr,
		CallData:       []byte{0x01},
		Value:          big.NewInt(0),
		Degraded:       true,
		FallbackReason: reason,
	}
}

func TestExecuteDegradedQuoteBlockedByDefault(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)

	venue := &fakeVenue{quote: degradedQuote("all tiers reverted")}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if !errors.Is(err, ErrDegradedNotAllowed) {
		t.Fatalf("expected ErrDegradedNotAllowed, got %v", err)
	}
	if res.FinalState != StateFailed {
		t.Fatalf("expected Failed, got %s", res.FinalState)
	}
}

func TestExecuteDegradedQuoteAllowedWhenOptedIn(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)

	venue := &fakeVenue{quote: degradedQuote("all tiers reverted")}

	opts := defaultOpts()
	opts.AllowDegradedQuote = true
	seq := NewSequencer(chain, venue, nil, opts)

	res, err := seq.Execute(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if !res.UsedFallback {
		t.Fatal("result must surface usedFallback")
	}
	if res.FallbackReason == "" {
		t.Fatal("fallback reason must be surfaced")
	}
	if res.MinOut.Sign() != 0 {
		t.Fatalf("degraded swap must carry zero min-out, got %s", res.MinOut)
	}
}

func TestExecuteGuardBlocks(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	guard := guardFunc(func(context.Context, *big.Int) error {
		return fmt.Errorf("trade blocked: daily limit reached")
	})
	seq := NewSequencer(chain, venue, guard, defaultOpts())

	res, err := seq.Execute(context.Background(), buySignal())
	if err == nil {
		t.Fatal("expected guard rejection")
	}
	if res.TxHash != "" {
		t.Fatal("blocked trade must not submit")
	}
}

func TestExecutePercentFallsBackToDefault(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(1000)

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	opts := defaultOpts()
	opts.DefaultPercent = 50
	seq := NewSequencer(chain, venue, nil, opts)

	sig := buySignal()
	sig.AmountValue = intPtr(0) // 0 = use configured default

	res, err := seq.Execute(context.Background(), sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.AmountIn.Int64() != 500 {
		t.Fatalf("expected 50%% default, got %s", res.AmountIn)
	}
}

func TestExecutePassesSlippageToVenue(t *testing.T) {
	chain := newFakeChain()
	chain.tokenBalance[usdcAddr] = big.NewInt(1000)
	chain.allowance = big.NewInt(900)

	venue := &fakeVenue{quote: erc20Quote(990, false)}
	seq := NewSequencer(chain, venue, nil, defaultOpts())

	if _, err := seq.Execute(context.Background(), buySignal()); err != nil {
		t.Fatal(err)
	}
	if venue.got == nil {
		t.Fatal("venue not called")
	}
	if venue.got.SlippageBps != 100 {
		t.Fatalf("expected slippage 100 bps, got %d", venue.got.SlippageBps)
	}
	if venue.got.Recipient != walletAddr {
		t.Fatal("recipient must be the wallet itself")
	}
	if venue.got.AmountIn.Int64() != 900 {
		t.Fatalf("expected amountIn 900, got %s", venue.got.AmountIn)
	}
}

type guardFunc func(ctx context.Context, amountIn *big.Int) error

func (g guardFunc) PreTradeCheck(ctx context.Context, amountIn *big.Int) error {
	return g(ctx, amountIn)
}
