package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawmove/swap-engine/internal/signal"
	"github.com/rawmove/swap-engine/internal/swap"
)

// State names the stations a signal passes through. Failed is terminal and
// reachable from anywhere before Done.
type State string

const (
	StateValidated        State = "Validated"
	StateAllowanceChecked State = "AllowanceChecked"
	StateApproved         State = "Approved"
	StateSubmitted        State = "Submitted"
	StateConfirmed        State = "Confirmed"
	StateUnwrapped        State = "Unwrapped"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// ErrDegradedNotAllowed is returned when every price source failed and
// configuration forbids executing without a slippage guard.
var ErrDegradedNotAllowed = errors.New("degraded quote not permitted")

// ChainClient is the signing capability the sequencer drives. Satisfied by
// ethereum.Client; faked in tests.
type ChainClient interface {
	WalletAddress() common.Address
	ETHBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error)
	SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error)
	WaitMined(ctx context.Context, txHash string) error
	UnwrapWETH(ctx context.Context, weth common.Address, amount *big.Int) (string, error)
}

// Guard is consulted once per signal after the trade size is known.
type Guard interface {
	PreTradeCheck(ctx context.Context, amountIn *big.Int) error
}

// StepRecord is one state transition, kept for the response and the
// execution history.
type StepRecord struct {
	State  State     `json:"state"`
	At     time.Time `json:"at"`
	TxHash string    `json:"txHash,omitempty"`
}

// Result is everything a completed (or failed) signal produced.
type Result struct {
	Side           string       `json:"side"`
	Venue          string       `json:"venue"`
	AmountIn       *big.Int     `json:"amountIn"`
	ExpectedOut    *big.Int     `json:"expectedOut"`
	MinOut         *big.Int     `json:"minOut"`
	FeeTier        uint32       `json:"feeTier,omitempty"`
	ApproveTxHash  string       `json:"approveTxHash,omitempty"`
	TxHash         string       `json:"txHash,omitempty"`
	UnwrapTxHash   string       `json:"unwrapTxHash,omitempty"`
	UsedFallback   bool         `json:"usedFallback"`
	FallbackReason string       `json:"fallbackReason,omitempty"`
	DryRun         bool         `json:"dryRun"`
	FinalState     State        `json:"finalState"`
	Steps          []StepRecord `json:"steps"`
}

// Options are the immutable execution knobs, built once from config.
type Options struct {
	WETH               common.Address
	DefaultPercent     int
	DeadlineSec        int64
	DryRun             bool
	AllowDegradedQuote bool
}

// Sequencer runs one signal through the fixed transaction sequence:
// allowance check, conditional approve (confirmed before the swap), swap
// submit, confirmation wait, conditional unwrap.
type Sequencer struct {
	chain ChainClient
	venue swap.Venue
	guard Guard
	opts  Options

	// One in-flight signal at a time: the wallet has a single nonce
	// sequence and the percent-of-balance model reads state that a
	// concurrent signal would double-spend.
	mu sync.Mutex
}

func NewSequencer(chain ChainClient, venue swap.Venue, guard Guard, opts Options) *Sequencer {
	return &Sequencer{chain: chain, venue: venue, guard: guard, opts: opts}
}

// Execute runs a validated signal to completion. The returned Result is
// non-nil even on failure and records how far the signal got.
func (s *Sequencer) Execute(ctx context.Context, sig *signal.Signal) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &Result{
		Side:   strings.ToUpper(sig.Side),
		Venue:  s.venue.Name(),
		DryRun: s.opts.DryRun,
	}

	fail := func(err error) (*Result, error) {
		res.FinalState = StateFailed
		res.record(StateFailed, "")
		fmt.Printf("[EXEC] Signal %s failed: %v\n", sig.SignalID, err)
		return res, err
	}

	tokenIn := signal.TokenAddress(sig.SrcToken, s.opts.WETH)
	tokenOut := signal.TokenAddress(sig.DstToken, s.opts.WETH)
	nativeIn := signal.IsNative(sig.SrcToken)
	nativeOut := signal.IsNative(sig.DstToken)

	// Trade size: percent of the current balance, integer math only.
	balance, err := s.balanceOf(ctx, tokenIn, nativeIn)
	if err != nil {
		return fail(fmt.Errorf("read balance: %w", err))
	}

	percent := s.opts.DefaultPercent
	if sig.AmountValue != nil && *sig.AmountValue > 0 {
		percent = *sig.AmountValue
	}
	amountIn, err := swap.TradeSize(balance, percent)
	if err != nil {
		return fail(fmt.Errorf("trade size: %w", err))
	}
	res.AmountIn = amountIn

	if s.guard != nil {
		if err := s.guard.PreTradeCheck(ctx, amountIn); err != nil {
			return fail(err)
		}
	}

	deadlineSec := s.opts.DeadlineSec
	if sig.DeadlineSec != nil && *sig.DeadlineSec > 0 {
		deadlineSec = *sig.DeadlineSec
	}

	quote, err := s.venue.Quote(ctx, swap.QuoteRequest{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		NativeIn:    nativeIn,
		NativeOut:   nativeOut,
		AmountIn:    amountIn,
		SlippageBps: *sig.SlippageBps,
		Recipient:   s.chain.WalletAddress(),
		Deadline:    big.NewInt(time.Now().Unix() + deadlineSec),
	})
	if err != nil {
		return fail(fmt.Errorf("quote: %w", err))
	}

	res.ExpectedOut = quote.AmountOut
	res.MinOut = quote.MinOut
	res.FeeTier = quote.FeeTier
	res.UsedFallback = quote.Degraded
	res.FallbackReason = quote.FallbackReason

	if quote.Degraded {
		if !s.opts.AllowDegradedQuote {
			return fail(fmt.Errorf("%w: %s", ErrDegradedNotAllowed, quote.FallbackReason))
		}
		fmt.Printf("[EXEC] Signal %s executing DEGRADED (min-out 0): %s\n", sig.SignalID, quote.FallbackReason)
	}

	res.record(StateValidated, "")
	fmt.Printf("[EXEC] Signal %s: %s %s via %s, amountIn=%s minOut=%s\n",
		sig.SignalID, res.Side, sig.Symbol, res.Venue, amountIn, quote.MinOut)

	if s.opts.DryRun {
		fmt.Printf("[EXEC] DRY RUN - no transactions submitted for signal %s\n", sig.SignalID)
		res.FinalState = StateDone
		res.record(StateDone, "")
		return res, nil
	}

	// Allowance before swap. The approval must be mined before the
	// dependent swap is submitted.
	if quote.AllowanceTarget != (common.Address{}) {
		current, err := s.chain.Allowance(ctx, tokenIn, quote.AllowanceTarget)
		if err != nil {
			return fail(fmt.Errorf("read allowance: %w", err))
		}
		res.record(StateAllowanceChecked, "")

		if current.Cmp(amountIn) < 0 {
			approveHash, err := s.chain.Approve(ctx, tokenIn, quote.AllowanceTarget, amountIn)
			if err != nil {
				return fail(fmt.Errorf("approve: %w", err))
			}
			if err := s.chain.WaitMined(ctx, approveHash); err != nil {
				return fail(fmt.Errorf("approve confirmation: %w", err))
			}
			res.ApproveTxHash = approveHash
			res.record(StateApproved, approveHash)
			fmt.Printf("[EXEC] Approval confirmed: %s\n", approveHash)
		}
	}

	txHash, err := s.chain.SignAndSend(ctx, quote.To, quote.Value, quote.CallData, quote.GasLimit)
	if err != nil {
		return fail(fmt.Errorf("submit swap: %w", err))
	}
	res.TxHash = txHash
	res.record(StateSubmitted, txHash)

	if err := s.chain.WaitMined(ctx, txHash); err != nil {
		return fail(fmt.Errorf("swap confirmation: %w", err))
	}
	res.record(StateConfirmed, txHash)
	fmt.Printf("[EXEC] Swap confirmed: %s\n", txHash)

	// Unwrap is idempotent: a zero wrapped balance means there is nothing
	// to withdraw and the step is skipped.
	if quote.NeedsUnwrap {
		wrapped, err := s.chain.TokenBalance(ctx, s.opts.WETH)
		if err != nil {
			return fail(fmt.Errorf("read wrapped balance: %w", err))
		}
		if wrapped.Sign() > 0 {
			unwrapHash, err := s.chain.UnwrapWETH(ctx, s.opts.WETH, wrapped)
			if err != nil {
				return fail(fmt.Errorf("unwrap: %w", err))
			}
			if err := s.chain.WaitMined(ctx, unwrapHash); err != nil {
				return fail(fmt.Errorf("unwrap confirmation: %w", err))
			}
			res.UnwrapTxHash = unwrapHash
			res.record(StateUnwrapped, unwrapHash)
			fmt.Printf("[EXEC] Unwrapped %s wei of WETH: %s\n", wrapped, unwrapHash)
		}
	}

	res.FinalState = StateDone
	res.record(StateDone, "")
	return res, nil
}

func (s *Sequencer) balanceOf(ctx context.Context, token common.Address, native bool) (*big.Int, error) {
	if native {
		return s.chain.ETHBalance(ctx)
	}
	return s.chain.TokenBalance(ctx, token)
}

func (r *Result) record(state State, txHash string) {
	r.Steps = append(r.Steps, StepRecord{State: state, At: time.Now().UTC(), TxHash: txHash})
}
