package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is a venue's answer for a single (tokenIn, tokenOut, amountIn)
// request. It is fetched fresh per signal and never cached.
//
// A Degraded quote carries MinOut == 0: the swap proceeds with no
// slippage guard. Venues produce one only when every price source failed;
// whether it may actually be executed is decided by configuration
// (AllowDegradedQuote), never silently.
type Quote struct {
	AmountOut *big.Int // expected output, zero when degraded
	MinOut    *big.Int // slippage-adjusted floor, zero when degraded

	// Transaction shape. Aggregator quotes arrive pre-encoded; router
	// quotes are packed locally by the venue.
	To              common.Address
	CallData        []byte
	Value           *big.Int
	AllowanceTarget common.Address
	GasLimit        uint64

	FeeTier uint32 // router venue only; 0 for aggregator quotes

	// NeedsUnwrap is set when the route leaves wrapped native in the
	// wallet that must be withdrawn back to the native asset after the
	// swap confirms. Aggregator routes unwrap internally.
	NeedsUnwrap bool

	Degraded       bool
	FallbackReason string
}
