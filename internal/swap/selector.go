package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TierQuoter asks one fee tier for its expected output. Implemented by the
// on-chain QuoterV2 wrapper; faked in tests.
type TierQuoter interface {
	QuoteTier(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)
}

// TierResult is the outcome of querying all configured fee tiers.
type TierResult struct {
	FeeTier   uint32
	AmountOut *big.Int

	// Fallback is set when no tier produced a positive quote. The caller
	// decides whether a zero-guard swap is permitted.
	Fallback       bool
	FallbackReason string
}

// BestTier queries every candidate fee tier independently, discards
// failures and non-positive amounts, and returns the tier with the highest
// output. Comparison is strictly-greater, so the first-seen tier wins ties.
//
// When every tier fails the result falls back to a zero minimum-output
// degraded mode; the reason string records each tier's failure.
func BestTier(ctx context.Context, quoter TierQuoter, tiers []uint32, tokenIn, tokenOut common.Address, amountIn *big.Int) TierResult {
	var (
		best     *big.Int
		bestTier uint32
		failures []string
	)

	for _, tier := range tiers {
		out, err := quoter.QuoteTier(ctx, tokenIn, tokenOut, tier, amountIn)
		if err != nil {
			failures = append(failures, fmt.Sprintf("tier %d: %v", tier, err))
			continue
		}
		if out == nil || out.Sign() <= 0 {
			failures = append(failures, fmt.Sprintf("tier %d: non-positive quote", tier))
			continue
		}
		if best == nil || out.Cmp(best) > 0 {
			best = out
			bestTier = tier
		}
	}

	if best == nil {
		reason := "no fee tiers configured"
		if len(failures) > 0 {
			reason = strings.Join(failures, "; ")
		}
		fmt.Printf("[QUOTE] All fee tiers failed, falling back to zero min-out: %s\n", reason)
		return TierResult{Fallback: true, FallbackReason: reason}
	}

	return TierResult{FeeTier: bestTier, AmountOut: best}
}
