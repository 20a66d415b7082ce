package risk

import (
	"context"
	"fmt"
	"math/big"
)

// DailySignalCounter abstracts the execution-counting dependency so
// Guardian can be tested without a real database.
type DailySignalCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the pre-trade thresholds from config.
// A zero value (or nil cap) means that check is disabled.
type Limits struct {
	MaxDailySignals int
	MaxAmountInWei  *big.Int
}

type Guardian struct {
	limits  Limits
	counter DailySignalCounter
}

func NewGuardian(limits Limits, counter DailySignalCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PreTradeCheck validates per-signal constraints before any transaction is
// built. Returns nil if the trade is allowed, a descriptive error if
// blocked.
func (g *Guardian) PreTradeCheck(ctx context.Context, amountIn *big.Int) error {
	if g.limits.MaxAmountInWei != nil && g.limits.MaxAmountInWei.Sign() > 0 &&
		amountIn.Cmp(g.limits.MaxAmountInWei) > 0 {
		return fmt.Errorf("trade blocked: amount %s wei exceeds max %s wei",
			amountIn, g.limits.MaxAmountInWei)
	}

	if g.limits.MaxDailySignals > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("trade blocked: unable to verify daily signal count: %w", err)
		}
		if count >= g.limits.MaxDailySignals {
			return fmt.Errorf("trade blocked: daily limit of %d signals reached (%d executed today)",
				g.limits.MaxDailySignals, count)
		}
	}

	return nil
}
