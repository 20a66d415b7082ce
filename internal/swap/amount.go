package swap

import (
	"errors"
	"math/big"
)

var (
	// ErrInsufficientBalance is returned when the wallet balance is zero or
	// the computed trade size rounds down to nothing.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidPercent is returned for a percent-of-balance outside [1,100].
	ErrInvalidPercent = errors.New("percent must be in [1,100]")

	// ErrInvalidSlippage is returned for a slippage tolerance outside [0,10000] bps.
	ErrInvalidSlippage = errors.New("slippage must be in [0,10000] bps")

	// ErrQuoteTooSmall is returned when the slippage-adjusted minimum output
	// rounds down to zero or below.
	ErrQuoteTooSmall = errors.New("quote too small for slippage bound")
)

var (
	oneHundred = big.NewInt(100)
	bpsDenom   = big.NewInt(10000)
)

// TradeSize computes floor(balance * percent / 100) in minor units.
// All arithmetic is integer; amounts here are real on-chain transfers and
// must never pass through a float.
func TradeSize(balance *big.Int, percent int) (*big.Int, error) {
	if percent < 1 || percent > 100 {
		return nil, ErrInvalidPercent
	}
	if balance == nil || balance.Sign() <= 0 {
		return nil, ErrInsufficientBalance
	}

	size := new(big.Int).Mul(balance, big.NewInt(int64(percent)))
	size.Quo(size, oneHundred)

	if size.Sign() <= 0 {
		return nil, ErrInsufficientBalance
	}
	return size, nil
}

// MinOut computes the slippage-bounded minimum acceptable output:
// floor(quoted * (10000 - slippageBps) / 10000). The result is always
// <= quoted.
func MinOut(quoted *big.Int, slippageBps int) (*big.Int, error) {
	if slippageBps < 0 || slippageBps > 10000 {
		return nil, ErrInvalidSlippage
	}
	if quoted == nil || quoted.Sign() < 0 {
		return nil, ErrQuoteTooSmall
	}

	min := new(big.Int).Mul(quoted, big.NewInt(int64(10000-slippageBps)))
	min.Quo(min, bpsDenom)

	if min.Sign() <= 0 {
		return nil, ErrQuoteTooSmall
	}
	return min, nil
}
