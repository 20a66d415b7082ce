package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rawmove/swap-engine/internal/swap"
)

// RouterVenue prices swaps with an on-chain Quoter across a set of fee
// tiers and executes them through the Uniswap V3 SwapRouter.
type RouterVenue struct {
	client     *Client
	routerAddr common.Address
	quoterAddr common.Address
	wethAddr   common.Address
	feeTiers   []uint32
	routerABI  abi.ABI
	quoterABI  abi.ABI
}

// exactInputSingleParams mirrors ISwapRouter.ExactInputSingleParams for
// ABI tuple packing.
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

func NewRouterVenue(client *Client, routerAddr, quoterAddr, wethAddr string, feeTiers []uint32) (*RouterVenue, error) {
	rABI, err := abi.JSON(mustRouterABI())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	qABI, err := abi.JSON(mustQuoterABI())
	if err != nil {
		return nil, fmt.Errorf("parse quoter ABI: %w", err)
	}

	return &RouterVenue{
		client:     client,
		routerAddr: common.HexToAddress(routerAddr),
		quoterAddr: common.HexToAddress(quoterAddr),
		wethAddr:   common.HexToAddress(wethAddr),
		feeTiers:   feeTiers,
		routerABI:  rABI,
		quoterABI:  qABI,
	}, nil
}

func (v *RouterVenue) Name() string { return "router" }

// HasQuoter reports whether an on-chain quoter is configured. Without one
// the venue can only produce degraded (zero min-out) quotes.
func (v *RouterVenue) HasQuoter() bool {
	return v.quoterAddr != (common.Address{})
}

// QuoteTier asks the Quoter contract for the expected output on a single
// fee tier. Quoter methods are declared nonpayable but are only ever
// executed as an eth_call.
func (v *RouterVenue) QuoteTier(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	data, err := v.quoterABI.Pack("quoteExactInputSingle",
		tokenIn, tokenOut, big.NewInt(int64(feeTier)), amountIn, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}

	result, err := v.client.CallContract(ctx, v.quoterAddr, data)
	if err != nil {
		return nil, fmt.Errorf("quoter call: %w", err)
	}

	out, err := v.quoterABI.Unpack("quoteExactInputSingle", result)
	if err != nil {
		return nil, fmt.Errorf("unpack quote: %w", err)
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected quoter output type %T", out[0])
	}
	return amountOut, nil
}

// Quote selects the best fee tier, applies the slippage bound and packs the
// exactInputSingle call. When no quoter is configured or every tier fails,
// the quote degrades to a zero minimum output; executing it is a policy
// decision made upstream.
func (v *RouterVenue) Quote(ctx context.Context, req swap.QuoteRequest) (*swap.Quote, error) {
	var (
		feeTier   uint32
		amountOut *big.Int
		minOut    *big.Int
		degraded  bool
		reason    string
	)

	if !v.HasQuoter() {
		degraded = true
		reason = "no quoter contract configured"
		feeTier = defaultTier(v.feeTiers)
	} else {
		res := swap.BestTier(ctx, v, v.feeTiers, req.TokenIn, req.TokenOut, req.AmountIn)
		if res.Fallback {
			degraded = true
			reason = res.FallbackReason
			feeTier = defaultTier(v.feeTiers)
		} else {
			feeTier = res.FeeTier
			amountOut = res.AmountOut
			m, err := swap.MinOut(res.AmountOut, req.SlippageBps)
			if err != nil {
				return nil, fmt.Errorf("slippage bound: %w", err)
			}
			minOut = m
		}
	}

	if degraded {
		amountOut = big.NewInt(0)
		minOut = big.NewInt(0)
	}

	value := big.NewInt(0)
	if req.NativeIn {
		// SwapRouter wraps msg.value itself when tokenIn is WETH.
		value = new(big.Int).Set(req.AmountIn)
	}

	data, err := v.routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           req.TokenIn,
		TokenOut:          req.TokenOut,
		Fee:               big.NewInt(int64(feeTier)),
		Recipient:         req.Recipient,
		Deadline:          req.Deadline,
		AmountIn:          req.AmountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}

	q := &swap.Quote{
		AmountOut:      amountOut,
		MinOut:         minOut,
		To:             v.routerAddr,
		CallData:       data,
		Value:          value,
		FeeTier:        feeTier,
		NeedsUnwrap:    req.NativeOut,
		Degraded:       degraded,
		FallbackReason: reason,
	}
	if !req.NativeIn {
		q.AllowanceTarget = v.routerAddr
	}
	return q, nil
}

// defaultTier is the tier used for a degraded swap when selection failed:
// the first configured tier, or the 0.3% pool when none are set.
func defaultTier(tiers []uint32) uint32 {
	if len(tiers) > 0 {
		return tiers[0]
	}
	return 3000
}
