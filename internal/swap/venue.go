package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteRequest describes one exact-input swap the engine wants priced.
// TokenIn/TokenOut are always real contract addresses; NativeIn/NativeOut
// record that the caller meant the chain's native asset (the tokens are
// then the wrapped-native contract).
type QuoteRequest struct {
	TokenIn   common.Address
	TokenOut  common.Address
	NativeIn  bool
	NativeOut bool

	AmountIn    *big.Int
	SlippageBps int
	Recipient   common.Address
	Deadline    *big.Int // unix seconds
}

// Venue turns a quote request into an executable Quote. Implementations:
// the on-chain router+quoter pair and the aggregator HTTP API.
type Venue interface {
	Name() string
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}
