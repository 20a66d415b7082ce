package external

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawmove/swap-engine/internal/httputil"
	"github.com/rawmove/swap-engine/internal/swap"
)

// nativeSentinel is the address aggregator APIs use for the chain's
// native asset.
const nativeSentinel = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// ZeroExClient fetches executable swap quotes from a 0x-style aggregator
// API. The aggregator returns a fully encoded transaction; we only bound
// it with our own minimum-output guard.
type ZeroExClient struct {
	baseURL    string
	taker      common.Address
	httpClient *http.Client
	retry      httputil.RetryConfig
}

type zeroExQuote struct {
	Price           string          `json:"price"`
	To              string          `json:"to"`
	Data            string          `json:"data"`
	Value           string          `json:"value"`
	Gas             json.RawMessage `json:"gas"`
	BuyAmount       string          `json:"buyAmount"`
	AllowanceTarget string          `json:"allowanceTarget"`
}

func NewZeroExClient(baseURL string, taker common.Address) *ZeroExClient {
	return &ZeroExClient{
		baseURL: baseURL,
		taker:   taker,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

func (c *ZeroExClient) Name() string { return "aggregator" }

// Quote calls the aggregator's /swap/v1/quote endpoint and converts the
// answer into an executable Quote. Aggregator failures are upstream
// errors, never degraded quotes: the aggregator is the only price source
// this venue has.
func (c *ZeroExClient) Quote(ctx context.Context, req swap.QuoteRequest) (*swap.Quote, error) {
	q := url.Values{}
	q.Set("sellToken", tokenParam(req.TokenIn, req.NativeIn))
	q.Set("buyToken", tokenParam(req.TokenOut, req.NativeOut))
	q.Set("sellAmount", req.AmountIn.String())
	q.Set("takerAddress", req.Recipient.Hex())
	q.Set("slippagePercentage", fmt.Sprintf("%g", float64(req.SlippageBps)/10000))

	reqURL := c.baseURL + "?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("aggregator fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator returned status %d", resp.StatusCode)
	}

	var raw zeroExQuote
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if raw.To == "" || raw.Data == "" {
		return nil, fmt.Errorf("aggregator quote missing transaction payload")
	}

	buyAmount, ok := new(big.Int).SetString(raw.BuyAmount, 10)
	if !ok || buyAmount.Sign() <= 0 {
		return nil, fmt.Errorf("aggregator quote has invalid buyAmount %q", raw.BuyAmount)
	}

	minOut, err := swap.MinOut(buyAmount, req.SlippageBps)
	if err != nil {
		return nil, fmt.Errorf("slippage bound: %w", err)
	}

	value := big.NewInt(0)
	if raw.Value != "" {
		if _, ok := value.SetString(raw.Value, 10); !ok {
			return nil, fmt.Errorf("aggregator quote has invalid value %q", raw.Value)
		}
	}

	quote := &swap.Quote{
		AmountOut: buyAmount,
		MinOut:    minOut,
		To:        common.HexToAddress(raw.To),
		CallData:  common.FromHex(raw.Data),
		Value:     value,
		GasLimit:  parseGas(raw.Gas),
	}
	if !req.NativeIn && raw.AllowanceTarget != "" {
		quote.AllowanceTarget = common.HexToAddress(raw.AllowanceTarget)
	}
	return quote, nil
}

func tokenParam(token common.Address, native bool) string {
	if native {
		return nativeSentinel
	}
	return token.Hex()
}

// parseGas accepts the gas field as either a JSON number or string, which
// aggregator deployments disagree on. Zero means "use the configured
// default".
func parseGas(raw json.RawMessage) uint64 {
	if len(raw) == 0 {
		return 0
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, ok := new(big.Int).SetString(s, 10); ok && v.IsUint64() {
			return v.Uint64()
		}
	}
	return 0
}
