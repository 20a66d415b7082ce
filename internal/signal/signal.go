package signal

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel addresses callers use for the chain's native asset.
const (
	NativeZero = "0x0000000000000000000000000000000000000000"
	NativeEEEE = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// AmountModeExactInput is the only supported amount specification: the
// amount value is a percent of the current balance sold as exact input.
const AmountModeExactInput = "exact_input"

// Signal is one inbound trade instruction. It lives for exactly one
// request: decoded, validated, executed, discarded.
//
// Numeric fields are pointers so a missing field is distinguishable from a
// literal zero when reporting validation failures.
type Signal struct {
	Action      string `json:"action"`
	Side        string `json:"side"`
	ChainID     *int64 `json:"chainId"`
	SrcToken    string `json:"srcToken"`
	DstToken    string `json:"dstToken"`
	AmountMode  string `json:"amountMode"`
	AmountValue *int   `json:"amountValue"` // percent of balance; 0 = configured default
	SlippageBps *int   `json:"slippageBps"`
	DeadlineSec *int64 `json:"deadlineSec"`

	// Identifying metadata, echoed back and recorded but never interpreted.
	Symbol    string `json:"symbol"`
	TF        string `json:"tf"`
	SignalID  string `json:"signalId"`

	// Shared secret may ride in the body instead of the X-Secret header.
	Secret string `json:"secret,omitempty"`
}

// IsNative reports whether an address string is one of the native-asset
// sentinels.
func IsNative(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	return a == NativeZero || a == NativeEEEE
}

// TokenAddress resolves a payload token string to an on-chain address,
// mapping native sentinels to the wrapped-native token.
func TokenAddress(addr string, weth common.Address) common.Address {
	if IsNative(addr) {
		return weth
	}
	return common.HexToAddress(addr)
}
