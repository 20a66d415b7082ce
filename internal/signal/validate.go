package signal

import (
	"fmt"
	"regexp"
	"strings"
)

var hexAddrRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidationResult lists everything wrong with a payload so the caller can
// fix all problems in one round trip.
type ValidationResult struct {
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

func (v *ValidationResult) OK() bool {
	return len(v.Missing) == 0 && len(v.Invalid) == 0
}

func (v *ValidationResult) Error() string {
	var parts []string
	if len(v.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", strings.Join(v.Missing, ", ")))
	}
	if len(v.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid: %s", strings.Join(v.Invalid, ", ")))
	}
	return "invalid payload (" + strings.Join(parts, "; ") + ")"
}

// Validate checks field presence and value ranges. chainID is the single
// chain this process is wired to; a signal for any other chain is invalid.
func Validate(s *Signal, chainID int64) *ValidationResult {
	res := &ValidationResult{}

	requireStr(res, "action", s.Action)
	requireStr(res, "side", s.Side)
	requireStr(res, "srcToken", s.SrcToken)
	requireStr(res, "dstToken", s.DstToken)
	requireStr(res, "amountMode", s.AmountMode)
	requireStr(res, "symbol", s.Symbol)
	requireStr(res, "tf", s.TF)
	requireStr(res, "signalId", s.SignalID)

	if s.ChainID == nil {
		res.Missing = append(res.Missing, "chainId")
	} else if *s.ChainID != chainID {
		res.Invalid = append(res.Invalid, fmt.Sprintf("chainId (unsupported chain %d)", *s.ChainID))
	}

	if s.AmountValue == nil {
		res.Missing = append(res.Missing, "amountValue")
	} else if *s.AmountValue < 0 || *s.AmountValue > 100 {
		res.Invalid = append(res.Invalid, "amountValue (percent must be in [0,100])")
	}

	if s.SlippageBps == nil {
		res.Missing = append(res.Missing, "slippageBps")
	} else if *s.SlippageBps < 0 || *s.SlippageBps > 10000 {
		res.Invalid = append(res.Invalid, "slippageBps (must be in [0,10000])")
	}

	if s.DeadlineSec == nil {
		res.Missing = append(res.Missing, "deadlineSec")
	} else if *s.DeadlineSec <= 0 {
		res.Invalid = append(res.Invalid, "deadlineSec (must be positive)")
	}

	if s.Side != "" {
		side := strings.ToUpper(s.Side)
		if side != SideBuy && side != SideSell {
			res.Invalid = append(res.Invalid, fmt.Sprintf("side (%q, expected BUY or SELL)", s.Side))
		}
	}

	if s.AmountMode != "" && s.AmountMode != AmountModeExactInput {
		res.Invalid = append(res.Invalid, fmt.Sprintf("amountMode (%q, only %q is supported)", s.AmountMode, AmountModeExactInput))
	}

	if s.SrcToken != "" && !IsNative(s.SrcToken) && !hexAddrRegexp.MatchString(s.SrcToken) {
		res.Invalid = append(res.Invalid, "srcToken (not a hex address)")
	}
	if s.DstToken != "" && !IsNative(s.DstToken) && !hexAddrRegexp.MatchString(s.DstToken) {
		res.Invalid = append(res.Invalid, "dstToken (not a hex address)")
	}
	if s.SrcToken != "" && s.DstToken != "" && strings.EqualFold(s.SrcToken, s.DstToken) {
		res.Invalid = append(res.Invalid, "dstToken (same as srcToken)")
	}

	return res
}

func requireStr(res *ValidationResult, name, value string) {
	if strings.TrimSpace(value) == "" {
		res.Missing = append(res.Missing, name)
	}
}
