package models

import "time"

// SignalRecord is one execution attempt of an inbound signal. Amounts are
// stored as decimal strings: wei values do not fit in int64 and must never
// be rounded through a float.
type SignalRecord struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TradingDay     string    `json:"tradingDay"`
	SignalID       string    `json:"signalId"`
	Symbol         string    `json:"symbol"`
	TF             string    `json:"tf"`
	Side           string    `json:"side"` // "BUY" or "SELL"
	Venue          string    `json:"venue"`
	AmountIn       *string   `json:"amountIn,omitempty"`
	ExpectedOut    *string   `json:"expectedOut,omitempty"`
	MinOut         *string   `json:"minOut,omitempty"`
	ApproveTxHash  *string   `json:"approveTxHash,omitempty"`
	TxHash         *string   `json:"txHash,omitempty"`
	UnwrapTxHash   *string   `json:"unwrapTxHash,omitempty"`
	Status         string    `json:"status"` // "done" or "failed"
	UsedFallback   bool      `json:"usedFallback"`
	FallbackReason *string   `json:"fallbackReason,omitempty"`
	IsDryRun       bool      `json:"isDryRun"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ExecutionStats struct {
	TotalSignals  int64      `json:"totalSignals"`
	BuyCount      int64      `json:"buyCount"`
	SellCount     int64      `json:"sellCount"`
	DoneCount     int64      `json:"doneCount"`
	FailedCount   int64      `json:"failedCount"`
	FallbackCount int64      `json:"fallbackCount"`
	DryRunCount   int64      `json:"dryRunCount"`
	FirstSignal   *time.Time `json:"firstSignal"`
	LastSignal    *time.Time `json:"lastSignal"`
}
