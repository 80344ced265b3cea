// Package models provides domain models for the scalping simulator.
package models

import (
	"time"
)

// TxKind represents the kind of a ledger transaction.
type TxKind string

const (
	TxBuy  TxKind = "BUY"
	TxSell TxKind = "SELL"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitReasonTarget ExitReason = "target"
	ExitReasonStop   ExitReason = "stop"
	ExitReasonForce  ExitReason = "force"
	ExitReasonManual ExitReason = "manual"
)

// SessionState classifies a point in time against the trading session.
type SessionState string

const (
	SessionClosed     SessionState = "CLOSED"
	SessionPreOpen    SessionState = "PRE_OPEN"
	SessionOpen       SessionState = "OPEN"
	SessionForceExit  SessionState = "FORCE_EXIT"
	SessionHoliday    SessionState = "HOLIDAY"
)

// Quote represents one quote lookup result. A zero Price means the quote
// was unavailable this tick.
type Quote struct {
	Code      string    `json:"code"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Candidate is a buy candidate supplied by the screening collaborator.
type Candidate struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	Tag    string  `json:"tag"`
}
