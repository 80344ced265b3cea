// Package store provides snapshot persistence for the accounting state.
package store

import (
	"context"

	"krx-scalper/internal/models"
)

// LookbackDays bounds the scan for a prior day's ending capital.
const LookbackDays = 7

// SchemaVersion is written with every day-state row; loaders reject
// newer versions.
const SchemaVersion = 1

// HistoryFilter narrows daily snapshot queries. Zero values mean no
// constraint.
type HistoryFilter struct {
	From  string // inclusive, "20060102"
	To    string // inclusive
	Limit int
}

// SnapshotStore persists and restores the full accounting state keyed by
// calendar day.
type SnapshotStore interface {
	// LoadPriorEndingCapital scans back at most LookbackDays before date
	// for the most recent finalized day and returns its ending capital.
	LoadPriorEndingCapital(ctx context.Context, date string) (float64, bool, error)

	// LoadPriorWatermarks returns the lifetime capital high and low
	// recorded by the most recent day state before date. Ending capitals
	// alone lose intraday peaks.
	LoadPriorWatermarks(ctx context.Context, date string) (max, min float64, found bool, err error)

	// LoadDayState returns the mid-day state and transactions persisted
	// for date, or nil if none exists. Invested is recomputed from the
	// loaded positions, never trusted from the stored row.
	LoadDayState(ctx context.Context, date string) (*models.PortfolioState, []models.Transaction, error)

	// SaveDayState atomically writes the full current-day state.
	SaveDayState(ctx context.Context, state models.PortfolioState, txs []models.Transaction) error

	// FinalizeDay appends one finalized day to the history, replacing any
	// existing entry for the same date.
	FinalizeDay(ctx context.Context, snap models.DailySnapshot) error

	// History returns finalized days in date order.
	History(ctx context.Context, filter HistoryFilter) ([]models.DailySnapshot, error)

	// DeleteDayState removes the mid-day state and transactions for date
	// so the day can be replayed. Finalized history is left untouched.
	DeleteDayState(ctx context.Context, date string) error

	Close() error
}
