// Package book provides the open-position book: capacity limits, one
// position per instrument, and the per-day re-entry prohibition.
package book

import (
	"sync"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

// Book owns the set of open positions. Positions are keyed by instrument
// code and kept in entry order. Safe for concurrent readers; mutations are
// serialized by the owning engine.
type Book struct {
	mu sync.RWMutex

	maxPositions int
	positions    map[string]models.Position
	order        []string // entry order of open codes

	tradedToday map[string]bool
	blocked     map[string]bool

	// onChange is invoked after every mutation, outside internal
	// bookkeeping but inside the engine's accounting goroutine. The
	// engine marks its state dirty here so off-tick mutations are
	// persisted promptly.
	onChange func()
}

// New creates an empty book with the given capacity.
func New(maxPositions int) *Book {
	if maxPositions < 1 {
		maxPositions = 1
	}
	return &Book{
		maxPositions: maxPositions,
		positions:    make(map[string]models.Position),
		tradedToday:  make(map[string]bool),
		blocked:      make(map[string]bool),
	}
}

// OnChange sets the hook invoked after every mutation.
func (b *Book) OnChange(fn func()) {
	b.onChange = fn
}

func (b *Book) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

// CanBuy reports whether code may be opened. Checks run in a fixed order
// so the reported reason is stable: traded today, then blocked, then
// capacity, then already open.
func (b *Book) CanBuy(code string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.canBuyLocked(code)
}

func (b *Book) canBuyLocked(code string) (bool, error) {
	if b.tradedToday[code] {
		return false, errs.NewTradeError(code, "buy", "AlreadyTraded", errs.ErrAlreadyTraded)
	}
	if b.blocked[code] {
		return false, errs.NewTradeError(code, "buy", "CodeBlocked", errs.ErrCodeBlocked)
	}
	if len(b.positions) >= b.maxPositions {
		return false, errs.NewTradeError(code, "buy", "CapacityExceeded", errs.ErrCapacityExceeded)
	}
	if _, open := b.positions[code]; open {
		return false, errs.NewTradeError(code, "buy", "DuplicatePosition", errs.ErrDuplicatePosition)
	}
	return true, nil
}

// Add re-validates and inserts a position, marking its code as traded
// today. Rejection leaves the book unchanged, so speculative calls are
// safe.
func (b *Book) Add(p models.Position) error {
	b.mu.Lock()

	if ok, err := b.canBuyLocked(p.Code); !ok {
		b.mu.Unlock()
		return err
	}

	b.positions[p.Code] = p
	b.order = append(b.order, p.Code)
	b.tradedToday[p.Code] = true
	b.mu.Unlock()

	b.changed()
	return nil
}

// Remove pops and returns the position for code.
func (b *Book) Remove(code string) (models.Position, bool) {
	b.mu.Lock()

	p, ok := b.positions[code]
	if !ok {
		b.mu.Unlock()
		return models.Position{}, false
	}
	delete(b.positions, code)
	for i, c := range b.order {
		if c == code {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	b.changed()
	return p, true
}

// Get returns the open position for code, if any.
func (b *Book) Get(code string) (models.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[code]
	return p, ok
}

// Positions returns the open positions in entry order.
func (b *Book) Positions() []models.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Position, 0, len(b.order))
	for _, code := range b.order {
		out = append(out, b.positions[code])
	}
	return out
}

// Count returns the number of open positions.
func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// AvailableSlots returns the remaining capacity, never negative.
func (b *Book) AvailableSlots() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	slots := b.maxPositions - len(b.positions)
	if slots < 0 {
		return 0
	}
	return slots
}

// Invested returns the sum of open position costs.
func (b *Book) Invested() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0.0
	for _, p := range b.positions {
		total += p.Cost
	}
	return total
}

// Block administratively excludes code for the rest of the day.
func (b *Book) Block(code string) {
	b.mu.Lock()
	b.blocked[code] = true
	b.mu.Unlock()
	b.changed()
}

// SetCapacity adjusts the position limit. Open positions above the new
// limit are kept; only new entries are constrained.
func (b *Book) SetCapacity(maxPositions int) {
	if maxPositions < 1 {
		maxPositions = 1
	}
	b.mu.Lock()
	b.maxPositions = maxPositions
	b.mu.Unlock()
}

// Capacity returns the position limit.
func (b *Book) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxPositions
}

// TradedToday returns the codes traded today, for persistence.
func (b *Book) TradedToday() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return setToSlice(b.tradedToday)
}

// BlockedCodes returns the blocked codes, for persistence.
func (b *Book) BlockedCodes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return setToSlice(b.blocked)
}

// ResetDaily clears the traded-today and blocked sets at day rollover.
// Open positions are untouched; unexited holdings carry into the new day.
func (b *Book) ResetDaily() {
	b.mu.Lock()
	b.tradedToday = make(map[string]bool)
	b.blocked = make(map[string]bool)
	b.mu.Unlock()
	b.changed()
}

// ForceCloseAll empties the book and returns everything that was open, in
// entry order, for forced end-of-day liquidation.
func (b *Book) ForceCloseAll() []models.Position {
	b.mu.Lock()
	out := make([]models.Position, 0, len(b.order))
	for _, code := range b.order {
		out = append(out, b.positions[code])
	}
	b.positions = make(map[string]models.Position)
	b.order = nil
	b.mu.Unlock()

	b.changed()
	return out
}

// Restore rebuilds the book from a loaded snapshot.
func (b *Book) Restore(positions []models.Position, traded, blocked []string) {
	b.mu.Lock()
	b.positions = make(map[string]models.Position, len(positions))
	b.order = b.order[:0]
	for _, p := range positions {
		if _, dup := b.positions[p.Code]; dup {
			continue
		}
		b.positions[p.Code] = p
		b.order = append(b.order, p.Code)
	}
	b.tradedToday = make(map[string]bool, len(traded))
	for _, c := range traded {
		b.tradedToday[c] = true
	}
	b.blocked = make(map[string]bool, len(blocked))
	for _, c := range blocked {
		b.blocked[c] = true
	}
	b.mu.Unlock()
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
