// Package clock classifies wall-clock time against exchange session rules.
// It is the single gating authority for entries, exits, and end-of-day
// finalization.
package clock

import (
	"context"
	"sync"
	"time"

	"krx-scalper/internal/config"
	"krx-scalper/internal/models"
)

// Syncer supplies an external clock correction, typically from an NTP
// exchange. Implementations may fail; the clock degrades to local time.
type Syncer interface {
	Offset(ctx context.Context) (time.Duration, error)
}

// MarketClock resolves current time and classifies it against the holiday
// calendar and session windows. Safe for concurrent readers.
type MarketClock struct {
	location *time.Location
	holidays map[string]bool // "2006-01-02" -> is holiday

	open        int // minutes from midnight
	entryOpen   int
	entryCutoff int
	forceExit   int
	close       int

	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

// New creates a market clock from session configuration.
func New(cfg config.SessionConfig) (*MarketClock, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		// Fallback to UTC+9
		loc = time.FixedZone("KST", 9*60*60)
	}

	c := &MarketClock{
		location: loc,
		holidays: make(map[string]bool),
	}

	for _, w := range []struct {
		value string
		dst   *int
	}{
		{cfg.Open, &c.open},
		{cfg.EntryOpen, &c.entryOpen},
		{cfg.EntryCutoff, &c.entryCutoff},
		{cfg.ForceExit, &c.forceExit},
		{cfg.Close, &c.close},
	} {
		m, err := parseMinutes(w.value)
		if err != nil {
			return nil, err
		}
		*w.dst = m
	}

	for _, h := range cfg.Holidays {
		d, err := time.ParseInLocation("2006-01-02", h, loc)
		if err != nil {
			return nil, err
		}
		c.AddHoliday(d)
	}

	return c, nil
}

func parseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AddHoliday adds a market holiday.
func (c *MarketClock) AddHoliday(date time.Time) {
	c.holidays[date.Format("2006-01-02")] = true
}

// Location returns the exchange timezone.
func (c *MarketClock) Location() *time.Location {
	return c.location
}

// Sync refreshes the external time offset. Failure leaves the clock on
// local time with Synced reporting false; Now never fails.
func (c *MarketClock) Sync(ctx context.Context, s Syncer) error {
	offset, err := s.Offset(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.synced = false
		return err
	}
	c.offset = offset
	c.synced = true
	return nil
}

// Now returns the current exchange-local time, adjusted by the last
// successful sync offset.
func (c *MarketClock) Now() time.Time {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()
	return time.Now().Add(offset).In(c.location)
}

// Synced reports whether the last sync attempt succeeded.
func (c *MarketClock) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// IsHoliday reports whether date is a non-trading day and why. The weekend
// rule is checked before the holiday table, so a Saturday holiday still
// reports "weekend".
func (c *MarketClock) IsHoliday(date time.Time) (bool, string) {
	date = date.In(c.location)
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return true, "weekend"
	}
	if c.holidays[date.Format("2006-01-02")] {
		return true, "holiday"
	}
	return false, ""
}

// SessionWindow returns the open and close instants for date.
func (c *MarketClock) SessionWindow(date time.Time) (time.Time, time.Time) {
	date = date.In(c.location)
	return minuteAt(date, c.open), minuteAt(date, c.close)
}

// StateAt classifies t against the session windows.
func (c *MarketClock) StateAt(t time.Time) models.SessionState {
	t = t.In(c.location)

	if holiday, reason := c.IsHoliday(t); holiday {
		if reason == "holiday" {
			return models.SessionHoliday
		}
		return models.SessionClosed
	}

	m := t.Hour()*60 + t.Minute()
	switch {
	case m < c.open:
		return models.SessionClosed
	case m < c.entryOpen:
		return models.SessionPreOpen
	case m < c.forceExit:
		return models.SessionOpen
	case m < c.close:
		return models.SessionForceExit
	default:
		return models.SessionClosed
	}
}

// IsTradingTime reports whether t is inside the session on a trading day.
func (c *MarketClock) IsTradingTime(t time.Time) bool {
	t = t.In(c.location)
	if holiday, _ := c.IsHoliday(t); holiday {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= c.open && m < c.close
}

// IsEntryAllowed reports whether new positions may be opened at t.
func (c *MarketClock) IsEntryAllowed(t time.Time) bool {
	t = t.In(c.location)
	if holiday, _ := c.IsHoliday(t); holiday {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= c.entryOpen && m < c.entryCutoff
}

// IsForceLiquidationDue reports whether the end-of-day liquidation instant
// has been reached.
func (c *MarketClock) IsForceLiquidationDue(t time.Time) bool {
	t = t.In(c.location)
	if holiday, _ := c.IsHoliday(t); holiday {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= c.forceExit
}

// TimeUntilNextSession walks forward at most ten days, skipping holidays,
// and returns the wait until the next session open and the open instant.
// ok is false if no trading day was found within the bound.
func (c *MarketClock) TimeUntilNextSession(t time.Time) (time.Duration, time.Time, bool) {
	t = t.In(c.location)

	for day := 0; day <= 10; day++ {
		candidate := t.AddDate(0, 0, day)
		if holiday, _ := c.IsHoliday(candidate); holiday {
			continue
		}
		open := minuteAt(candidate, c.open)
		if open.After(t) {
			return open.Sub(t), open, true
		}
	}

	return 0, time.Time{}, false
}

// minuteAt creates a time on the same day at the given minute from midnight.
func minuteAt(t time.Time, minutes int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), minutes/60, minutes%60, 0, 0, t.Location())
}
