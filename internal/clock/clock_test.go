package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"krx-scalper/internal/config"
	"krx-scalper/internal/models"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Timezone:    "Asia/Seoul",
		Open:        "09:00",
		EntryOpen:   "09:05",
		EntryCutoff: "14:00",
		ForceExit:   "15:10",
		Close:       "15:30",
		Holidays:    []string{"2026-01-12"}, // Monday
	}
}

func mustClock(t *testing.T) *MarketClock {
	t.Helper()
	c, err := New(testSessionConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

// kst builds a time on the given date at HH:MM exchange-local.
func kst(c *MarketClock, year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, c.Location())
}

func TestIsHolidayWeekendFirst(t *testing.T) {
	c := mustClock(t)
	c.AddHoliday(kst(c, 2026, time.January, 10, 0, 0)) // Saturday

	// The weekend rule wins even when the date is also in the holiday table.
	holiday, reason := c.IsHoliday(kst(c, 2026, time.January, 10, 10, 0))
	if !holiday || reason != "weekend" {
		t.Errorf("Saturday = (%v, %q), want (true, weekend)", holiday, reason)
	}

	holiday, reason = c.IsHoliday(kst(c, 2026, time.January, 11, 10, 0))
	if !holiday || reason != "weekend" {
		t.Errorf("Sunday = (%v, %q), want (true, weekend)", holiday, reason)
	}

	holiday, reason = c.IsHoliday(kst(c, 2026, time.January, 12, 10, 0))
	if !holiday || reason != "holiday" {
		t.Errorf("holiday Monday = (%v, %q), want (true, holiday)", holiday, reason)
	}

	holiday, _ = c.IsHoliday(kst(c, 2026, time.January, 8, 10, 0))
	if holiday {
		t.Errorf("Thursday reported as holiday")
	}
}

func TestSessionWindows(t *testing.T) {
	c := mustClock(t)

	// Thursday 2026-01-08.
	tests := []struct {
		hour, min  int
		trading    bool
		entry      bool
		forceClose bool
	}{
		{8, 59, false, false, false},
		{9, 0, true, false, false},
		{9, 4, true, false, false},
		{9, 5, true, true, false},
		{13, 59, true, true, false},
		{14, 0, true, false, false},
		{15, 9, true, false, false},
		{15, 10, true, false, true},
		{15, 29, true, false, true},
		{15, 30, false, false, true},
	}

	for _, tt := range tests {
		at := kst(c, 2026, time.January, 8, tt.hour, tt.min)
		if got := c.IsTradingTime(at); got != tt.trading {
			t.Errorf("IsTradingTime(%02d:%02d) = %v, want %v", tt.hour, tt.min, got, tt.trading)
		}
		if got := c.IsEntryAllowed(at); got != tt.entry {
			t.Errorf("IsEntryAllowed(%02d:%02d) = %v, want %v", tt.hour, tt.min, got, tt.entry)
		}
		if got := c.IsForceLiquidationDue(at); got != tt.forceClose {
			t.Errorf("IsForceLiquidationDue(%02d:%02d) = %v, want %v", tt.hour, tt.min, got, tt.forceClose)
		}
	}
}

func TestWindowsClosedOnHolidays(t *testing.T) {
	c := mustClock(t)
	at := kst(c, 2026, time.January, 12, 10, 0) // holiday Monday, mid-session

	if c.IsTradingTime(at) {
		t.Errorf("trading allowed on holiday")
	}
	if c.IsEntryAllowed(at) {
		t.Errorf("entry allowed on holiday")
	}
	if c.IsForceLiquidationDue(at) {
		t.Errorf("force liquidation due on holiday")
	}
}

func TestStateAt(t *testing.T) {
	c := mustClock(t)

	tests := []struct {
		hour, min int
		want      models.SessionState
	}{
		{8, 0, models.SessionClosed},
		{9, 2, models.SessionPreOpen},
		{10, 0, models.SessionOpen},
		{15, 15, models.SessionForceExit},
		{16, 0, models.SessionClosed},
	}
	for _, tt := range tests {
		at := kst(c, 2026, time.January, 8, tt.hour, tt.min)
		if got := c.StateAt(at); got != tt.want {
			t.Errorf("StateAt(%02d:%02d) = %v, want %v", tt.hour, tt.min, got, tt.want)
		}
	}

	if got := c.StateAt(kst(c, 2026, time.January, 12, 10, 0)); got != models.SessionHoliday {
		t.Errorf("StateAt(holiday) = %v, want HOLIDAY", got)
	}
	if got := c.StateAt(kst(c, 2026, time.January, 10, 10, 0)); got != models.SessionClosed {
		t.Errorf("StateAt(Saturday) = %v, want CLOSED", got)
	}
}

func TestTimeUntilNextSession(t *testing.T) {
	c := mustClock(t)

	// Friday 16:00 walks over the weekend and the Monday holiday to the
	// Tuesday open.
	from := kst(c, 2026, time.January, 9, 16, 0)
	wait, open, ok := c.TimeUntilNextSession(from)
	if !ok {
		t.Fatal("no session found within the walk bound")
	}
	wantOpen := kst(c, 2026, time.January, 13, 9, 0)
	if !open.Equal(wantOpen) {
		t.Errorf("next open = %v, want %v", open, wantOpen)
	}
	if wait != wantOpen.Sub(from) {
		t.Errorf("wait = %v, want %v", wait, wantOpen.Sub(from))
	}

	// Mid-morning on a trading day the current open is already past, so
	// the next session is tomorrow.
	from = kst(c, 2026, time.January, 8, 10, 0)
	_, open, ok = c.TimeUntilNextSession(from)
	if !ok || !open.Equal(kst(c, 2026, time.January, 9, 9, 0)) {
		t.Errorf("next open = %v (ok=%v), want Friday 09:00", open, ok)
	}

	// Before the open on a trading day the same-day open is next.
	from = kst(c, 2026, time.January, 8, 8, 0)
	_, open, ok = c.TimeUntilNextSession(from)
	if !ok || !open.Equal(kst(c, 2026, time.January, 8, 9, 0)) {
		t.Errorf("next open = %v (ok=%v), want same-day 09:00", open, ok)
	}
}

func TestTimeUntilNextSessionBound(t *testing.T) {
	c := mustClock(t)
	// Blanket the next two weeks in holidays; the ten-day walk must give up.
	for day := 8; day <= 26; day++ {
		c.AddHoliday(kst(c, 2026, time.January, day, 0, 0))
	}

	if _, _, ok := c.TimeUntilNextSession(kst(c, 2026, time.January, 8, 10, 0)); ok {
		t.Errorf("found a session inside an all-holiday window")
	}
}

type fakeSyncer struct {
	offset time.Duration
	err    error
}

func (f fakeSyncer) Offset(ctx context.Context) (time.Duration, error) {
	return f.offset, f.err
}

func TestSync(t *testing.T) {
	c := mustClock(t)

	if err := c.Sync(context.Background(), fakeSyncer{offset: 2 * time.Second}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !c.Synced() {
		t.Errorf("Synced = false after successful sync")
	}

	drift := time.Until(c.Now().Add(-2 * time.Second))
	if drift < -time.Second || drift > time.Second {
		t.Errorf("Now not offset by sync result, drift = %v", drift)
	}
}

func TestSyncFailureDegradesToLocalTime(t *testing.T) {
	c := mustClock(t)
	wantErr := errors.New("ntp unreachable")

	if err := c.Sync(context.Background(), fakeSyncer{err: wantErr}); !errors.Is(err, wantErr) {
		t.Fatalf("Sync err = %v, want %v", err, wantErr)
	}
	if c.Synced() {
		t.Errorf("Synced = true after failed sync")
	}

	// Now keeps working on local time.
	if c.Now().IsZero() {
		t.Errorf("Now returned zero time")
	}
}
