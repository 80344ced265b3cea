// Package engine drives the simulation: one accounting goroutine owns the
// ledger, book, and store, gated by the market clock. Quote fetches run in
// parallel but read-only; every mutation is applied on the loop goroutine.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"krx-scalper/internal/book"
	"krx-scalper/internal/clock"
	"krx-scalper/internal/config"
	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/exit"
	"krx-scalper/internal/ledger"
	"krx-scalper/internal/logging"
	"krx-scalper/internal/market"
	"krx-scalper/internal/models"
	"krx-scalper/internal/returns"
	"krx-scalper/internal/store"
	"krx-scalper/pkg/utils"
)

// Options bundles the engine's collaborators.
type Options struct {
	Config     *config.Config
	Clock      *clock.MarketClock
	Store      store.SnapshotStore
	Quotes     market.QuoteProvider
	Candidates market.CandidateSource
	Syncer     clock.Syncer
	Logger     zerolog.Logger

	// Now overrides the clock time source in tests.
	Now func() time.Time
}

// Engine is the position and capital accounting engine.
type Engine struct {
	cfg    *config.Config
	clk    *clock.MarketClock
	led    *ledger.Ledger
	bk     *book.Book
	ev     *exit.Evaluator
	calc   *returns.Calculator
	st     store.SnapshotStore
	fetch  *market.Fetcher
	cands  market.CandidateSource
	syncer clock.Syncer
	log    zerolog.Logger

	now      func() time.Time
	activity func(string)

	// commands are applied between ticks, on the accounting goroutine.
	commands chan func()

	date      string // current trading date key, "20060102"
	strategy  Strategy
	finalized bool

	// consecutive ticks a candidate arrived with no usable price; the
	// code is blocked for the day once the streak reaches badQuoteLimit.
	badQuotes map[string]int

	// dirty is set by the book's change hook so mutations applied
	// between ticks (via Do) are persisted without waiting for the next
	// tick's save.
	dirty bool
}

// badQuoteLimit is the streak of unusable candidate prices after which a
// code is blocked for the rest of the day.
const badQuoteLimit = 3

// New creates an engine. The ledger starts at the configured initial
// capital until Bootstrap restores persisted state.
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = opts.Clock.Now
	}

	e := &Engine{
		cfg:       opts.Config,
		clk:       opts.Clock,
		st:        opts.Store,
		cands:     opts.Candidates,
		syncer:    opts.Syncer,
		log:       opts.Logger,
		now:       now,
		calc:      returns.New(0),
		ev:        exit.New(opts.Config.Risk.ProfitTargetPct, opts.Config.Risk.StopLossPct),
		commands:  make(chan func(), 16),
		badQuotes: make(map[string]int),
	}

	e.fetch = market.NewFetcher(opts.Quotes, opts.Config.Engine.QuoteWorkers,
		market.NewRateLimiter(float64(opts.Config.Engine.QuoteWorkers)*5, opts.Config.Engine.QuoteWorkers*5))

	e.led = ledger.New(opts.Config.Capital, 0, e.timestamp)
	e.bk = book.New(opts.Config.Risk.MaxPositions)
	e.bk.OnChange(func() { e.dirty = true })
	e.date = utils.DateKey(e.now())
	e.applyStrategy(e.led.Cash())

	return e
}

func (e *Engine) timestamp() time.Time {
	return e.now()
}

// syncClock refreshes the NTP offset with a short retry. Failure degrades
// to local time and never blocks the loop.
func (e *Engine) syncClock(ctx context.Context) {
	if e.syncer == nil {
		return
	}
	cfg := utils.DefaultRetryConfig()
	cfg.MaxAttempts = 2
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = time.Second
	err := utils.Retry(ctx, cfg, func() error {
		return e.clk.Sync(ctx, e.syncer)
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("clock sync unavailable, using local time")
	}
}

// SetActivityHook installs the side-effecting hook called after
// state-changing events. The engine tolerates hook panics.
func (e *Engine) SetActivityHook(fn func(string)) {
	e.activity = fn
}

func (e *Engine) logActivity(msg string) {
	if e.activity == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Interface("panic", r).Msg("activity hook panicked")
		}
	}()
	e.activity(msg)
}

// Do schedules fn onto the accounting goroutine. It runs between ticks.
func (e *Engine) Do(fn func()) {
	e.commands <- fn
}

// runCommand applies an external request and persists immediately if it
// mutated the book, rather than leaving the change unsaved until the next
// tick.
func (e *Engine) runCommand(ctx context.Context, fn func()) {
	fn()
	if e.dirty {
		e.persist(ctx)
	}
}

// Bootstrap restores persisted state for today, or carries forward the
// prior day's ending capital, before the loop starts.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.syncClock(ctx)

	e.date = utils.DateKey(e.now())

	state, txs, err := e.st.LoadDayState(ctx, e.date)
	if err != nil {
		return err
	}
	if state != nil {
		e.led.Restore(*state, txs)
		e.bk.Restore(state.Positions, state.TradedToday, state.BlockedCodes)
		e.applyStrategy(state.Total())

		// A same-day restart after force-exit must not re-close the day;
		// the history row is the durable record of that.
		today, err := e.st.History(ctx, store.HistoryFilter{From: e.date, To: e.date})
		if err != nil {
			return err
		}
		e.finalized = len(today) > 0

		e.log.Info().
			Str("date", e.date).
			Float64("cash", state.Cash).
			Int("positions", len(state.Positions)).
			Bool("finalized", e.finalized).
			Msg("Restored mid-day state")
		return nil
	}

	capital, found, err := e.st.LoadPriorEndingCapital(ctx, e.date)
	if err != nil {
		return err
	}
	if !found {
		capital = e.cfg.Capital.Initial
	}

	prior, err := e.st.History(ctx, store.HistoryFilter{})
	if err != nil {
		return err
	}

	// Intraday peaks outlive the day through the last persisted
	// day_state row; ending capitals alone would understate drawdown.
	wmMax, wmMin, wmFound, err := e.st.LoadPriorWatermarks(ctx, e.date)
	if err != nil {
		return err
	}

	e.led = ledger.New(e.cfg.Capital, capital, e.timestamp)
	if len(prior) > 0 || wmFound {
		original := capital
		if len(prior) > 0 {
			// Lifetime fields carry across restarts via the history head.
			original = prior[0].StartCapital
		}
		maxCap := maxEndCapital(prior, capital)
		minCap := minEndCapital(prior, capital)
		if wmFound {
			if wmMax > maxCap {
				maxCap = wmMax
			}
			if wmMin < minCap {
				minCap = wmMin
			}
		}
		e.led.Restore(models.PortfolioState{
			Cash:            capital,
			StartCapital:    capital,
			OriginalCapital: original,
			MaxCapital:      maxCap,
			MinCapital:      minCap,
			TradingDays:     len(prior),
		}, nil)
	}
	e.applyStrategy(capital)
	e.log.Info().
		Str("date", e.date).
		Float64("capital", capital).
		Bool("carried_forward", found).
		Msg("Starting new trading day")
	return nil
}

func maxEndCapital(history []models.DailySnapshot, current float64) float64 {
	max := current
	for _, d := range history {
		if d.EndCapital > max {
			max = d.EndCapital
		}
	}
	return max
}

func minEndCapital(history []models.DailySnapshot, current float64) float64 {
	min := current
	for _, d := range history {
		if d.EndCapital < min {
			min = d.EndCapital
		}
	}
	return min
}

func (e *Engine) applyStrategy(capital float64) {
	if e.cfg.Risk.TieredStrategy {
		e.strategy = StrategyFor(capital)
	} else {
		perOrder := capital / float64(e.cfg.Risk.MaxPositions)
		e.strategy = Strategy{PerOrder: perOrder, MaxPositions: e.cfg.Risk.MaxPositions}
	}
	e.bk.SetCapacity(e.strategy.MaxPositions)
}

// Run executes the control loop until ctx is cancelled. On interrupt the
// engine attempts one final save before returning.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Bootstrap(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(e.cfg.Engine.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.finalSave()
			return ctx.Err()
		case fn := <-e.commands:
			e.runCommand(ctx, fn)
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one cycle: day rollover, exit sweep, forced liquidation or new
// entries, then a synchronous save.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()

	if key := utils.DateKey(now); key != e.date {
		e.rollover(ctx, key)
	}

	if holiday, reason := e.clk.IsHoliday(now); holiday {
		e.logWait(now, reason)
		return
	}
	if !e.clk.IsTradingTime(now) {
		e.logWait(now, "closed")
		return
	}

	e.sweepExits(ctx)

	if ctx.Err() != nil {
		return
	}

	if e.clk.IsForceLiquidationDue(now) {
		e.forceLiquidate(ctx)
		e.finalize(ctx)
	} else if e.clk.IsEntryAllowed(now) {
		e.enterCandidates(ctx)
	}

	e.persist(ctx)
}

func (e *Engine) logWait(now time.Time, reason string) {
	wait, open, ok := e.clk.TimeUntilNextSession(now)
	evt := e.log.Debug().Str("reason", reason)
	if ok {
		evt = evt.Dur("wait", wait).Time("next_open", open)
	}
	evt.Msg("Market closed")
}

// rollover moves the engine into a new trading day. The prior day is
// finalized if it was a trading day and the loop never reached its forced
// liquidation point. Weekends and holidays leave no history row and do
// not advance the trading-day counter.
func (e *Engine) rollover(ctx context.Context, newDate string) {
	if !e.finalized && e.isTradingDate(e.date) {
		e.finalize(ctx)
	}

	carry := e.led.Cash() + e.bk.Invested()
	e.led.ResetDaily(carry)
	e.bk.ResetDaily()
	e.applyStrategy(carry)
	e.date = newDate
	e.finalized = false
	e.badQuotes = make(map[string]int)

	e.syncClock(ctx)

	e.log.Info().Str("date", newDate).Float64("capital", carry).Msg("Day rollover")
	e.logActivity("day rollover: " + newDate)
}

// isTradingDate reports whether a "20060102" date key falls on a session
// day rather than a weekend or holiday.
func (e *Engine) isTradingDate(date string) bool {
	day, err := time.ParseInLocation("20060102", date, e.clk.Location())
	if err != nil {
		return false
	}
	holiday, _ := e.clk.IsHoliday(day)
	return !holiday
}

// sweepExits fetches prices for all open positions in parallel and applies
// the resulting sells serially, checking for cancellation between
// positions.
func (e *Engine) sweepExits(ctx context.Context) {
	positions := e.bk.Positions()
	if len(positions) == 0 {
		return
	}

	codes := make([]string, len(positions))
	for i, p := range positions {
		codes[i] = p.Code
	}
	prices := e.fetch.Prices(ctx, codes)

	for _, sig := range e.ev.EvaluateAll(positions, prices) {
		if ctx.Err() != nil {
			return
		}
		e.closePosition(sig.Position, sig.Price, sig.Reason)
	}
}

// forceLiquidate closes every open position at the best available price,
// checking for cancellation between positions so a timeout still exits the
// positions already scanned.
func (e *Engine) forceLiquidate(ctx context.Context) {
	positions := e.bk.Positions()
	if len(positions) == 0 {
		return
	}

	codes := make([]string, len(positions))
	for i, p := range positions {
		codes[i] = p.Code
	}
	prices := e.fetch.Prices(ctx, codes)

	for _, p := range positions {
		if ctx.Err() != nil {
			return
		}
		price, ok := prices[p.Code]
		if !ok || price <= 0 {
			// No quote this tick; exit at cost so the day can close.
			price = p.EntryPrice
		}
		e.closePosition(p, price, models.ExitReasonForce)
	}
}

func (e *Engine) closePosition(p models.Position, price float64, reason models.ExitReason) {
	pos, ok := e.bk.Remove(p.Code)
	if !ok {
		return
	}

	// Rebuild the opening record by id; the ledger holds no live position
	// references.
	buy := models.Transaction{
		ID:       pos.BuyID,
		Kind:     models.TxBuy,
		Code:     pos.Code,
		Name:     pos.Name,
		Quantity: pos.Quantity,
		Price:    pos.EntryPrice,
		Amount:   pos.Cost,
		Tag:      pos.Tag,
	}

	tx, err := e.led.Sell(buy, price, reason)
	if err != nil {
		e.log.Error().Err(err).Str("code", pos.Code).Msg("sell rejected")
		return
	}

	e.led.ObserveTotal(e.led.Cash() + e.bk.Invested())
	logging.LogExit(e.log, tx.Code, string(reason), tx.Profit, tx.ProfitRate*100)
	e.logActivity("sell " + tx.Code + " (" + string(reason) + ")")
}

// enterCandidates asks the screening collaborator for candidates and buys
// until capacity or cash runs out.
func (e *Engine) enterCandidates(ctx context.Context) {
	if e.cands == nil || e.bk.AvailableSlots() == 0 {
		return
	}

	candidates, err := e.cands.Candidates(ctx, e.cfg.Engine.ScreenTag)
	if err != nil {
		e.log.Warn().Err(err).Msg("candidate fetch failed")
		return
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		if e.bk.AvailableSlots() == 0 {
			return
		}
		if c.Price <= 0 {
			e.recordBadQuote(c.Code)
			continue
		}
		delete(e.badQuotes, c.Code)
		if err := e.tryBuy(c); err != nil {
			e.log.Debug().Err(err).Str("code", c.Code).Msg("buy skipped")
		}
	}
}

// recordBadQuote counts a candidate tick with no usable price and blocks
// the code for the day once the streak reaches badQuoteLimit.
func (e *Engine) recordBadQuote(code string) {
	e.badQuotes[code]++
	if e.badQuotes[code] < badQuoteLimit {
		return
	}
	delete(e.badQuotes, code)
	e.bk.Block(code)
	e.log.Warn().Str("code", code).Msg("blocked for the day after repeated bad quotes")
}

func (e *Engine) tryBuy(c models.Candidate) error {
	if ok, err := e.bk.CanBuy(c.Code); !ok {
		return err
	}

	tx, err := e.led.Buy(c.Code, c.Name, c.Price, e.strategy.PerOrder, c.Tag)
	if err != nil {
		return err
	}

	if err := e.bk.Add(models.NewPosition(tx, c.Volume)); err != nil {
		// Cannot happen while mutations are serialized; unwind the debit.
		if _, serr := e.led.Sell(tx, tx.Price, models.ExitReasonManual); serr != nil {
			e.log.Error().Err(serr).Str("code", c.Code).Msg("buy unwind failed")
		}
		return err
	}

	e.led.ObserveTotal(e.led.Cash() + e.bk.Invested())
	logging.LogTrade(e.log, tx.Code, string(tx.Kind), tx.Quantity, tx.Price)
	e.logActivity("buy " + tx.Code)
	return nil
}

// persist writes the full day state synchronously. Failure is logged and
// non-fatal; in-memory state is kept and the next save retries.
func (e *Engine) persist(ctx context.Context) {
	state := e.State()
	err := e.st.SaveDayState(ctx, state, e.led.Transactions())
	if err != nil {
		err = errs.Wrap(errs.ErrPersistenceFailure, err.Error())
	}
	logging.LogSnapshot(e.log, e.date, state.Total(), err)
	if err != nil {
		e.log.Warn().Err(err).Msg("snapshot save failed, will retry next tick")
		return
	}
	e.dirty = false
}

// finalize records the completed day. Idempotent: re-finalizing replaces
// the same-date entry with identical values.
func (e *Engine) finalize(ctx context.Context) {
	summary := e.Summary()
	_, sells := e.led.DailyCounts()

	snap := models.DailySnapshot{
		Date:             e.date,
		StartCapital:     e.led.StartCapital(),
		EndCapital:       summary.Total,
		DailyPnL:         summary.DailyPnL,
		DailyReturn:      summary.DailyReturn,
		CumulativeReturn: summary.CumulativeReturn,
		TradeCount:       sells,
	}

	if err := e.st.FinalizeDay(ctx, snap); err != nil {
		e.log.Error().Err(err).Str("date", e.date).Msg("finalize failed")
		return
	}

	if !e.finalized {
		e.led.IncrementTradingDays()
	}
	e.finalized = true
	e.persist(ctx)
	e.log.Info().
		Str("date", e.date).
		Float64("end_capital", snap.EndCapital).
		Float64("daily_return", snap.DailyReturn).
		Msg("Day finalized")
	e.logActivity("day finalized: " + e.date)
}

// finalSave is the one save attempted on operator interrupt.
func (e *Engine) finalSave() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.persist(ctx)
	e.log.Info().Msg("Final snapshot saved on shutdown")
}

// State assembles the full persistable accounting state.
func (e *Engine) State() models.PortfolioState {
	maxCap, minCap := e.led.Watermarks()
	state := models.PortfolioState{
		Date:            e.date,
		Cash:            e.led.Cash(),
		Positions:       e.bk.Positions(),
		TradedToday:     e.bk.TradedToday(),
		BlockedCodes:    e.bk.BlockedCodes(),
		DailyPnL:        e.led.DailyPnL(),
		StartCapital:    e.led.StartCapital(),
		OriginalCapital: e.led.OriginalCapital(),
		MaxCapital:      maxCap,
		MinCapital:      minCap,
		TradingDays:     e.led.TradingDays(),
		LastUpdated:     e.now(),
	}
	state.RecomputeInvested()
	return state
}

// Summary returns the read-only display snapshot.
func (e *Engine) Summary() models.PortfolioSummary {
	s := e.led.Value(e.bk.Invested())
	s.OpenPositions = e.bk.Count()
	s.AvailableSlots = e.bk.AvailableSlots()
	return s
}

// PositionDetails returns the open positions in entry order.
func (e *Engine) PositionDetails() []models.Position {
	return e.bk.Positions()
}

// Performance derives compounding statistics from the current state and
// the finalized history.
func (e *Engine) Performance(ctx context.Context) (returns.PeriodAnalysis, models.PortfolioSummary, error) {
	summary := e.Summary()
	history, err := e.st.History(ctx, store.HistoryFilter{})
	if err != nil {
		return returns.PeriodAnalysis{}, summary, err
	}
	return e.calc.AnalyzeHistory(history), summary, nil
}
