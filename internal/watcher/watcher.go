// Package watcher is the alarm engine core: it reconciles the registered
// alarm set against the database, runs per-market watch tasks, and sends a
// channel alert whenever a trade satisfies an alarm's condition.
package watcher

import (
	"context"
	"log"
	"sync"
	"time"

	"alarm-enginev1/internal/cache"
	"alarm-enginev1/internal/model"
)

const (
	defaultRegistryPeriod = 5 * time.Second
	defaultJanitorWarmup  = 10 * time.Minute
	defaultJanitorPeriod  = 5 * time.Minute
	defaultOrderBookLimit = 20
	defaultBackfillLimit  = 100
)

// Alarm is the runtime state of one registered alarm: the immutable record,
// the current condition, and the suppression timestamp.
type Alarm struct {
	Record model.AlarmRecord

	mu              sync.Mutex
	condition       model.Condition
	alertedCandleTS int64
}

// Condition returns the alarm's current condition.
func (a *Alarm) Condition() model.Condition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.condition
}

func (a *Alarm) setCondition(c model.Condition) {
	a.mu.Lock()
	a.condition = c
	a.mu.Unlock()
}

// AlertedCandleTS returns the timestamp of the candle an alert was last
// delivered on, or 0 if none was.
func (a *Alarm) AlertedCandleTS() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alertedCandleTS
}

func (a *Alarm) setAlertedCandleTS(ts int64) {
	a.mu.Lock()
	a.alertedCandleTS = ts
	a.mu.Unlock()
}

// taskKey identifies one market's watch task pair.
type taskKey struct {
	exchange model.ExchangeID
	symbol   string
}

// Config wires the watcher's collaborators and tuning knobs. Zero durations
// and limits fall back to defaults.
type Config struct {
	Store    model.AlarmStore
	Notifier model.Notifier
	Cache    *cache.Cache
	Factory  model.ExchangeFactory

	RegistryPeriod time.Duration
	JanitorWarmup  time.Duration
	JanitorPeriod  time.Duration
	OrderBookLimit int
	BackfillLimit  int
}

// Watcher owns the registered alarm set and the watch tasks.
type Watcher struct {
	store    model.AlarmStore
	notifier model.Notifier
	cache    *cache.Cache
	factory  model.ExchangeFactory

	registryPeriod time.Duration
	janitorWarmup  time.Duration
	janitorPeriod  time.Duration
	orderBookLimit int
	backfillLimit  int

	mu         sync.RWMutex
	alarms     map[int64]*Alarm
	tradeTasks map[taskKey]bool
	obTasks    map[taskKey]bool

	// Hooks for metrics wiring. All optional; called from task goroutines.
	OnTrade         func(exchange model.ExchangeID)
	OnReconnect     func(exchange model.ExchangeID)
	OnAlarmCount    func(n int)
	OnAlertSent     func(event model.AlertEvent)
	OnAlertError    func()
	OnBackfillError func()
	OnEvalDuration  func(d time.Duration)
}

// New creates a watcher. It does not touch the database until Run.
func New(cfg Config) *Watcher {
	if cfg.RegistryPeriod <= 0 {
		cfg.RegistryPeriod = defaultRegistryPeriod
	}
	if cfg.JanitorWarmup <= 0 {
		cfg.JanitorWarmup = defaultJanitorWarmup
	}
	if cfg.JanitorPeriod <= 0 {
		cfg.JanitorPeriod = defaultJanitorPeriod
	}
	if cfg.OrderBookLimit <= 0 {
		cfg.OrderBookLimit = defaultOrderBookLimit
	}
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = defaultBackfillLimit
	}
	return &Watcher{
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		cache:          cfg.Cache,
		factory:        cfg.Factory,
		registryPeriod: cfg.RegistryPeriod,
		janitorWarmup:  cfg.JanitorWarmup,
		janitorPeriod:  cfg.JanitorPeriod,
		orderBookLimit: cfg.OrderBookLimit,
		backfillLimit:  cfg.BackfillLimit,
		alarms:         make(map[int64]*Alarm),
		tradeTasks:     make(map[taskKey]bool),
		obTasks:        make(map[taskKey]bool),
	}
}

// Run starts the boundary clock, the janitor, and the registry sweep loop.
// Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	go w.cache.RunBoundaryTask(ctx, 0)
	go w.runJanitor(ctx)

	log.Printf("[watcher] registry sweep every %v", w.registryPeriod)
	ticker := time.NewTicker(w.registryPeriod)
	defer ticker.Stop()

	w.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile aligns the registered alarm set with the enabled rows in the
// database: new alarms are registered, edited conditions applied, and
// disabled alarms dropped. Watch tasks notice dropped markets on their next
// iteration and terminate themselves.
func (w *Watcher) reconcile(ctx context.Context) {
	records, err := w.store.SelectEnabledAlarms(ctx)
	if err != nil {
		log.Printf("[watcher] registry sweep failed: %v", err)
		return
	}

	enabled := make(map[int64]bool, len(records))
	for _, rec := range records {
		enabled[rec.AlarmID] = true

		cond, err := w.store.SelectCondition(ctx, rec.AlarmID)
		if err != nil {
			log.Printf("[watcher] skipping alarm %d: %v", rec.AlarmID, err)
			continue
		}

		w.mu.RLock()
		alarm, registered := w.alarms[rec.AlarmID]
		w.mu.RUnlock()

		if registered {
			w.updateAlarmCondition(ctx, alarm, cond)
		} else {
			w.registerAlarm(ctx, rec, cond)
		}
	}

	w.mu.Lock()
	for id := range w.alarms {
		if !enabled[id] {
			delete(w.alarms, id)
			log.Printf("[watcher] unregistered alarm %d", id)
		}
	}
	count := len(w.alarms)
	w.mu.Unlock()

	if w.OnAlarmCount != nil {
		w.OnAlarmCount(count)
	}
}

// registerAlarm sets up cache storage, backfills history, records the alarm,
// and spawns the market's watch tasks if they are not already running.
func (w *Watcher) registerAlarm(ctx context.Context, rec model.AlarmRecord, cond model.Condition) {
	symbol := rec.Symbol()
	for _, interval := range cond.WatchedIntervals() {
		w.cache.CreateCandleStorage(rec.ExchangeID, symbol, interval)
	}
	w.cache.CreateOrderBookStorage(rec.ExchangeID, symbol)
	w.fetchPreData(ctx, rec.ExchangeID, symbol, cond)

	key := taskKey{rec.ExchangeID, symbol}
	w.mu.Lock()
	w.alarms[rec.AlarmID] = &Alarm{Record: rec, condition: cond}
	startTrade := !w.tradeTasks[key]
	if startTrade {
		w.tradeTasks[key] = true
	}
	startOB := !w.obTasks[key]
	if startOB {
		w.obTasks[key] = true
	}
	w.mu.Unlock()

	if startOB {
		go w.runOrderBookTask(ctx, rec.ExchangeID, symbol)
	}
	if startTrade {
		go w.runTradeTask(ctx, rec.ExchangeID, symbol)
	}
	log.Printf("[watcher] registered alarm %d (%s %s)", rec.AlarmID, rec.ExchangeID, symbol)
}

// updateAlarmCondition applies an edited condition to a registered alarm and
// backfills candle data for any newly watched interval.
func (w *Watcher) updateAlarmCondition(ctx context.Context, alarm *Alarm, cond model.Condition) {
	if alarm.Condition().Equal(cond) {
		return
	}
	alarm.setCondition(cond)

	rec := alarm.Record
	symbol := rec.Symbol()
	for _, interval := range cond.WatchedIntervals() {
		w.cache.CreateCandleStorage(rec.ExchangeID, symbol, interval)
	}
	w.fetchPreData(ctx, rec.ExchangeID, symbol, cond)
	log.Printf("[watcher] updated condition of alarm %d", rec.AlarmID)
}

// fetchPreData backfills historical candles for every watched interval and
// seeds the order-book snapshot, over a throwaway exchange handle. Failures
// are logged and skipped; evaluation degrades until live data fills the gap.
func (w *Watcher) fetchPreData(ctx context.Context, exchangeID model.ExchangeID, symbol string, cond model.Condition) {
	ex, err := w.factory(exchangeID)
	if err != nil {
		log.Printf("[watcher] backfill %s %s: %v", exchangeID, symbol, err)
		if w.OnBackfillError != nil {
			w.OnBackfillError()
		}
		return
	}
	defer ex.Close()

	for _, interval := range cond.WatchedIntervals() {
		rows, err := ex.FetchOHLCV(ctx, symbol, interval, w.backfillLimit)
		if err != nil {
			log.Printf("[watcher] backfill %s %s %s: %v", exchangeID, symbol, interval, err)
			if w.OnBackfillError != nil {
				w.OnBackfillError()
			}
			continue
		}
		added := 0
		for _, row := range rows {
			start := interval.Truncate(time.UnixMilli(row.Timestamp).UTC())
			candle := model.NewCandle(exchangeID, symbol, start, interval)
			candle.SetOHLC(row.Open, row.High, row.Low, row.Close)
			if w.cache.AddCandle(candle) {
				added++
			}
		}
		log.Printf("[watcher] backfilled %d/%d %s candles for %s %s", added, len(rows), interval, exchangeID, symbol)
	}

	ob, err := ex.FetchOrderBook(ctx, symbol, w.orderBookLimit)
	if err != nil {
		log.Printf("[watcher] order book backfill %s %s: %v", exchangeID, symbol, err)
		if w.OnBackfillError != nil {
			w.OnBackfillError()
		}
		return
	}
	w.cache.CacheOrderBook(ob, exchangeID, symbol)
}

// alarmsFor returns the registered alarms watching (exchange, symbol).
func (w *Watcher) alarmsFor(exchange model.ExchangeID, symbol string) []*Alarm {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []*Alarm
	for _, alarm := range w.alarms {
		if alarm.Record.ExchangeID == exchange && alarm.Record.Symbol() == symbol {
			out = append(out, alarm)
		}
	}
	return out
}

// isSymbolWatched reports whether any registered alarm references the market.
func (w *Watcher) isSymbolWatched(exchange model.ExchangeID, symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, alarm := range w.alarms {
		if alarm.Record.ExchangeID == exchange && alarm.Record.Symbol() == symbol {
			return true
		}
	}
	return false
}

// isIntervalWatched reports whether any alarm on the market watches interval.
func (w *Watcher) isIntervalWatched(exchange model.ExchangeID, symbol string, interval model.Interval) bool {
	for _, alarm := range w.alarmsFor(exchange, symbol) {
		for _, watched := range alarm.Condition().WatchedIntervals() {
			if watched == interval {
				return true
			}
		}
	}
	return false
}

// lastCandleTimestamp returns the timestamp of the newest candle at the
// shortest of the given intervals. ok is false when no candle is cached yet.
func (w *Watcher) lastCandleTimestamp(exchange model.ExchangeID, symbol string, intervals []model.Interval) (int64, bool) {
	shortest, ok := model.ShortestInterval(intervals)
	if !ok {
		return 0, false
	}
	last, ok := w.cache.LastCandle(exchange, symbol, shortest)
	if !ok {
		return 0, false
	}
	return last.Timestamp(), true
}
