package watcher

import (
	"context"
	"errors"
	"log"
	"time"

	"alarm-enginev1/internal/exchange"
	"alarm-enginev1/internal/model"
)

// orderBookPollDelay throttles the order-book task between stream reads.
const orderBookPollDelay = 100 * time.Millisecond

// runTradeTask streams trades for one market, caches them, and evaluates
// every alarm on the market against each trade. The task terminates itself
// once no registered alarm references the market, dropping the market's
// candle cache on the way out.
func (w *Watcher) runTradeTask(ctx context.Context, exchangeID model.ExchangeID, symbol string) {
	defer w.taskDone(w.tradeTasks, exchangeID, symbol)

	ex, err := w.factory(exchangeID)
	if err != nil {
		log.Printf("[watcher] trade task %s %s: %v", exchangeID, symbol, err)
		return
	}

	log.Printf("[watcher] trade task started for %s %s", exchangeID, symbol)
	for {
		if ctx.Err() != nil {
			ex.Close()
			return
		}
		if !w.isSymbolWatched(exchangeID, symbol) {
			w.cache.RemoveSymbol(exchangeID, symbol)
			ex.Close()
			log.Printf("[watcher] trade task stopped for %s %s", exchangeID, symbol)
			return
		}

		trades, err := ex.WatchTrades(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				ex.Close()
				return
			}
			// Any stream failure gets a fresh handle; timeouts are the
			// expected case on quiet markets.
			if !errors.Is(err, exchange.ErrRequestTimeout) {
				log.Printf("[watcher] trade stream %s %s: %v", exchangeID, symbol, err)
			}
			ex.Close()
			if w.OnReconnect != nil {
				w.OnReconnect(exchangeID)
			}
			if ex, err = w.factory(exchangeID); err != nil {
				log.Printf("[watcher] trade task %s %s: reconnect: %v", exchangeID, symbol, err)
				return
			}
			continue
		}

		for _, trade := range trades {
			w.processTrade(ctx, exchangeID, symbol, trade)
		}
	}
}

// processTrade caches one trade and runs the full alarm pipeline for it:
// per-candle suppression check, condition evaluation, and alert dispatch.
func (w *Watcher) processTrade(ctx context.Context, exchangeID model.ExchangeID, symbol string, trade model.Trade) {
	w.cache.CacheTrade(trade, exchangeID)
	if w.OnTrade != nil {
		w.OnTrade(exchangeID)
	}

	for _, alarm := range w.alarmsFor(exchangeID, symbol) {
		cond := alarm.Condition()
		intervals := cond.WatchedIntervals()

		// One alert per candle: skip if this alarm already fired on the
		// current candle of its shortest watched interval.
		if len(intervals) > 0 {
			if ts, ok := w.lastCandleTimestamp(exchangeID, symbol, intervals); ok && ts == alarm.AlertedCandleTS() {
				continue
			}
		}

		start := time.Now()
		result, err := w.checkAlarm(cond, alarm.Record, trade)
		if w.OnEvalDuration != nil {
			w.OnEvalDuration(time.Since(start))
		}
		if err != nil || !result.IsAlarmTriggered {
			continue
		}

		if err := w.dispatch(ctx, alarm, result); err != nil {
			// Failed delivery does not mark the candle; the next matching
			// trade retries.
			if w.OnAlertError != nil {
				w.OnAlertError()
			}
			continue
		}
		if len(intervals) > 0 {
			if ts, ok := w.lastCandleTimestamp(exchangeID, symbol, intervals); ok {
				alarm.setAlertedCandleTS(ts)
			}
		}
	}
}

// runOrderBookTask keeps the market's order-book snapshot fresh from the
// depth stream. Terminates itself once the market is unreferenced, dropping
// the order-book slot.
func (w *Watcher) runOrderBookTask(ctx context.Context, exchangeID model.ExchangeID, symbol string) {
	defer w.taskDone(w.obTasks, exchangeID, symbol)

	ex, err := w.factory(exchangeID)
	if err != nil {
		log.Printf("[watcher] order book task %s %s: %v", exchangeID, symbol, err)
		return
	}

	for {
		if ctx.Err() != nil {
			ex.Close()
			return
		}

		if err := ex.WatchOrderBook(ctx, symbol, w.orderBookLimit); err != nil {
			if ctx.Err() != nil {
				ex.Close()
				return
			}
			if !errors.Is(err, exchange.ErrRequestTimeout) {
				log.Printf("[watcher] depth stream %s %s: %v", exchangeID, symbol, err)
			}
			ex.Close()
			if w.OnReconnect != nil {
				w.OnReconnect(exchangeID)
			}
			if ex, err = w.factory(exchangeID); err != nil {
				log.Printf("[watcher] order book task %s %s: reconnect: %v", exchangeID, symbol, err)
				return
			}
			continue
		}

		if !w.isSymbolWatched(exchangeID, symbol) {
			w.cache.RemoveOrderBook(exchangeID, symbol)
			ex.Close()
			log.Printf("[watcher] order book task stopped for %s %s", exchangeID, symbol)
			return
		}

		if ob, ok := ex.OrderBook(symbol); ok {
			w.cache.CacheOrderBook(ob, exchangeID, symbol)
		}

		select {
		case <-ctx.Done():
			ex.Close()
			return
		case <-time.After(orderBookPollDelay):
		}
	}
}

// taskDone clears the market's slot in the given task map so a later
// registration can spawn a fresh task.
func (w *Watcher) taskDone(tasks map[taskKey]bool, exchangeID model.ExchangeID, symbol string) {
	w.mu.Lock()
	delete(tasks, taskKey{exchangeID, symbol})
	w.mu.Unlock()
}
