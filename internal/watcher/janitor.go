package watcher

import (
	"context"
	"log"
	"time"

	"alarm-enginev1/internal/model"
)

// runJanitor drops cache storage no registered alarm references anymore:
// whole symbols, single interval rings, and order-book slots. It waits out a
// warmup before the first sweep so a slow start never races registration.
func (w *Watcher) runJanitor(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.janitorWarmup):
	}

	ticker := time.NewTicker(w.janitorPeriod)
	defer ticker.Stop()

	for {
		w.sweepCache()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) sweepCache() {
	for _, exchangeID := range model.ExchangeIDs {
		for _, symbol := range w.cache.Symbols(exchangeID) {
			if !w.isSymbolWatched(exchangeID, symbol) {
				w.cache.RemoveSymbol(exchangeID, symbol)
				log.Printf("[watcher] janitor dropped candle cache for %s %s", exchangeID, symbol)
				continue
			}
			for _, interval := range w.cache.Intervals(exchangeID, symbol) {
				if !w.isIntervalWatched(exchangeID, symbol, interval) {
					w.cache.RemoveInterval(exchangeID, symbol, interval)
					log.Printf("[watcher] janitor dropped %s candles for %s %s", interval, exchangeID, symbol)
				}
			}
		}
		for _, symbol := range w.cache.OrderBookSymbols(exchangeID) {
			if !w.isSymbolWatched(exchangeID, symbol) {
				w.cache.RemoveOrderBook(exchangeID, symbol)
				log.Printf("[watcher] janitor dropped order book for %s %s", exchangeID, symbol)
			}
		}
	}
}
