package cache

import (
	"context"
	"time"

	"alarm-enginev1/internal/model"
)

// defaultBoundaryPeriod is how often the boundary task samples the wall
// clock. The roll itself runs at most once per second.
const defaultBoundaryPeriod = 300 * time.Millisecond

// RollBuckets finalizes and creates candles for every storage whose interval
// boundary falls on now (now % interval == 0 in unix seconds): the previous
// live candle's trades are frozen into OHLC and a fresh candle is appended
// for the new bucket. Candle creation is decoupled from trade arrival so an
// interval closes even without trades; a bucket with no trades carries the
// previous close forward as its OHLC.
//
// Returns snapshots of the candles that were finalized.
func (c *Cache) RollBuckets(now time.Time) []model.Candle {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowTS := now.Unix()
	var closed []model.Candle

	for exchange, symbols := range c.candles {
		for symbol, rings := range symbols {
			for interval, r := range rings {
				sec := interval.Seconds()
				if sec <= 0 || nowTS%sec != 0 {
					continue
				}
				var prevClose float64
				if last := r.last(); last != nil {
					last.ClearTrades()
					prevClose = last.Close()
					closed = append(closed, last.Snapshot())
				}
				candle := model.NewCandle(exchange, symbol, interval.Truncate(now), interval)
				candle.SetOHLC(prevClose, prevClose, prevClose, prevClose)
				c.addCandleLocked(candle)
			}
		}
	}
	return closed
}

// RunBoundaryTask samples the wall clock every period (default 300 ms) and
// rolls interval buckets whenever the current unix second has changed since
// the previous sample. Blocks until ctx is cancelled.
func (c *Cache) RunBoundaryTask(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = defaultBoundaryPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	lastSecond := time.Now().Unix()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if now.Unix() == lastSecond {
				continue
			}
			lastSecond = now.Unix()
			closed := c.RollBuckets(now)
			if c.OnCandleClosed != nil {
				for _, candle := range closed {
					c.OnCandleClosed(candle)
				}
			}
		}
	}
}
