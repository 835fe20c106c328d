package cache

import (
	"log"

	"alarm-enginev1/internal/model"
)

// candleStorageLimit caps each (exchange, symbol, interval) ring.
const candleStorageLimit = 100

// ring is a bounded, append-ordered candle window. Candles are kept strictly
// ascending by bucket start with unique timestamps; appending past the
// capacity evicts the oldest entry.
type ring struct {
	candles []*model.Candle
	cap     int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{cap: capacity}
}

// add appends a candle. Returns false without modifying the ring when a
// candle with the same timestamp already exists, or when the append would
// break ascending timestamp order.
func (r *ring) add(c *model.Candle) bool {
	ts := c.Timestamp()
	for _, have := range r.candles {
		if have.Timestamp() == ts {
			return false
		}
	}
	if n := len(r.candles); n > 0 && r.candles[n-1].Timestamp() > ts {
		log.Printf("[cache] rejecting out-of-order candle %s %s ts=%d", c.Symbol, c.Interval, ts)
		return false
	}
	if len(r.candles) >= r.cap {
		copy(r.candles, r.candles[1:])
		r.candles = r.candles[:len(r.candles)-1]
	}
	r.candles = append(r.candles, c)
	return true
}

// last returns the most recent candle, or nil for an empty ring.
func (r *ring) last() *model.Candle {
	if len(r.candles) == 0 {
		return nil
	}
	return r.candles[len(r.candles)-1]
}

func (r *ring) len() int {
	return len(r.candles)
}

// snapshot returns resolved-OHLC copies of the candles whose bucket start
// falls in the half-open unix-second range [since, until). A bound <= 0
// disables that side of the filter.
func (r *ring) snapshot(since, until int64) []model.Candle {
	out := make([]model.Candle, 0, len(r.candles))
	for _, c := range r.candles {
		ts := c.Timestamp()
		if since > 0 && ts < since {
			continue
		}
		if until > 0 && ts >= until {
			continue
		}
		out = append(out, c.Snapshot())
	}
	return out
}
