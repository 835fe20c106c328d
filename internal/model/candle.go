package model

import "time"

// Candle is a price aggregate over one interval bucket. While live it keeps
// the raw trades and derives OHLC from them on demand; ClearTrades freezes
// the OHLC and drops the buffer to reclaim memory.
type Candle struct {
	Exchange ExchangeID
	Symbol   string
	Start    time.Time // bucket start, interval-aligned
	Interval Interval
	Trades   []Trade

	open  float64
	high  float64
	low   float64
	close float64
}

// NewCandle creates an empty live candle for the given bucket.
func NewCandle(exchange ExchangeID, symbol string, start time.Time, interval Interval) *Candle {
	return &Candle{
		Exchange: exchange,
		Symbol:   symbol,
		Start:    start,
		Interval: interval,
	}
}

// SetOHLC seeds the frozen OHLC values. Used for backfilled candles and for
// carrying the previous close into boundary-created empty candles.
func (c *Candle) SetOHLC(open, high, low, close float64) {
	c.open, c.high, c.low, c.close = open, high, low, close
}

// AddTrade appends a trade to the live buffer.
func (c *Candle) AddTrade(t Trade) {
	c.Trades = append(c.Trades, t)
}

// ClearTrades materializes OHLC from the buffered trades and empties the
// buffer. After this the candle is finalized: OHLC no longer change.
func (c *Candle) ClearTrades() {
	c.open = c.Open()
	c.high = c.High()
	c.low = c.Low()
	c.close = c.Close()
	c.Trades = nil
}

// Open returns the first trade price, or the frozen value if no trades are
// buffered.
func (c *Candle) Open() float64 {
	if len(c.Trades) == 0 {
		return c.open
	}
	return c.Trades[0].Price
}

// High returns the maximum trade price, or the frozen value.
func (c *Candle) High() float64 {
	if len(c.Trades) == 0 {
		return c.high
	}
	high := c.Trades[0].Price
	for _, t := range c.Trades[1:] {
		if t.Price > high {
			high = t.Price
		}
	}
	return high
}

// Low returns the minimum trade price, or the frozen value.
func (c *Candle) Low() float64 {
	if len(c.Trades) == 0 {
		return c.low
	}
	low := c.Trades[0].Price
	for _, t := range c.Trades[1:] {
		if t.Price < low {
			low = t.Price
		}
	}
	return low
}

// Close returns the last trade price, or the frozen value.
func (c *Candle) Close() float64 {
	if len(c.Trades) == 0 {
		return c.close
	}
	return c.Trades[len(c.Trades)-1].Price
}

// Timestamp returns the bucket start in unix seconds.
func (c *Candle) Timestamp() int64 {
	return c.Start.Unix()
}

// TimeLimit is the exclusive upper bound of the bucket in unix seconds.
func (c *Candle) TimeLimit() int64 {
	return c.Start.Unix() + c.Interval.Seconds()
}

// Snapshot returns a value copy with OHLC resolved and no trade buffer,
// safe to hand out across goroutines.
func (c *Candle) Snapshot() Candle {
	return Candle{
		Exchange: c.Exchange,
		Symbol:   c.Symbol,
		Start:    c.Start,
		Interval: c.Interval,
		open:     c.Open(),
		high:     c.High(),
		low:      c.Low(),
		close:    c.Close(),
	}
}

// OHLCV is one row of exchange-provided historical candle data.
type OHLCV struct {
	Timestamp int64 // epoch milliseconds of the bucket start
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
