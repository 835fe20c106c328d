// Package cache is the bounded in-memory store for live candles and the
// latest order-book snapshots, indexed by (exchange, symbol, interval) for
// candles and (exchange, symbol) for order books.
//
// The cache is the only shared mutable state of the watcher core. A single
// mutex serializes access; no lock is ever held across I/O.
package cache

import (
	"sync"

	"alarm-enginev1/internal/model"
)

// Cache holds per-market candle rings and order-book slots.
type Cache struct {
	mu         sync.Mutex
	candles    map[model.ExchangeID]map[string]map[model.Interval]*ring
	orderBooks map[model.ExchangeID]map[string]model.OrderBook

	// OnCandleClosed, when set, is invoked (outside the lock) for every
	// candle finalized by the boundary roll. Used for the journal.
	OnCandleClosed func(model.Candle)
}

// New creates an empty cache with slots for every supported exchange.
func New() *Cache {
	c := &Cache{
		candles:    make(map[model.ExchangeID]map[string]map[model.Interval]*ring),
		orderBooks: make(map[model.ExchangeID]map[string]model.OrderBook),
	}
	for _, id := range model.ExchangeIDs {
		c.candles[id] = make(map[string]map[model.Interval]*ring)
		c.orderBooks[id] = make(map[string]model.OrderBook)
	}
	return c
}

// CreateCandleStorage allocates an empty ring for (exchange, symbol,
// interval) if absent. Idempotent.
func (c *Cache) CreateCandleStorage(exchange model.ExchangeID, symbol string, interval model.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbols := c.candles[exchange]
	if _, ok := symbols[symbol]; !ok {
		symbols[symbol] = make(map[model.Interval]*ring)
	}
	if _, ok := symbols[symbol][interval]; !ok {
		symbols[symbol][interval] = newRing(candleStorageLimit)
	}
}

// CreateOrderBookStorage allocates the latest-snapshot slot for (exchange,
// symbol) if absent. Idempotent.
func (c *Cache) CreateOrderBookStorage(exchange model.ExchangeID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	books := c.orderBooks[exchange]
	if _, ok := books[symbol]; !ok {
		books[symbol] = model.OrderBook{}
	}
}

// CacheOrderBook overwrites the snapshot slot for (exchange, symbol).
func (c *Cache) CacheOrderBook(ob model.OrderBook, exchange model.ExchangeID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orderBooks[exchange][symbol] = ob
}

// OrderBook returns the latest snapshot for (exchange, symbol).
func (c *Cache) OrderBook(exchange model.ExchangeID, symbol string) (model.OrderBook, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ob, ok := c.orderBooks[exchange][symbol]
	return ob, ok
}

// CacheTrade appends the trade to the last (live) candle of every interval
// ring watched for the trade's symbol. It never creates candles; empty rings
// are skipped. The symbol is derived from the trade, with any ":settle"
// suffix stripped.
func (c *Cache) CacheTrade(t model.Trade, exchange model.ExchangeID) {
	symbol := model.NormalizeSymbol(t.Symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.candles[exchange][symbol] {
		if last := r.last(); last != nil {
			last.AddTrade(t)
		}
	}
}

// AddCandle appends a candle to its (exchange, symbol, interval) ring.
// Returns false and leaves the ring untouched when a candle with the same
// timestamp already exists or the storage was never created.
func (c *Cache) AddCandle(candle *model.Candle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addCandleLocked(candle)
}

func (c *Cache) addCandleLocked(candle *model.Candle) bool {
	r, ok := c.candles[candle.Exchange][candle.Symbol][candle.Interval]
	if !ok {
		return false
	}
	return r.add(candle)
}

// GetCandles returns resolved-OHLC snapshots of the cached candles for
// (exchange, symbol, interval), ordered ascending, filtered by the half-open
// unix-second range [since, until). A bound <= 0 disables that side.
func (c *Cache) GetCandles(exchange model.ExchangeID, symbol string, interval model.Interval, since, until int64) []model.Candle {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.candles[exchange][symbol][interval]
	if !ok {
		return nil
	}
	return r.snapshot(since, until)
}

// LastCandle returns a snapshot of the most recent candle in the ring.
func (c *Cache) LastCandle(exchange model.ExchangeID, symbol string, interval model.Interval) (model.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.candles[exchange][symbol][interval]
	if !ok || r.len() == 0 {
		return model.Candle{}, false
	}
	return r.last().Snapshot(), true
}

// RemoveSymbol drops every candle ring of (exchange, symbol).
func (c *Cache) RemoveSymbol(exchange model.ExchangeID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.candles[exchange], symbol)
}

// RemoveInterval drops a single (exchange, symbol, interval) ring.
func (c *Cache) RemoveInterval(exchange model.ExchangeID, symbol string, interval model.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rings, ok := c.candles[exchange][symbol]; ok {
		delete(rings, interval)
	}
}

// RemoveOrderBook drops the order-book slot of (exchange, symbol).
func (c *Cache) RemoveOrderBook(exchange model.ExchangeID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.orderBooks[exchange], symbol)
}

// Symbols lists the symbols with candle storage on the exchange.
func (c *Cache) Symbols(exchange model.ExchangeID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.candles[exchange]))
	for symbol := range c.candles[exchange] {
		out = append(out, symbol)
	}
	return out
}

// OrderBookSymbols lists the symbols with an order-book slot on the exchange.
func (c *Cache) OrderBookSymbols(exchange model.ExchangeID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.orderBooks[exchange]))
	for symbol := range c.orderBooks[exchange] {
		out = append(out, symbol)
	}
	return out
}

// Intervals lists the interval rings kept for (exchange, symbol).
func (c *Cache) Intervals(exchange model.ExchangeID, symbol string) []model.Interval {
	c.mu.Lock()
	defer c.mu.Unlock()

	rings := c.candles[exchange][symbol]
	out := make([]model.Interval, 0, len(rings))
	for interval := range rings {
		out = append(out, interval)
	}
	return out
}
