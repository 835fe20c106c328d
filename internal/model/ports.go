package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the watcher core from its external collaborators
// (relational alarm storage, messaging transport, exchange connectivity).

// AlarmStore yields the user-configured alarm set.
type AlarmStore interface {
	// SelectEnabledAlarms returns all alarm rows with is_enabled = true.
	SelectEnabledAlarms(ctx context.Context) ([]AlarmRecord, error)

	// SelectCondition returns the condition record for an alarm.
	SelectCondition(ctx context.Context, alarmID int64) (Condition, error)

	// Close releases underlying resources.
	Close() error
}

// Notifier delivers alert text to a messaging channel.
type Notifier interface {
	Send(ctx context.Context, channelID int64, text string) error
}

// Exchange is the market-data capability set the watcher consumes.
// A handle is owned by a single task; it is not goroutine-safe.
type Exchange interface {
	// WatchTrades blocks for the next batch of trades on the symbol's
	// stream. A streaming-read timeout is reported as ErrRequestTimeout
	// (via errors.Is); the caller closes and recreates the handle.
	WatchTrades(ctx context.Context, symbol string) ([]Trade, error)

	// WatchOrderBook blocks until the internal order-book snapshot for the
	// symbol has been refreshed from the depth stream.
	WatchOrderBook(ctx context.Context, symbol string, limit int) error

	// OrderBook returns the latest snapshot maintained by WatchOrderBook.
	OrderBook(symbol string) (OrderBook, bool)

	// FetchOHLCV returns up to limit historical candles for the interval.
	FetchOHLCV(ctx context.Context, symbol string, interval Interval, limit int) ([]OHLCV, error)

	// FetchOrderBook returns a one-shot order-book snapshot.
	FetchOrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error)

	// Close tears down any open connections.
	Close() error
}

// ExchangeFactory opens a fresh handle to the given exchange. Watch tasks
// use it to recreate handles after streaming timeouts.
type ExchangeFactory func(id ExchangeID) (Exchange, error)
