package cache

import (
	"testing"
	"time"

	"alarm-enginev1/internal/model"
)

func TestRollBuckets_CreatesCandleOnBoundary(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)

	start := time.Unix(1700000040, 0).UTC() // minute-aligned
	live := model.NewCandle(model.Binance, "BTC/USDT", start, oneMinute)
	c.AddCandle(live)
	c.CacheTrade(model.Trade{
		Symbol:    "BTC/USDT",
		Timestamp: start.Add(5*time.Second).UnixNano() / int64(time.Millisecond),
		Price:     42.0,
		Amount:    1.0,
	}, model.Binance)

	closed := c.RollBuckets(start.Add(time.Minute))
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed candle, got %d", len(closed))
	}
	if closed[0].Close() != 42.0 {
		t.Errorf("expected frozen close=42, got %v", closed[0].Close())
	}

	candles := c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles after roll, got %d", len(candles))
	}
	fresh := candles[1]
	if !fresh.Start.Equal(start.Add(time.Minute)) {
		t.Errorf("new bucket start = %v, want %v", fresh.Start, start.Add(time.Minute))
	}
	// The empty bucket carries the previous close.
	if fresh.Open() != 42.0 || fresh.Close() != 42.0 {
		t.Errorf("expected carried-forward OHLC 42, got open=%v close=%v", fresh.Open(), fresh.Close())
	}
}

func TestRollBuckets_OffBoundaryIsNoop(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)
	start := time.Unix(1700000040, 0).UTC()
	c.AddCandle(model.NewCandle(model.Binance, "BTC/USDT", start, oneMinute))

	closed := c.RollBuckets(start.Add(30 * time.Second))
	if len(closed) != 0 {
		t.Fatalf("expected no closed candles off boundary, got %d", len(closed))
	}
	if got := len(c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)); got != 1 {
		t.Errorf("expected 1 candle, got %d", got)
	}
}

func TestRollBuckets_TwoEmptyBoundaries(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)
	start := time.Unix(1700000040, 0).UTC()
	c.AddCandle(model.NewCandle(model.Binance, "BTC/USDT", start, oneMinute))

	// Two interval boundaries pass with no trades at all.
	c.RollBuckets(start.Add(1 * time.Minute))
	c.RollBuckets(start.Add(2 * time.Minute))

	candles := c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	for i, want := range []time.Time{start, start.Add(time.Minute), start.Add(2 * time.Minute)} {
		if !candles[i].Start.Equal(want) {
			t.Errorf("candle %d start = %v, want %v", i, candles[i].Start, want)
		}
	}
}

func TestRollBuckets_EmptyRingStillSafe(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)

	// No candles cached yet (backfill failed). The roll must not panic and
	// should create the first bucket.
	closed := c.RollBuckets(time.Unix(1700000040, 0).UTC())
	if len(closed) != 0 {
		t.Fatalf("expected no closed candles, got %d", len(closed))
	}
	if got := len(c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)); got != 1 {
		t.Errorf("expected first bucket to be created, got %d candles", got)
	}
}
