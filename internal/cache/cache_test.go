package cache

import (
	"testing"
	"time"

	"alarm-enginev1/internal/model"
)

var oneMinute = model.Interval{Length: 1, Timeframe: "m"}

func minuteCandle(t *testing.T, symbol string, start time.Time) *model.Candle {
	t.Helper()
	return model.NewCandle(model.Binance, symbol, start, oneMinute)
}

func TestAddCandle_DuplicateGuard(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)

	start := time.Unix(1700000040, 0).UTC()
	if !c.AddCandle(minuteCandle(t, "BTC/USDT", start)) {
		t.Fatal("first add should succeed")
	}
	if c.AddCandle(minuteCandle(t, "BTC/USDT", start)) {
		t.Error("duplicate timestamp should be rejected")
	}
	if got := len(c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)); got != 1 {
		t.Errorf("expected 1 candle, got %d", got)
	}
}

func TestAddCandle_RingEviction(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)

	base := time.Unix(1700000040, 0).UTC()
	for i := 0; i < candleStorageLimit+1; i++ {
		if !c.AddCandle(minuteCandle(t, "BTC/USDT", base.Add(time.Duration(i)*time.Minute))) {
			t.Fatalf("add %d failed", i)
		}
	}

	candles := c.GetCandles(model.Binance, "BTC/USDT", oneMinute, 0, 0)
	if len(candles) != candleStorageLimit {
		t.Fatalf("expected %d candles after eviction, got %d", candleStorageLimit, len(candles))
	}
	// The 101st insert evicts the oldest.
	if candles[0].Start.Equal(base) {
		t.Error("oldest candle should have been evicted")
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Start.Before(candles[i].Start) {
			t.Fatalf("candles not strictly ascending at index %d", i)
		}
	}
}

func TestGetCandles_RangeFilter(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)

	base := time.Unix(1700000040, 0).UTC()
	for i := 0; i < 5; i++ {
		c.AddCandle(minuteCandle(t, "BTC/USDT", base.Add(time.Duration(i)*time.Minute)))
	}

	since := base.Add(1 * time.Minute).Unix()
	until := base.Add(3 * time.Minute).Unix()
	candles := c.GetCandles(model.Binance, "BTC/USDT", oneMinute, since, until)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles in [since, until), got %d", len(candles))
	}
	if candles[0].Start.Unix() != since {
		t.Errorf("since bound should be inclusive")
	}
	if candles[len(candles)-1].Start.Unix() >= until {
		t.Errorf("until bound should be exclusive")
	}
}

func TestCacheTrade_AppendsToLastCandleOfEveryInterval(t *testing.T) {
	fiveMinutes := model.Interval{Length: 5, Timeframe: "m"}
	c := New()
	c.CreateCandleStorage(model.Upbit, "BTC/KRW", oneMinute)
	c.CreateCandleStorage(model.Upbit, "BTC/KRW", fiveMinutes)

	start := time.Unix(1700000100, 0).UTC()
	c.AddCandle(model.NewCandle(model.Upbit, "BTC/KRW", start, oneMinute))
	c.AddCandle(model.NewCandle(model.Upbit, "BTC/KRW", start, fiveMinutes))

	trade := model.Trade{
		Symbol:    "BTC/KRW:KRW", // settle suffix must be stripped
		Timestamp: start.Add(10*time.Second).UnixNano() / int64(time.Millisecond),
		Price:     100.0,
		Amount:    2.0,
	}
	c.CacheTrade(trade, model.Upbit)

	for _, iv := range []model.Interval{oneMinute, fiveMinutes} {
		last, ok := c.LastCandle(model.Upbit, "BTC/KRW", iv)
		if !ok {
			t.Fatalf("missing last candle for %s", iv)
		}
		if last.Close() != 100.0 {
			t.Errorf("interval %s: expected close=100 from cached trade, got %v", iv, last.Close())
		}
		if got := iv.Truncate(trade.Time()); !got.Equal(last.Start) {
			t.Errorf("interval %s: trade bucket %v != candle start %v", iv, got, last.Start)
		}
	}
}

func TestCacheTrade_NoCandleStorageIsNoop(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "ETH/USDT", oneMinute)
	// Ring exists but is empty: the trade must not create a candle.
	c.CacheTrade(model.Trade{Symbol: "ETH/USDT", Price: 1}, model.Binance)
	if got := len(c.GetCandles(model.Binance, "ETH/USDT", oneMinute, 0, 0)); got != 0 {
		t.Errorf("expected no candles, got %d", got)
	}
}

func TestRemoveOps(t *testing.T) {
	c := New()
	c.CreateCandleStorage(model.Binance, "BTC/USDT", oneMinute)
	c.CreateOrderBookStorage(model.Binance, "BTC/USDT")

	c.RemoveInterval(model.Binance, "BTC/USDT", oneMinute)
	if got := c.Intervals(model.Binance, "BTC/USDT"); len(got) != 0 {
		t.Errorf("expected no intervals after removal, got %v", got)
	}

	c.RemoveSymbol(model.Binance, "BTC/USDT")
	if got := c.Symbols(model.Binance); len(got) != 0 {
		t.Errorf("expected no symbols after removal, got %v", got)
	}

	c.RemoveOrderBook(model.Binance, "BTC/USDT")
	if _, ok := c.OrderBook(model.Binance, "BTC/USDT"); ok {
		t.Error("expected order-book slot to be gone")
	}
}
