package exchange

import (
	"testing"

	"alarm-enginev1/internal/model"
)

func TestMarketCodes(t *testing.T) {
	if got := binancePair("BTC/USDT"); got != "BTCUSDT" {
		t.Errorf("binancePair = %q, want BTCUSDT", got)
	}
	if got := binancePair("BTC/USDT:USDT"); got != "BTCUSDT" {
		t.Errorf("binancePair with settle suffix = %q, want BTCUSDT", got)
	}
	if got := upbitMarket("BTC/KRW"); got != "KRW-BTC" {
		t.Errorf("upbitMarket = %q, want KRW-BTC", got)
	}
	if got := upbitMarket("ETH/KRW:KRW"); got != "KRW-ETH" {
		t.Errorf("upbitMarket with settle suffix = %q, want KRW-ETH", got)
	}
}

func TestParseBinanceTrade(t *testing.T) {
	data := []byte(`{"e":"trade","E":1700000000123,"s":"BTCUSDT","T":1700000000100,"p":"43250.10","q":"0.250"}`)
	trade, err := parseBinanceTrade(data, "BTC/USDT")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if trade.Symbol != "BTC/USDT" {
		t.Errorf("symbol = %q", trade.Symbol)
	}
	if trade.Timestamp != 1700000000100 {
		t.Errorf("timestamp = %d", trade.Timestamp)
	}
	if trade.Price != 43250.10 || trade.Amount != 0.250 {
		t.Errorf("price/amount = %v/%v", trade.Price, trade.Amount)
	}
	if want := 43250.10 * 0.250; trade.Cost != want {
		t.Errorf("cost = %v, want %v", trade.Cost, want)
	}

	if _, err := parseBinanceTrade([]byte(`{"e":"aggTrade"}`), "BTC/USDT"); err == nil {
		t.Error("expected error for non-trade event")
	}
}

func TestParseBinanceDepth(t *testing.T) {
	data := []byte(`{"lastUpdateId":160,"bids":[["100.0","5.0"],["99.5","2.0"]],"asks":[["100.5","1.0"]]}`)
	ob, err := parseBinanceDepth(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ob.Bids) != 2 || len(ob.Asks) != 1 {
		t.Fatalf("levels = %d bids / %d asks", len(ob.Bids), len(ob.Asks))
	}
	if ob.Bids[0].Price != 100.0 || ob.Bids[0].Amount != 5.0 {
		t.Errorf("top bid = %+v", ob.Bids[0])
	}
	if ob.Asks[0].Notional() != 100.5 {
		t.Errorf("ask notional = %v", ob.Asks[0].Notional())
	}

	if _, err := parseBinanceDepth([]byte(`{"bids":[["100.0"]],"asks":[]}`)); err == nil {
		t.Error("expected error for malformed level")
	}
}

func TestParseBinanceKlines(t *testing.T) {
	data := []byte(`[
		[1700000040000,"100.0","105.0","99.0","104.0","12.5",1700000099999,"1300.0",10,"6.0","625.0","0"],
		[1700000100000,"104.0","106.0","103.0","105.5","8.0",1700000159999,"840.0",7,"4.0","420.0","0"]
	]`)
	rows, err := parseBinanceKlines(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	first := rows[0]
	if first.Timestamp != 1700000040000 {
		t.Errorf("timestamp = %d", first.Timestamp)
	}
	if first.Open != 100.0 || first.High != 105.0 || first.Low != 99.0 || first.Close != 104.0 || first.Volume != 12.5 {
		t.Errorf("ohlcv = %+v", first)
	}
	if rows[0].Timestamp >= rows[1].Timestamp {
		t.Error("klines should be ascending")
	}
}

func TestDepthStreamLevels(t *testing.T) {
	cases := map[int]int{1: 5, 5: 5, 6: 10, 10: 10, 11: 20, 100: 20}
	for limit, want := range cases {
		if got := depthStreamLevels(limit); got != want {
			t.Errorf("depthStreamLevels(%d) = %d, want %d", limit, got, want)
		}
	}
}

func TestParseUpbitTrade(t *testing.T) {
	data := []byte(`{"type":"trade","code":"KRW-BTC","trade_price":52000000.0,"trade_volume":0.01,"timestamp":1700000000500}`)
	trade, err := parseUpbitTrade(data, "BTC/KRW")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if trade.Symbol != "BTC/KRW" {
		t.Errorf("symbol = %q", trade.Symbol)
	}
	if trade.Price != 52000000.0 || trade.Amount != 0.01 {
		t.Errorf("price/amount = %v/%v", trade.Price, trade.Amount)
	}
	if want := 52000000.0 * 0.01; trade.Cost != want {
		t.Errorf("cost = %v, want %v", trade.Cost, want)
	}

	if _, err := parseUpbitTrade([]byte(`{"type":"ticker"}`), "BTC/KRW"); err == nil {
		t.Error("expected error for non-trade message")
	}
}

func TestParseUpbitOrderBook(t *testing.T) {
	data := []byte(`{"type":"orderbook","code":"KRW-BTC","orderbook_units":[
		{"ask_price":52010000.0,"bid_price":52000000.0,"ask_size":0.5,"bid_size":1.2},
		{"ask_price":52020000.0,"bid_price":51990000.0,"ask_size":0.3,"bid_size":0.8},
		{"ask_price":52030000.0,"bid_price":51980000.0,"ask_size":0.1,"bid_size":0.4}
	]}`)
	ob, err := parseUpbitOrderBook(data, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ob.Bids) != 2 || len(ob.Asks) != 2 {
		t.Fatalf("limit not applied: %d bids / %d asks", len(ob.Bids), len(ob.Asks))
	}
	if ob.Bids[0].Price != 52000000.0 || ob.Asks[0].Price != 52010000.0 {
		t.Errorf("top of book = bid %v / ask %v", ob.Bids[0].Price, ob.Asks[0].Price)
	}
}

func TestParseUpbitCandles(t *testing.T) {
	// Upbit responds newest first.
	data := []byte(`[
		{"market":"KRW-BTC","candle_date_time_utc":"2023-11-14T22:15:00","opening_price":104.0,"high_price":106.0,"low_price":103.0,"trade_price":105.5,"candle_acc_trade_volume":8.0},
		{"market":"KRW-BTC","candle_date_time_utc":"2023-11-14T22:14:00","opening_price":100.0,"high_price":105.0,"low_price":99.0,"trade_price":104.0,"candle_acc_trade_volume":12.5}
	]`)
	rows, err := parseUpbitCandles(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Timestamp >= rows[1].Timestamp {
		t.Error("candles should be reversed to ascending")
	}
	if rows[0].Open != 100.0 || rows[0].Close != 104.0 {
		t.Errorf("oldest candle ohlc = %+v", rows[0])
	}
}

func TestUpbitTimeframes(t *testing.T) {
	u := newUpbit()
	cases := map[string]string{
		"1m":  "minutes/1",
		"10m": "minutes/10",
		"1h":  "minutes/60",
		"1d":  "days",
		"1w":  "weeks",
	}
	for tf, want := range cases {
		if got := u.timeframes[tf]; got != want {
			t.Errorf("timeframes[%q] = %q, want %q", tf, got, want)
		}
	}
}

func TestFactory(t *testing.T) {
	for _, id := range model.ExchangeIDs {
		ex, err := New(id)
		if err != nil {
			t.Fatalf("New(%v): %v", id, err)
		}
		if err := ex.Close(); err != nil {
			t.Errorf("Close(%v): %v", id, err)
		}
	}
	if _, err := New(model.ExchangeID(99)); err == nil {
		t.Error("expected error for unknown exchange id")
	}
}
