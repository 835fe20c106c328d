package sqlite

import (
	"context"
	"testing"

	"alarm-enginev1/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSelectEnabledAlarms(t *testing.T) {
	store := openTestStore(t)
	_, err := store.DB().Exec(`
		INSERT INTO alarm (alarm_id, channel_id, exchange_id, base_symbol, quote_symbol, is_enabled) VALUES
			(1, 100, 1, 'BTC', 'KRW', 1),
			(2, 100, 2, 'ETH', 'USDT', 0),
			(3, 200, 2, 'BTC', 'USDT', 1)
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	records, err := store.SelectEnabledAlarms(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 enabled alarms, got %d", len(records))
	}
	if records[0].AlarmID != 1 || records[0].ExchangeID != model.Upbit || records[0].Symbol() != "BTC/KRW" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].AlarmID != 3 || records[1].ExchangeID != model.Binance {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestSelectEnabledAlarms_UnknownExchange(t *testing.T) {
	store := openTestStore(t)
	_, err := store.DB().Exec(`
		INSERT INTO alarm (alarm_id, channel_id, exchange_id, base_symbol, quote_symbol, is_enabled)
		VALUES (1, 100, 7, 'BTC', 'KRW', 1)
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.SelectEnabledAlarms(context.Background()); err == nil {
		t.Error("expected error for unknown exchange id")
	}
}

func TestSelectCondition(t *testing.T) {
	store := openTestStore(t)
	_, err := store.DB().Exec(`
		INSERT INTO condition (alarm_id, whale, tick, rsi, bollinger_band) VALUES
			(1, '{"quantity":100000000}', NULL, NULL, NULL),
			(2, NULL, '{"quantity":5.0}',
				'{"length":14,"upper_bound":70,"lower_bound":30,"interval":{"length":1,"timeframe":"h"}}',
				'{"length":20,"coefficient":2.0,"on_over_upper_band":true,"on_under_lower_band":false,"interval":{"length":15,"timeframe":"m"}}')
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx := context.Background()
	whaleOnly, err := store.SelectCondition(ctx, 1)
	if err != nil {
		t.Fatalf("select condition 1: %v", err)
	}
	if whaleOnly.Whale == nil || whaleOnly.Whale.Quantity != 100000000 {
		t.Errorf("whale = %+v", whaleOnly.Whale)
	}
	if whaleOnly.Tick != nil || whaleOnly.Rsi != nil || whaleOnly.BollingerBand != nil {
		t.Error("NULL columns must stay nil sub-conditions")
	}
	if got := whaleOnly.WatchedIntervals(); len(got) != 0 {
		t.Errorf("whale-only condition watches no intervals, got %v", got)
	}

	full, err := store.SelectCondition(ctx, 2)
	if err != nil {
		t.Fatalf("select condition 2: %v", err)
	}
	if full.Tick == nil || full.Tick.Quantity != 5.0 {
		t.Errorf("tick = %+v", full.Tick)
	}
	if full.Rsi == nil || full.Rsi.Length != 14 || full.Rsi.Interval.String() != "1h" {
		t.Errorf("rsi = %+v", full.Rsi)
	}
	if full.BollingerBand == nil || !full.BollingerBand.OnOverUpperBand || full.BollingerBand.Interval.String() != "15m" {
		t.Errorf("bollinger = %+v", full.BollingerBand)
	}
	if got := full.WatchedIntervals(); len(got) != 2 {
		t.Errorf("expected 2 watched intervals, got %v", got)
	}
}

func TestSelectCondition_Malformed(t *testing.T) {
	store := openTestStore(t)
	_, err := store.DB().Exec(`
		INSERT INTO condition (alarm_id, whale) VALUES (1, 'not json')
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.SelectCondition(context.Background(), 1); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestSelectCondition_MonthIntervalRejected(t *testing.T) {
	store := openTestStore(t)
	_, err := store.DB().Exec(`
		INSERT INTO condition (alarm_id, rsi)
		VALUES (1, '{"length":14,"upper_bound":70,"lower_bound":30,"interval":{"length":1,"timeframe":"M"}}')
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.SelectCondition(context.Background(), 1); err == nil {
		t.Error("expected error for month interval")
	}
}
