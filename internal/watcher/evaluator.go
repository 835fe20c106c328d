package watcher

import (
	"time"

	"alarm-enginev1/internal/indicator"
	"alarm-enginev1/internal/model"
)

// WhaleLevels are the order-book levels whose notional value reached the
// whale condition's quantity.
type WhaleLevels struct {
	Bids []model.Level
	Asks []model.Level
}

// CheckResult is the outcome of evaluating one trade against one alarm.
// Sub-condition fields are populated only when the sub-condition is
// configured and satisfied; they feed the alert message.
type CheckResult struct {
	IsAlarmTriggered bool
	Whales           *WhaleLevels
	Rsi              *float64
	CrossedBand      string // "upper_band" or "lower_band", "" if none
	Trade            model.Trade
}

// checkAlarm evaluates the trade against the condition's configured
// sub-conditions in order: whale, tick, RSI, Bollinger band. The first
// failing sub-condition short-circuits with IsAlarmTriggered false. A
// non-nil error means the evaluation could not run (insufficient candle
// data) and the caller skips the alarm for this trade.
func (w *Watcher) checkAlarm(cond model.Condition, rec model.AlarmRecord, trade model.Trade) (CheckResult, error) {
	result := CheckResult{Trade: trade}
	symbol := rec.Symbol()

	if cond.Whale != nil {
		ob, ok := w.cache.OrderBook(rec.ExchangeID, symbol)
		if !ok {
			return result, nil
		}
		var levels WhaleLevels
		for _, level := range ob.Bids {
			if level.Notional() >= cond.Whale.Quantity {
				levels.Bids = append(levels.Bids, level)
			}
		}
		for _, level := range ob.Asks {
			if level.Notional() >= cond.Whale.Quantity {
				levels.Asks = append(levels.Asks, level)
			}
		}
		if len(levels.Bids) == 0 && len(levels.Asks) == 0 {
			return result, nil
		}
		result.Whales = &levels
	}

	if cond.Tick != nil {
		if trade.Amount < cond.Tick.Quantity {
			return result, nil
		}
	}

	if cond.Rsi != nil {
		since := time.Now().Unix() - int64(cond.Rsi.Length)*86400
		candles := w.cache.GetCandles(rec.ExchangeID, symbol, cond.Rsi.Interval, since, 0)
		closes := make([]float64, len(candles))
		for i := range candles {
			closes[i] = candles[i].Close()
		}
		value, err := indicator.RSI(closes, cond.Rsi.Length)
		if err != nil {
			return result, err
		}
		if value < cond.Rsi.UpperBound && value > cond.Rsi.LowerBound {
			return result, nil
		}
		result.Rsi = &value
	}

	if bb := cond.BollingerBand; bb != nil {
		candles := w.cache.GetCandles(rec.ExchangeID, symbol, bb.Interval, 0, 0)
		if len(candles) < bb.Length {
			return result, nil
		}
		candles = candles[len(candles)-bb.Length:]
		closes := make([]float64, len(candles))
		for i := range candles {
			closes[i] = candles[i].Close()
		}
		_, upper, lower, err := indicator.BollingerBand(closes, bb.Coefficient)
		if err != nil {
			return result, err
		}
		// The upper band wins when both are configured and crossed.
		switch {
		case bb.OnOverUpperBand && trade.Price >= upper:
			result.CrossedBand = "upper_band"
		case bb.OnUnderLowerBand && trade.Price <= lower:
			result.CrossedBand = "lower_band"
		default:
			return result, nil
		}
	}

	result.IsAlarmTriggered = true
	return result, nil
}
