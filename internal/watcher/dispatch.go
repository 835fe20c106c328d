package watcher

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"alarm-enginev1/internal/model"
)

var crossedBandNames = map[string]string{
	"upper_band": "상단선",
	"lower_band": "하단선",
}

// dispatch sends the alert message for a triggered alarm, plus the whale
// ladder as a second message when whales were found. Returns the delivery
// error so the caller can decide whether to mark the candle as alerted.
func (w *Watcher) dispatch(ctx context.Context, alarm *Alarm, result CheckResult) error {
	rec := alarm.Record
	if err := w.notifier.Send(ctx, rec.ChannelID, buildAlertMessage(rec, result)); err != nil {
		log.Printf("[watcher] alarm %d: alert send failed: %v", rec.AlarmID, err)
		return err
	}
	if result.Whales != nil {
		if err := w.notifier.Send(ctx, rec.ChannelID, buildWhaleMessage(rec, result.Whales)); err != nil {
			log.Printf("[watcher] alarm %d: whale info send failed: %v", rec.AlarmID, err)
			return err
		}
	}

	if w.OnAlertSent != nil {
		w.OnAlertSent(model.AlertEvent{
			AlarmID:   rec.AlarmID,
			ChannelID: rec.ChannelID,
			Exchange:  rec.ExchangeID,
			Symbol:    rec.Symbol(),
			Message:   buildAlertMessage(rec, result),
			Timestamp: time.Now().Unix(),
		})
	}
	return nil
}

// buildAlertMessage renders the primary alert text: trade details plus the
// satisfied indicator sub-conditions.
func buildAlertMessage(rec model.AlarmRecord, result CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s 조건 돌파!\n", rec.ExchangeID.DisplayName(), rec.Symbol())
	fmt.Fprintf(&b, "가격: %s %s\n", formatNumber(result.Trade.Price, -1), rec.QuoteSymbol)
	fmt.Fprintf(&b, "거래량: %s %s\n", formatNumber(result.Trade.Amount, 4), rec.BaseSymbol)
	fmt.Fprintf(&b, "총 체결 금액: %s %s\n", formatNumber(result.Trade.Cost, 2), rec.QuoteSymbol)
	if result.Rsi != nil {
		fmt.Fprintf(&b, "RSI: %.2f\n", *result.Rsi)
	}
	if result.CrossedBand != "" {
		fmt.Fprintf(&b, "볼린저 밴드 %s 돌파!", crossedBandNames[result.CrossedBand])
	}
	return b.String()
}

// buildWhaleMessage renders the whale ladder: ask walls top-down, then bid
// walls.
func buildWhaleMessage(rec model.AlarmRecord, whales *WhaleLevels) string {
	var b strings.Builder
	b.WriteString("고래 정보\n")
	b.WriteString("=============\n매도벽\n")
	for i := len(whales.Asks) - 1; i >= 0; i-- {
		writeWhaleLevel(&b, rec, whales.Asks[i])
	}
	b.WriteString("=============\n매수벽\n")
	for _, level := range whales.Bids {
		writeWhaleLevel(&b, rec, level)
	}
	return b.String()
}

func writeWhaleLevel(b *strings.Builder, rec model.AlarmRecord, level model.Level) {
	fmt.Fprintf(b, "%s %s@%s %s / 총액: %s %s\n",
		formatNumber(level.Amount, 2), rec.BaseSymbol,
		formatNumber(level.Price, 2), rec.QuoteSymbol,
		formatNumber(level.Notional(), 2), rec.QuoteSymbol)
}

// formatNumber renders v with prec decimal places (-1 for shortest exact
// form) and thousands separators in the integer part.
func formatNumber(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)

	intPart := s
	rest := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, rest = s[:i], s[i:]
	}
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	if len(intPart) > 3 {
		var grouped strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			grouped.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if grouped.Len() > 0 {
				grouped.WriteByte(',')
			}
			grouped.WriteString(intPart[i : i+3])
		}
		intPart = grouped.String()
	}
	return sign + intPart + rest
}
