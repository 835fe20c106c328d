package model

// AlarmRecord is one row of the alarm table as the store reports it.
type AlarmRecord struct {
	AlarmID     int64
	ChannelID   int64
	ExchangeID  ExchangeID
	BaseSymbol  string
	QuoteSymbol string
	IsEnabled   bool
}

// Symbol returns the BASE/QUOTE market symbol of the record.
func (r AlarmRecord) Symbol() string {
	return r.BaseSymbol + "/" + r.QuoteSymbol
}

// WhaleCondition fires on an order-book level whose notional value
// (price * amount) reaches Quantity.
type WhaleCondition struct {
	Quantity float64 `json:"quantity"`
}

// TickCondition fires on a single trade of at least Quantity base units.
type TickCondition struct {
	Quantity float64 `json:"quantity"`
}

// RsiCondition fires when the RSI over candles at Interval leaves the
// [LowerBound, UpperBound] range.
type RsiCondition struct {
	Length     int      `json:"length"`
	UpperBound float64  `json:"upper_bound"`
	LowerBound float64  `json:"lower_bound"`
	Interval   Interval `json:"interval"`
}

// BollingerBandCondition fires when the trade price crosses the configured
// band of SMA ± Coefficient·σ over the last Length candles at Interval.
type BollingerBandCondition struct {
	Length           int      `json:"length"`
	Coefficient      float64  `json:"coefficient"`
	OnOverUpperBand  bool     `json:"on_over_upper_band"`
	OnUnderLowerBand bool     `json:"on_under_lower_band"`
	Interval         Interval `json:"interval"`
}

// Condition is the product of the four optional sub-conditions of an alarm.
// A nil sub-condition is not evaluated.
type Condition struct {
	AlarmID       int64                   `json:"alarm_id"`
	Whale         *WhaleCondition         `json:"whale"`
	Tick          *TickCondition          `json:"tick"`
	Rsi           *RsiCondition           `json:"rsi"`
	BollingerBand *BollingerBandCondition `json:"bollinger_band"`
}

// Equal reports structural equality of the two conditions.
func (c Condition) Equal(other Condition) bool {
	if (c.Whale == nil) != (other.Whale == nil) ||
		(c.Tick == nil) != (other.Tick == nil) ||
		(c.Rsi == nil) != (other.Rsi == nil) ||
		(c.BollingerBand == nil) != (other.BollingerBand == nil) {
		return false
	}
	if c.Whale != nil && *c.Whale != *other.Whale {
		return false
	}
	if c.Tick != nil && *c.Tick != *other.Tick {
		return false
	}
	if c.Rsi != nil && *c.Rsi != *other.Rsi {
		return false
	}
	if c.BollingerBand != nil && *c.BollingerBand != *other.BollingerBand {
		return false
	}
	return true
}

// WatchedIntervals returns the distinct intervals the condition needs candle
// data for: those of the RSI and Bollinger sub-conditions. Whale and tick
// conditions carry no interval.
func (c Condition) WatchedIntervals() []Interval {
	var intervals []Interval
	add := func(iv Interval) {
		for _, have := range intervals {
			if have == iv {
				return
			}
		}
		intervals = append(intervals, iv)
	}
	if c.Rsi != nil {
		add(c.Rsi.Interval)
	}
	if c.BollingerBand != nil {
		add(c.BollingerBand.Interval)
	}
	return intervals
}

// AlertEvent describes a delivered alert, for the optional journal.
type AlertEvent struct {
	AlarmID   int64      `json:"alarm_id"`
	ChannelID int64      `json:"channel_id"`
	Exchange  ExchangeID `json:"exchange"`
	Symbol    string     `json:"symbol"`
	Message   string     `json:"message"`
	Timestamp int64      `json:"timestamp"` // epoch seconds of delivery
}
