package model

import "fmt"

// ExchangeID identifies a supported exchange. The numeric values are
// wire-stable: they are persisted in the alarm database.
type ExchangeID int

const (
	Upbit   ExchangeID = 1
	Binance ExchangeID = 2
)

// ExchangeIDs lists all supported exchanges.
var ExchangeIDs = []ExchangeID{Upbit, Binance}

// Valid reports whether the ID maps to a known exchange.
func (id ExchangeID) Valid() bool {
	return id == Upbit || id == Binance
}

func (id ExchangeID) String() string {
	switch id {
	case Upbit:
		return "upbit"
	case Binance:
		return "binance"
	}
	return fmt.Sprintf("exchange(%d)", int(id))
}

// DisplayName returns the user-facing exchange name used in alert messages.
func (id ExchangeID) DisplayName() string {
	switch id {
	case Upbit:
		return "업비트"
	case Binance:
		return "바이낸스"
	}
	return id.String()
}
