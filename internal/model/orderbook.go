package model

// Level is a single order-book price level.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// Notional returns the quote-currency value of the level.
func (l Level) Notional() float64 {
	return l.Price * l.Amount
}

// OrderBook is a snapshot of the top levels of both book sides,
// typically truncated to the top 20.
type OrderBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}
