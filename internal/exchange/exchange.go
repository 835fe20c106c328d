// Package exchange provides market-data clients for the supported
// exchanges: streaming trades and order books over WebSocket, historical
// candles and depth snapshots over REST.
//
// A handle is owned by exactly one watch task. Streaming-read timeouts are
// surfaced as ErrRequestTimeout; the owning task closes the handle and opens
// a fresh one via the factory.
package exchange

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"alarm-enginev1/internal/model"
)

// ErrRequestTimeout is returned when a streaming read exceeds its deadline.
var ErrRequestTimeout = errors.New("exchange: request timeout")

const (
	// streamReadTimeout bounds a single WatchTrades/WatchOrderBook read.
	streamReadTimeout = 30 * time.Second

	// restTimeout bounds one REST request.
	restTimeout = 10 * time.Second
)

// New opens a fresh handle to the given exchange with rate limiting enabled.
func New(id model.ExchangeID) (model.Exchange, error) {
	switch id {
	case model.Upbit:
		return newUpbit(), nil
	case model.Binance:
		return newBinance(), nil
	}
	return nil, fmt.Errorf("exchange: unknown exchange id %d", int(id))
}

// Factory is the model.ExchangeFactory backed by New.
var Factory model.ExchangeFactory = New

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: restTimeout}
}

// isTimeout reports whether the error is a network read deadline breach.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isoDatetime renders an epoch-millisecond timestamp the way exchange APIs
// report trade datetimes.
func isoDatetime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
