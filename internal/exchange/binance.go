package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"alarm-enginev1/internal/model"
)

const (
	binanceWSBase   = "wss://stream.binance.com:9443/ws"
	binanceRESTBase = "https://api.binance.com"
)

// binanceTimeframes maps interval strings to Binance kline interval names.
var binanceTimeframes = map[string]string{
	"1s": "1s",
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "8h": "8h", "12h": "12h",
	"1d": "1d", "3d": "3d",
	"1w": "1w",
	"1M": "1M",
}

// binanceClient talks to Binance spot market data. Not goroutine-safe; each
// watch task owns its handle.
type binanceClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	rateLimit  bool

	tradeConns map[string]*websocket.Conn
	depthConns map[string]*websocket.Conn
	orderBooks map[string]model.OrderBook
}

func newBinance() *binanceClient {
	return &binanceClient{
		httpClient: newHTTPClient(),
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		rateLimit:  true,
		tradeConns: make(map[string]*websocket.Conn),
		depthConns: make(map[string]*websocket.Conn),
		orderBooks: make(map[string]model.OrderBook),
	}
}

// EnableRateLimit toggles REST request throttling.
func (b *binanceClient) EnableRateLimit(enabled bool) {
	b.rateLimit = enabled
}

// binancePair converts "BTC/USDT" to the Binance market name "BTCUSDT".
func binancePair(symbol string) string {
	return strings.ReplaceAll(model.NormalizeSymbol(symbol), "/", "")
}

func (b *binanceClient) throttle(ctx context.Context) error {
	if !b.rateLimit {
		return nil
	}
	return b.limiter.Wait(ctx)
}

func (b *binanceClient) dial(ctx context.Context, stream string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, binanceWSBase+"/"+stream, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: dial %s: %w", stream, err)
	}
	return conn, nil
}

// binanceTradeMsg is the @trade stream payload.
type binanceTradeMsg struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
}

func parseBinanceTrade(data []byte, symbol string) (model.Trade, error) {
	var msg binanceTradeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Trade{}, fmt.Errorf("binance: parse trade: %w", err)
	}
	if msg.EventType != "trade" {
		return model.Trade{}, fmt.Errorf("binance: unexpected event %q", msg.EventType)
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return model.Trade{}, fmt.Errorf("binance: parse trade price: %w", err)
	}
	amount, err := strconv.ParseFloat(msg.Quantity, 64)
	if err != nil {
		return model.Trade{}, fmt.Errorf("binance: parse trade quantity: %w", err)
	}
	return model.Trade{
		Symbol:    symbol,
		Timestamp: msg.TradeTime,
		Datetime:  isoDatetime(msg.TradeTime),
		Price:     price,
		Amount:    amount,
		Cost:      price * amount,
	}, nil
}

func (b *binanceClient) WatchTrades(ctx context.Context, symbol string) ([]model.Trade, error) {
	conn, ok := b.tradeConns[symbol]
	if !ok {
		stream := strings.ToLower(binancePair(symbol)) + "@trade"
		var err error
		conn, err = b.dial(ctx, stream)
		if err != nil {
			return nil, err
		}
		b.tradeConns[symbol] = conn
	}

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		delete(b.tradeConns, symbol)
		if isTimeout(err) {
			return nil, ErrRequestTimeout
		}
		return nil, fmt.Errorf("binance: read trades: %w", err)
	}

	trade, err := parseBinanceTrade(data, symbol)
	if err != nil {
		return nil, err
	}
	return []model.Trade{trade}, nil
}

// binanceDepthMsg is the @depth<N> partial book stream payload.
type binanceDepthMsg struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func parseBinanceDepth(data []byte) (model.OrderBook, error) {
	var msg binanceDepthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.OrderBook{}, fmt.Errorf("binance: parse depth: %w", err)
	}
	ob := model.OrderBook{
		Bids: make([]model.Level, 0, len(msg.Bids)),
		Asks: make([]model.Level, 0, len(msg.Asks)),
	}
	appendLevels := func(dst *[]model.Level, raw [][]string) error {
		for _, pair := range raw {
			if len(pair) < 2 {
				return fmt.Errorf("binance: malformed depth level")
			}
			price, err := strconv.ParseFloat(pair[0], 64)
			if err != nil {
				return fmt.Errorf("binance: parse depth price: %w", err)
			}
			amount, err := strconv.ParseFloat(pair[1], 64)
			if err != nil {
				return fmt.Errorf("binance: parse depth amount: %w", err)
			}
			*dst = append(*dst, model.Level{Price: price, Amount: amount})
		}
		return nil
	}
	if err := appendLevels(&ob.Bids, msg.Bids); err != nil {
		return model.OrderBook{}, err
	}
	if err := appendLevels(&ob.Asks, msg.Asks); err != nil {
		return model.OrderBook{}, err
	}
	return ob, nil
}

// depthStreamLevels picks the partial-book stream depth closest to limit.
func depthStreamLevels(limit int) int {
	switch {
	case limit <= 5:
		return 5
	case limit <= 10:
		return 10
	default:
		return 20
	}
}

func (b *binanceClient) WatchOrderBook(ctx context.Context, symbol string, limit int) error {
	conn, ok := b.depthConns[symbol]
	if !ok {
		stream := fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(binancePair(symbol)), depthStreamLevels(limit))
		var err error
		conn, err = b.dial(ctx, stream)
		if err != nil {
			return err
		}
		b.depthConns[symbol] = conn
	}

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		delete(b.depthConns, symbol)
		if isTimeout(err) {
			return ErrRequestTimeout
		}
		return fmt.Errorf("binance: read depth: %w", err)
	}

	ob, err := parseBinanceDepth(data)
	if err != nil {
		return err
	}
	b.orderBooks[symbol] = ob
	return nil
}

func (b *binanceClient) OrderBook(symbol string) (model.OrderBook, bool) {
	ob, ok := b.orderBooks[symbol]
	return ob, ok
}

func parseBinanceKlines(data []byte) ([]model.OHLCV, error) {
	// Rows look like [openTimeMs, "open", "high", "low", "close", "volume", ...].
	var rows [][]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("binance: parse klines: %w", err)
	}
	out := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("binance: short kline row")
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("binance: kline open time not numeric")
		}
		values := make([]float64, 5)
		for i := 0; i < 5; i++ {
			s, ok := row[i+1].(string)
			if !ok {
				return nil, fmt.Errorf("binance: kline field %d not a string", i+1)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("binance: parse kline field: %w", err)
			}
			values[i] = v
		}
		out = append(out, model.OHLCV{
			Timestamp: int64(openTime),
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}
	return out, nil
}

func (b *binanceClient) FetchOHLCV(ctx context.Context, symbol string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	tf, ok := binanceTimeframes[interval.String()]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported timeframe %s", interval)
	}
	if err := b.throttle(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", binancePair(symbol))
	q.Set("interval", tf)
	q.Set("limit", strconv.Itoa(limit))
	data, err := b.get(ctx, binanceRESTBase+"/api/v3/klines?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseBinanceKlines(data)
}

func (b *binanceClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (model.OrderBook, error) {
	if err := b.throttle(ctx); err != nil {
		return model.OrderBook{}, err
	}

	q := url.Values{}
	q.Set("symbol", binancePair(symbol))
	q.Set("limit", strconv.Itoa(limit))
	data, err := b.get(ctx, binanceRESTBase+"/api/v3/depth?"+q.Encode())
	if err != nil {
		return model.OrderBook{}, err
	}
	return parseBinanceDepth(data)
}

func (b *binanceClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (b *binanceClient) Close() error {
	for symbol, conn := range b.tradeConns {
		conn.Close()
		delete(b.tradeConns, symbol)
	}
	for symbol, conn := range b.depthConns {
		conn.Close()
		delete(b.depthConns, symbol)
	}
	return nil
}
