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
	upbitWSURL    = "wss://api.upbit.com/websocket/v1"
	upbitRESTBase = "https://api.upbit.com/v1"
)

// upbitClient talks to Upbit market data. Not goroutine-safe; each watch
// task owns its handle.
type upbitClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	rateLimit  bool

	// timeframes maps interval strings to candle endpoint paths. The "10m"
	// alias is injected at construction; Upbit's REST catalog does not
	// advertise it.
	timeframes map[string]string

	tradeConns map[string]*websocket.Conn
	depthConns map[string]*websocket.Conn
	orderBooks map[string]model.OrderBook
}

func newUpbit() *upbitClient {
	timeframes := map[string]string{
		"1s":  "seconds",
		"1m":  "minutes/1",
		"3m":  "minutes/3",
		"5m":  "minutes/5",
		"15m": "minutes/15",
		"30m": "minutes/30",
		"1h":  "minutes/60",
		"4h":  "minutes/240",
		"1d":  "days",
		"1w":  "weeks",
		"1M":  "months",
	}
	timeframes["10m"] = "minutes/10"

	return &upbitClient{
		httpClient: newHTTPClient(),
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		rateLimit:  true,
		timeframes: timeframes,
		tradeConns: make(map[string]*websocket.Conn),
		depthConns: make(map[string]*websocket.Conn),
		orderBooks: make(map[string]model.OrderBook),
	}
}

// EnableRateLimit toggles REST request throttling.
func (u *upbitClient) EnableRateLimit(enabled bool) {
	u.rateLimit = enabled
}

// upbitMarket converts "BTC/KRW" to the Upbit market code "KRW-BTC".
func upbitMarket(symbol string) string {
	parts := strings.SplitN(model.NormalizeSymbol(symbol), "/", 2)
	if len(parts) != 2 {
		return symbol
	}
	return parts[1] + "-" + parts[0]
}

func (u *upbitClient) throttle(ctx context.Context) error {
	if !u.rateLimit {
		return nil
	}
	return u.limiter.Wait(ctx)
}

// subscribe dials the websocket and sends the subscription request for one
// stream type ("trade" or "orderbook") on one market.
func (u *upbitClient) subscribe(ctx context.Context, streamType, market string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, upbitWSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("upbit: dial: %w", err)
	}
	request := []interface{}{
		map[string]string{"ticket": "watcher-" + strconv.FormatInt(time.Now().UnixNano(), 10)},
		map[string]interface{}{"type": streamType, "codes": []string{market}},
		map[string]string{"format": "DEFAULT"},
	}
	if err := conn.WriteJSON(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("upbit: subscribe %s: %w", streamType, err)
	}
	return conn, nil
}

// upbitTradeMsg is the websocket trade payload.
type upbitTradeMsg struct {
	Type        string  `json:"type"`
	Code        string  `json:"code"`
	TradePrice  float64 `json:"trade_price"`
	TradeVolume float64 `json:"trade_volume"`
	Timestamp   int64   `json:"timestamp"`
}

func parseUpbitTrade(data []byte, symbol string) (model.Trade, error) {
	var msg upbitTradeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Trade{}, fmt.Errorf("upbit: parse trade: %w", err)
	}
	if msg.Type != "trade" {
		return model.Trade{}, fmt.Errorf("upbit: unexpected message type %q", msg.Type)
	}
	return model.Trade{
		Symbol:    symbol,
		Timestamp: msg.Timestamp,
		Datetime:  isoDatetime(msg.Timestamp),
		Price:     msg.TradePrice,
		Amount:    msg.TradeVolume,
		Cost:      msg.TradePrice * msg.TradeVolume,
	}, nil
}

func (u *upbitClient) WatchTrades(ctx context.Context, symbol string) ([]model.Trade, error) {
	conn, ok := u.tradeConns[symbol]
	if !ok {
		var err error
		conn, err = u.subscribe(ctx, "trade", upbitMarket(symbol))
		if err != nil {
			return nil, err
		}
		u.tradeConns[symbol] = conn
	}

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		delete(u.tradeConns, symbol)
		if isTimeout(err) {
			return nil, ErrRequestTimeout
		}
		return nil, fmt.Errorf("upbit: read trades: %w", err)
	}

	trade, err := parseUpbitTrade(data, symbol)
	if err != nil {
		return nil, err
	}
	return []model.Trade{trade}, nil
}

// upbitOrderBookMsg is the websocket order-book payload.
type upbitOrderBookMsg struct {
	Type  string `json:"type"`
	Units []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func parseUpbitOrderBook(data []byte, limit int) (model.OrderBook, error) {
	var msg upbitOrderBookMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.OrderBook{}, fmt.Errorf("upbit: parse order book: %w", err)
	}
	if msg.Type != "orderbook" {
		return model.OrderBook{}, fmt.Errorf("upbit: unexpected message type %q", msg.Type)
	}
	ob := model.OrderBook{}
	for i, unit := range msg.Units {
		if limit > 0 && i >= limit {
			break
		}
		ob.Bids = append(ob.Bids, model.Level{Price: unit.BidPrice, Amount: unit.BidSize})
		ob.Asks = append(ob.Asks, model.Level{Price: unit.AskPrice, Amount: unit.AskSize})
	}
	return ob, nil
}

func (u *upbitClient) WatchOrderBook(ctx context.Context, symbol string, limit int) error {
	conn, ok := u.depthConns[symbol]
	if !ok {
		var err error
		conn, err = u.subscribe(ctx, "orderbook", upbitMarket(symbol))
		if err != nil {
			return err
		}
		u.depthConns[symbol] = conn
	}

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		delete(u.depthConns, symbol)
		if isTimeout(err) {
			return ErrRequestTimeout
		}
		return fmt.Errorf("upbit: read order book: %w", err)
	}

	ob, err := parseUpbitOrderBook(data, limit)
	if err != nil {
		return err
	}
	u.orderBooks[symbol] = ob
	return nil
}

func (u *upbitClient) OrderBook(symbol string) (model.OrderBook, bool) {
	ob, ok := u.orderBooks[symbol]
	return ob, ok
}

// upbitCandle is one row of the REST candle endpoints (newest first).
type upbitCandle struct {
	CandleDateTimeUTC string  `json:"candle_date_time_utc"`
	OpeningPrice      float64 `json:"opening_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	TradePrice        float64 `json:"trade_price"`
	AccTradeVolume    float64 `json:"candle_acc_trade_volume"`
}

func parseUpbitCandles(data []byte) ([]model.OHLCV, error) {
	var rows []upbitCandle
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("upbit: parse candles: %w", err)
	}
	out := make([]model.OHLCV, 0, len(rows))
	// Upbit returns newest first; reverse to ascending.
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		ts, err := time.Parse("2006-01-02T15:04:05", row.CandleDateTimeUTC)
		if err != nil {
			return nil, fmt.Errorf("upbit: parse candle time: %w", err)
		}
		out = append(out, model.OHLCV{
			Timestamp: ts.UTC().UnixMilli(),
			Open:      row.OpeningPrice,
			High:      row.HighPrice,
			Low:       row.LowPrice,
			Close:     row.TradePrice,
			Volume:    row.AccTradeVolume,
		})
	}
	return out, nil
}

func (u *upbitClient) FetchOHLCV(ctx context.Context, symbol string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	path, ok := u.timeframes[interval.String()]
	if !ok {
		return nil, fmt.Errorf("upbit: unsupported timeframe %s", interval)
	}
	if err := u.throttle(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("market", upbitMarket(symbol))
	q.Set("count", strconv.Itoa(limit))
	data, err := u.get(ctx, upbitRESTBase+"/candles/"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseUpbitCandles(data)
}

// upbitOrderBookREST is the REST order-book payload.
type upbitOrderBookREST struct {
	Units []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func (u *upbitClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (model.OrderBook, error) {
	if err := u.throttle(ctx); err != nil {
		return model.OrderBook{}, err
	}

	q := url.Values{}
	q.Set("markets", upbitMarket(symbol))
	data, err := u.get(ctx, upbitRESTBase+"/orderbook?"+q.Encode())
	if err != nil {
		return model.OrderBook{}, err
	}

	var books []upbitOrderBookREST
	if err := json.Unmarshal(data, &books); err != nil {
		return model.OrderBook{}, fmt.Errorf("upbit: parse order book: %w", err)
	}
	if len(books) == 0 {
		return model.OrderBook{}, fmt.Errorf("upbit: empty order book response")
	}
	ob := model.OrderBook{}
	for i, unit := range books[0].Units {
		if limit > 0 && i >= limit {
			break
		}
		ob.Bids = append(ob.Bids, model.Level{Price: unit.BidPrice, Amount: unit.BidSize})
		ob.Asks = append(ob.Asks, model.Level{Price: unit.AskPrice, Amount: unit.AskSize})
	}
	return ob, nil
}

func (u *upbitClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("upbit: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upbit: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upbit: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upbit: unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (u *upbitClient) Close() error {
	for symbol, conn := range u.tradeConns {
		conn.Close()
		delete(u.tradeConns, symbol)
	}
	for symbol, conn := range u.depthConns {
		conn.Close()
		delete(u.depthConns, symbol)
	}
	return nil
}
