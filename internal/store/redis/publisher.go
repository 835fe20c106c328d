// Package redis provides the optional journal: closed candles and delivered
// alerts are appended to Redis Streams for dashboards and offline analysis.
// Publishing is best effort; a failed write never blocks alarm evaluation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"alarm-enginev1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: keep roughly the cache window per instrument.
	candleStreamMaxLen = 1000
	alertStreamMaxLen  = 10000
	defaultLatestTTL   = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes closed candles and alert events to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a new Redis Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Run reads closed candles from candleCh and journals them.
// Blocks until ctx is cancelled or candleCh is closed.
func (p *Publisher) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			p.writeCandle(ctx, candle)
		}
	}
}

// RunAlerts reads delivered alerts from alertCh and journals them.
// Blocks until ctx is cancelled or alertCh is closed.
func (p *Publisher) RunAlerts(ctx context.Context, alertCh <-chan model.AlertEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-alertCh:
			if !ok {
				return
			}
			p.writeAlert(ctx, event)
		}
	}
}

// candlePayload is the journal wire form of a closed candle.
type candlePayload struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

// writeCandle performs pipelined writes for a closed candle.
func (p *Publisher) writeCandle(ctx context.Context, candle model.Candle) {
	payload := candlePayload{
		Exchange:  candle.Exchange.String(),
		Symbol:    candle.Symbol,
		Interval:  candle.Interval.String(),
		Timestamp: candle.Timestamp(),
		Open:      candle.Open(),
		High:      candle.High(),
		Low:       candle.Low(),
		Close:     candle.Close(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[redis] marshal candle: %v", err)
		return
	}
	jsonData := string(data)

	streamKey := fmt.Sprintf("candle:%s:%s:%s", candle.Interval, candle.Exchange, candle.Symbol)
	latestKey := fmt.Sprintf("candle:%s:latest:%s:%s", candle.Interval, candle.Exchange, candle.Symbol)

	pipe := p.client.Pipeline()

	// SET latest candle with TTL
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// XADD to stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: candleStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] candle pipeline error for %s: %v", streamKey, err)
	}
}

// writeAlert appends a delivered alert to the alerts stream.
func (p *Publisher) writeAlert(ctx context.Context, event model.AlertEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[redis] marshal alert: %v", err)
		return
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "alerts",
		MaxLen: alertStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		log.Printf("[redis] alert journal error for alarm %d: %v", event.AlarmID, err)
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
