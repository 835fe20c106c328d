package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alarm-enginev1/config"
	"alarm-enginev1/internal/cache"
	"alarm-enginev1/internal/exchange"
	"alarm-enginev1/internal/logger"
	"alarm-enginev1/internal/metrics"
	"alarm-enginev1/internal/model"
	"alarm-enginev1/internal/notification"
	redisstore "alarm-enginev1/internal/store/redis"
	sqlitestore "alarm-enginev1/internal/store/sqlite"
	"alarm-enginev1/internal/watcher"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[watcher] starting...")

	// ---- Load config from env ----
	if err := godotenv.Load(); err != nil {
		log.Println("[watcher] no .env file, using process environment")
	}
	cfg := config.Load()
	logger.Init("watcher", logger.LevelFromEnv())

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Open the alarm database ----
	store, err := sqlitestore.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[watcher] sqlite init failed: %v", err)
	}
	defer store.Close()
	log.Println("[watcher] alarm store ready")

	// ---- Optional Redis journal ----
	var publisher *redisstore.Publisher
	if cfg.RedisAddr != "" {
		publisher, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[watcher] WARNING: redis init failed: %v (continuing without journal)", err)
			publisher = nil
		} else {
			log.Println("[watcher] redis journal ready")
		}
	}

	// ---- Periodic liveness checks ----
	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Candle cache with journal + metrics hook ----
	candleCache := cache.New()
	var candleCh chan model.Candle
	var alertCh chan model.AlertEvent
	if publisher != nil {
		candleCh = make(chan model.Candle, 1000)
		alertCh = make(chan model.AlertEvent, 100)
		go publisher.Run(ctx, candleCh)
		go publisher.RunAlerts(ctx, alertCh)
	}
	candleCache.OnCandleClosed = func(c model.Candle) {
		prom.CandlesClosed.WithLabelValues(c.Exchange.String(), c.Interval.String()).Inc()
		if candleCh != nil {
			select {
			case candleCh <- c:
			default:
			}
		}
	}

	// ---- Wire the watcher ----
	notifier := notification.NewTelegramNotifier(cfg.TelegramBotToken)
	w := watcher.New(watcher.Config{
		Store:          store,
		Notifier:       notifier,
		Cache:          candleCache,
		Factory:        exchange.Factory,
		RegistryPeriod: cfg.RegistryPeriod,
		JanitorWarmup:  cfg.JanitorWarmup,
		JanitorPeriod:  cfg.JanitorPeriod,
	})
	w.OnTrade = func(id model.ExchangeID) {
		prom.TradesTotal.WithLabelValues(id.String()).Inc()
		health.SetLastTradeTime(time.Now())
	}
	w.OnReconnect = func(id model.ExchangeID) {
		prom.WSReconnects.WithLabelValues(id.String()).Inc()
	}
	w.OnAlarmCount = func(n int) {
		prom.AlarmsActive.Set(float64(n))
		health.SetActiveAlarms(n)
	}
	w.OnAlertSent = func(event model.AlertEvent) {
		prom.AlertsSent.Inc()
		if alertCh != nil {
			select {
			case alertCh <- event:
			default:
			}
		}
	}
	w.OnAlertError = func() {
		prom.AlertSendErrors.Inc()
	}
	w.OnBackfillError = func() {
		prom.BackfillErrors.Inc()
	}
	w.OnEvalDuration = func(d time.Duration) {
		prom.EvalDur.Observe(d.Seconds())
	}

	go w.Run(ctx)
	log.Println("[watcher] alarm engine running")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[watcher] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if publisher != nil {
		publisher.Close()
	}

	log.Println("[watcher] shutdown complete.")
}
