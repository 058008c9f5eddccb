// Command pitrader runs the trading bot: one decision cycle per configured
// Bitso book every CHECK_INTERVAL_MINUTES, paper trading unless DRY_RUN=false.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pitrader/config"
	"pitrader/internal/api"
	"pitrader/internal/bot"
	"pitrader/internal/execution"
	"pitrader/internal/logger"
	"pitrader/internal/metrics"
	"pitrader/internal/notification"
	"pitrader/internal/portfolio"
	redisstore "pitrader/internal/store/redis"
	sqlitestore "pitrader/internal/store/sqlite"
	"pitrader/pkg/bitso"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("pitrader", slog.LevelInfo).Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("pitrader", cfg.SlogLevel())
	log.Info("starting",
		"pairs", cfg.Pairs,
		"strategy", cfg.Strategy.Kind,
		"dry_run", cfg.DryRun,
		"staging", cfg.BitsoUseStaging,
		"interval", cfg.CheckInterval,
		"required_history", cfg.Strategy.RequiredHistory())
	if !cfg.DryRun {
		log.Warn("LIVE TRADING ENABLED: orders will be sent to the exchange")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(3 * cfg.CheckInterval)
	health.SetMode(cfg.DryRun, cfg.Pairs)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- SQLite: price history + fill journal ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("create data dir failed", "dir", dir, "error", err)
			os.Exit(1)
		}
	}
	samples, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer samples.Close()
	health.SetSQLiteOK(true)

	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Error("fill journal init failed", "error", err)
		os.Exit(1)
	}
	defer journal.Close()
	log.Info("sqlite ready", "path", cfg.SQLitePath)

	// ---- Redis (optional) ----
	var (
		publisher   bot.Publisher
		redisPinger metrics.Pinger
	)
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		rw, err := redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Warn("redis init failed, continuing without decision publishing", "error", err)
		} else {
			defer rw.Close()
			cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.BreakerStateChanged(int(to))
			}
			bw := redisstore.NewBufferedWriter(rw, cb, 1000)
			bw.OnBuffer = prom.RedisBufferedWrites.Inc
			publisher = bw
			redisPinger = rw
			log.Info("redis ready", "addr", cfg.RedisAddr)
		}
	}
	health.StartLivenessChecker(ctx, redisPinger, samples.DB(), 10*time.Second)

	// ---- Alerts ----
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}

	// ---- Exchange & executor ----
	client := bitso.New(bitso.Config{
		APIKey:    cfg.BitsoAPIKey,
		APISecret: cfg.BitsoAPISecret,
		BaseURL:   cfg.BitsoBaseURL,
		Staging:   cfg.BitsoUseStaging,
		Debug:     cfg.SlogLevel() == slog.LevelDebug,
	})
	log.Info("bitso client ready", "base_url", client.BaseURL())

	deps := bot.Deps{
		Feed:      client,
		Portfolio: portfolio.New(cfg.PaperBalance),
		Samples:   samples,
		Journal:   journal,
		Publisher: publisher,
		Notifier:  notifiers,
		Metrics:   prom,
		Health:    health,
	}
	if cfg.DryRun {
		deps.Executor = execution.NewPaperExecutor(cfg.SlippageBps, cfg.FeeTaker)
	} else {
		minimums := execution.NewMinimums()
		if books, err := client.AvailableBooks(ctx); err != nil {
			log.Warn("available books fetch failed, using built-in minimums", "error", err)
		} else {
			log.Info("order minimums loaded", "books", minimums.Update(books))
		}
		deps.Executor = execution.NewLiveExecutor(client, minimums, cfg.FeeTaker)
		deps.Account = client
	}

	// ---- HTTP API + WebSocket ----
	hub := api.NewHub()
	defer hub.Close()
	deps.Hub = hub

	b, err := bot.New(cfg, deps)
	if err != nil {
		log.Error("bot init failed", "error", err)
		os.Exit(1)
	}
	if err := b.Restore(ctx); err != nil {
		log.Error("state restore failed", "error", err)
		os.Exit(1)
	}

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(b, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api server listening", "addr", cfg.HTTPAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("bot stopped with error", "error", err)
		}
	}()

	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	s := b.Summary()
	log.Info("final summary",
		"equity", s.Equity,
		"net_pnl", s.NetPnL,
		"fees", s.Fees,
		"trades", s.TotalTrades,
		"open_positions", s.OpenPositions)
}
