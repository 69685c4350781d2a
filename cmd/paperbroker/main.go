// Command paperbroker runs the paper trading engine behind its HTTP shim,
// grounded on services/jax-trade-executor/cmd/jax-trade-executor/main.go's
// config-load -> wire -> serve -> graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperbroker/internal/audit"
	"paperbroker/internal/auth"
	"paperbroker/internal/broker"
	"paperbroker/internal/calendar"
	"paperbroker/internal/clock"
	"paperbroker/internal/config"
	"paperbroker/internal/httpapi"
	"paperbroker/internal/middleware"
	"paperbroker/internal/observability"
	"paperbroker/internal/quotecache"
	"paperbroker/internal/store"
	"paperbroker/internal/types"
)

func main() {
	cfg := config.LoadServiceConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := observability.Default()

	riskLimits, err := config.LoadRiskLimits(cfg.RiskPolicyPath)
	if err != nil {
		log.Fatalf("failed to load risk policy: %v", err)
	}
	brokerConfig, err := config.LoadBrokerConfig(cfg.BrokerConfigPath)
	if err != nil {
		log.Fatalf("failed to load broker config: %v", err)
	}

	mktCal, err := calendar.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to initialize market calendar: %v", err)
	}
	durableStore, err := store.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to initialize durable store: %v", err)
	}

	var mirror *audit.Mirror
	if cfg.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mirror, err = audit.Connect(ctx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			logger.LogDurabilityError(context.Background(), "audit_connect", err)
		} else {
			defer mirror.Close()
		}
	}

	var cache *quotecache.Cache
	if cfg.RedisURL != "" {
		cache, err = quotecache.New(cfg.RedisURL, 5*time.Minute)
		if err != nil {
			logger.LogDurabilityError(context.Background(), "quotecache_connect", err)
		} else {
			defer cache.Close()
		}
	}

	b := broker.New(broker.Options{
		InitialCash: cfg.InitialCash,
		Config:      brokerConfig,
		RiskLimits:  riskLimits,
		Calendar:    mktCal,
		Store:       durableStore,
		Logger:      logger,
		Clock:       clock.SystemClock{},
		RandSeed:    time.Now().UnixNano(),
		AutoSave:    true,
		OnTrade:     auditHook(mirror, logger),
		OnQuote:     quoteHook(cache, logger),
	})

	restoreFromDisk(b, durableStore, cfg.InitialCash, logger)

	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(auth.Config{Secret: []byte(cfg.JWTSecret), Expiry: cfg.JWTExpiry})
		if err != nil {
			log.Fatalf("failed to initialize JWT manager: %v", err)
		}
	} else {
		log.Println("WARNING: PAPERBROKER_JWT_SECRET not set, running the shim without authentication")
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMin,
		RequestsPerHour:   cfg.RateLimitPerHour,
		Enabled:           cfg.RateLimitEnabled,
	}, logger)

	server := httpapi.New(httpapi.Config{
		Broker:      b,
		Logger:      logger,
		JWTManager:  jwtManager,
		RateLimiter: rateLimiter,
		CORSConfig:  middleware.CORSConfigFromEnv(),
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	stopMetrics := startRiskMetricsLoop(b, 30*time.Second)
	defer stopMetrics()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("shutting down...")
		if err := b.SaveState(); err != nil {
			logger.LogDurabilityError(context.Background(), "shutdown_save", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	log.Printf("paperbroker starting on port %s (data dir %s)", cfg.Port, cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// auditHook returns a Broker.OnTrade callback that mirrors each trade into
// Postgres, or nil if no mirror is configured. Failures are logged and
// never surfaced to the trading path.
func auditHook(mirror *audit.Mirror, logger *observability.Logger) func(types.Trade) {
	if mirror == nil {
		return nil
	}
	return func(trade types.Trade) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mirror.Record(ctx, trade); err != nil {
			logger.LogDurabilityError(ctx, "audit_mirror", err)
		}
	}
}

// quoteHook returns a Broker.OnQuote callback that mirrors each quote into
// Redis, or nil if no cache is configured.
func quoteHook(cache *quotecache.Cache, logger *observability.Logger) func(types.MarketData) {
	if cache == nil {
		return nil
	}
	return func(quote types.MarketData) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.Set(ctx, quote); err != nil {
			logger.LogDurabilityError(ctx, "quotecache_mirror", err)
		}
	}
}

// restoreFromDisk implements spec §4.6's disaster-recovery path: load the
// snapshot if present, then make the journal the authoritative trade list
// since a snapshot may lag the journal by up to one flush. If no snapshot
// exists at all, cash and positions are rebuilt from scratch by replaying
// the journal onto an empty book funded with the configured initial cash
// (spec §4.6 invariant I7, property P6).
func restoreFromDisk(b *broker.Broker, durableStore *store.Store, initialCash float64, logger *observability.Logger) {
	snap, ok, err := durableStore.LoadSnapshot()
	if err != nil {
		logger.LogDurabilityError(context.Background(), "load_snapshot", err)
		return
	}

	trades, err := durableStore.LoadJournal()
	if err != nil {
		logger.LogDurabilityError(context.Background(), "load_journal", err)
		return
	}

	if !ok && len(trades) == 0 {
		return
	}

	if !ok {
		snap = store.ReplayJournal(initialCash, trades)
	} else {
		snap.Trades = trades
	}
	b.RestoreFromSnapshot(snap)
	log.Printf("restored broker state: %d trades replayed from journal", len(trades))
}

// startRiskMetricsLoop periodically rolls the risk engine's daily counters
// and recomputes Greeks-derived metrics even between trades, since the
// Broker offers no scheduler of its own (spec §5).
func startRiskMetricsLoop(b *broker.Broker, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				b.UpdateRiskMetrics()
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
