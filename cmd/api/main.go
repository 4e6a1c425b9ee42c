package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidleathers/meetpoint-market-backend/internal/api/rest"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/cache"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/config"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/database"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/events"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/ledger"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/repository"
	"github.com/davidleathers/meetpoint-market-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/meetpoint-market-backend/internal/metrics"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/bidding"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/negotiation"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/resolver"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/sharing"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/transaction"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)

	var zapLogger *zap.Logger
	var err error
	if cfg.Environment == "development" {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(ctx, &cfg.Redis, zapLogger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	productLock := cache.NewProductLock(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockWait, zapLogger)

	hub := events.NewHub(zapLogger)
	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(1024, zapLogger, events.NewHubSink(hub))
	defer dispatcher.Close()

	registry, err := metrics.NewRegistry("meetpoint.market")
	if err != nil {
		return err
	}

	products := repository.NewProductRepository(pool.Pool())
	bids := repository.NewBidRepository(pool.Pool())
	offers := repository.NewOfferRepository(pool.Pool())
	buys := repository.NewBuyRepository(pool.Pool())
	txRepo := repository.NewTransactionRepository(pool.Pool())
	convs := repository.NewConversationRepository(pool.Pool())
	sessions := repository.NewLocationSessionRepository(pool.Pool())

	receipts := ledger.New(pool.Pool(), zapLogger)

	txService := transaction.NewService(
		txRepo, products, offers, buys, bids,
		convs, convs, dispatcher, hub, receipts, registry, appLogger,
	)
	negotiationService := negotiation.NewService(
		products, offers, buys, txService, dispatcher, hub, registry, appLogger,
	)
	biddingService := bidding.NewService(
		products, bids, productLock, txService, dispatcher, hub, registry,
		cfg.Bidding.RateEvery, cfg.Bidding.RateBurst, appLogger,
	)
	sharingService := sharing.NewService(
		sessions, convs, dispatcher, hub, cfg.Sharing.Ceiling, appLogger,
	)

	sweeps := resolver.New(resolver.Config{
		TransactionInterval: cfg.Resolver.TransactionInterval,
		AuctionInterval:     cfg.Resolver.AuctionInterval,
		SharingInterval:     cfg.Resolver.SharingInterval,
	}, txService, biddingService, sharingService, appLogger)
	go sweeps.Run(ctx)

	mux := http.NewServeMux()
	rest.NewHandler(biddingService, negotiationService, txService, sharingService, appLogger).Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Pool().Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
