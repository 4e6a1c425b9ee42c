package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default sweep intervals.
const (
	DefaultTransactionInterval = time.Minute
	DefaultAuctionInterval     = 30 * time.Second
	DefaultSharingInterval     = 5 * time.Minute
)

// TransactionExpirer resolves stale transactions.
type TransactionExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) error
}

// AuctionCloser resolves bidding listings whose window has passed.
type AuctionCloser interface {
	CloseExpiredAuctions(ctx context.Context, now time.Time) error
}

// SharingReaper force-stops overdue location sharing.
type SharingReaper interface {
	ExpireOverdue(ctx context.Context, now time.Time) error
}

// Config holds the sweep intervals. Zero values fall back to defaults.
type Config struct {
	TransactionInterval time.Duration
	AuctionInterval     time.Duration
	SharingInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TransactionInterval <= 0 {
		c.TransactionInterval = DefaultTransactionInterval
	}
	if c.AuctionInterval <= 0 {
		c.AuctionInterval = DefaultAuctionInterval
	}
	if c.SharingInterval <= 0 {
		c.SharingInterval = DefaultSharingInterval
	}
	return c
}

// Resolver owns the scheduled sweeps that resolve state no user action will:
// expired auctions, stale transactions, and runaway location sharing. Each
// sweep runs on its own ticker so a slow one never delays the others.
type Resolver struct {
	cfg          Config
	transactions TransactionExpirer
	auctions     AuctionCloser
	sharing      SharingReaper
	logger       *slog.Logger
}

// New creates a resolver. Any nil collaborator disables its sweep.
func New(cfg Config, transactions TransactionExpirer, auctions AuctionCloser, sharing SharingReaper, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:          cfg.withDefaults(),
		transactions: transactions,
		auctions:     auctions,
		sharing:      sharing,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled, executing each sweep on its interval.
// Every sweep also runs once at startup so a restart never extends the wait.
func (r *Resolver) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if r.transactions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, "expire_transactions", r.cfg.TransactionInterval, r.transactions.ExpireStale)
		}()
	}
	if r.auctions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, "close_auctions", r.cfg.AuctionInterval, r.auctions.CloseExpiredAuctions)
		}()
	}
	if r.sharing != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, "expire_sharing", r.cfg.SharingInterval, r.sharing.ExpireOverdue)
		}()
	}

	wg.Wait()
}

func (r *Resolver) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context, time.Time) error) {
	r.logger.Info("resolver sweep started",
		slog.String("sweep", name),
		slog.Duration("interval", interval))

	r.runSweep(ctx, name, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("resolver sweep stopped", slog.String("sweep", name))
			return
		case <-ticker.C:
			r.runSweep(ctx, name, sweep)
		}
	}
}

func (r *Resolver) runSweep(ctx context.Context, name string, sweep func(context.Context, time.Time) error) {
	if err := sweep(ctx, time.Now()); err != nil {
		r.logger.Error("resolver sweep failed",
			slog.String("sweep", name),
			slog.Any("error", err))
	}
}
