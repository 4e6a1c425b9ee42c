package resolver

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweep struct {
	calls atomic.Int64
	err   error
}

func (c *countingSweep) run(context.Context, time.Time) error {
	c.calls.Add(1)
	return c.err
}

func (c *countingSweep) ExpireStale(ctx context.Context, now time.Time) error {
	return c.run(ctx, now)
}

func (c *countingSweep) CloseExpiredAuctions(ctx context.Context, now time.Time) error {
	return c.run(ctx, now)
}

func (c *countingSweep) ExpireOverdue(ctx context.Context, now time.Time) error {
	return c.run(ctx, now)
}

func TestResolver_RunsAllSweeps(t *testing.T) {
	txs := &countingSweep{}
	auctions := &countingSweep{}
	sharing := &countingSweep{}

	cfg := Config{
		TransactionInterval: 10 * time.Millisecond,
		AuctionInterval:     10 * time.Millisecond,
		SharingInterval:     10 * time.Millisecond,
	}
	r := New(cfg, txs, auctions, sharing, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Greater(t, txs.calls.Load(), int64(1))
	assert.Greater(t, auctions.calls.Load(), int64(1))
	assert.Greater(t, sharing.calls.Load(), int64(1))
}

func TestResolver_SweepFailureIsIsolated(t *testing.T) {
	failing := &countingSweep{err: stderrors.New("storage down")}
	healthy := &countingSweep{}

	cfg := Config{
		TransactionInterval: 10 * time.Millisecond,
		AuctionInterval:     10 * time.Millisecond,
	}
	r := New(cfg, failing, healthy, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Greater(t, failing.calls.Load(), int64(1), "failing sweep keeps being scheduled")
	assert.Greater(t, healthy.calls.Load(), int64(1))
}

func TestResolver_NilCollaboratorDisablesSweep(t *testing.T) {
	auctions := &countingSweep{}
	r := New(Config{AuctionInterval: 10 * time.Millisecond}, nil, auctions, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Greater(t, auctions.calls.Load(), int64(0))
}
