package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain metrics for the engine. One instance is shared
// by the services; every collector method is safe for concurrent use.
type Registry struct {
	meter metric.Meter

	// Bidding metrics
	BidAmount          metric.Float64Histogram
	BidPlacedCounter   metric.Int64Counter
	BidRejectedCounter metric.Int64Counter
	AuctionsClosed     metric.Int64Counter

	// Negotiation metrics
	OfferAmount       metric.Float64Histogram
	OffersCreated     metric.Int64Counter
	OffersResolved    metric.Int64Counter
	PurchaseRequests  metric.Int64Counter

	// Transaction metrics
	TransactionsCreated  metric.Int64Counter
	TransactionsResolved metric.Int64Counter
	PropagationFailures  metric.Int64Counter
}

// NewRegistry creates the metrics registry.
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error
	if r.BidAmount, err = meter.Float64Histogram("bids.amount",
		metric.WithDescription("Distribution of placed bid amounts")); err != nil {
		return nil, err
	}
	if r.BidPlacedCounter, err = meter.Int64Counter("bids.placed",
		metric.WithDescription("Bids accepted")); err != nil {
		return nil, err
	}
	if r.BidRejectedCounter, err = meter.Int64Counter("bids.rejected",
		metric.WithDescription("Bids rejected by validation or conflict")); err != nil {
		return nil, err
	}
	if r.AuctionsClosed, err = meter.Int64Counter("auctions.closed",
		metric.WithDescription("Auction listings resolved by the sweep")); err != nil {
		return nil, err
	}

	if r.OfferAmount, err = meter.Float64Histogram("offers.amount",
		metric.WithDescription("Distribution of offer amounts")); err != nil {
		return nil, err
	}
	if r.OffersCreated, err = meter.Int64Counter("offers.created",
		metric.WithDescription("Offers created")); err != nil {
		return nil, err
	}
	if r.OffersResolved, err = meter.Int64Counter("offers.resolved",
		metric.WithDescription("Offers leaving the pending state")); err != nil {
		return nil, err
	}
	if r.PurchaseRequests, err = meter.Int64Counter("buys.requested",
		metric.WithDescription("Fixed-price purchase requests")); err != nil {
		return nil, err
	}

	if r.TransactionsCreated, err = meter.Int64Counter("transactions.created",
		metric.WithDescription("Transactions opened, by origin kind")); err != nil {
		return nil, err
	}
	if r.TransactionsResolved, err = meter.Int64Counter("transactions.resolved",
		metric.WithDescription("Transactions reaching a terminal status")); err != nil {
		return nil, err
	}
	if r.PropagationFailures, err = meter.Int64Counter("transactions.propagation_failures",
		metric.WithDescription("Downstream sync steps that failed after the authoritative write")); err != nil {
		return nil, err
	}

	return r, nil
}

// Bidding collectors

func (r *Registry) RecordBidPlaced(ctx context.Context, amount float64) {
	r.BidPlacedCounter.Add(ctx, 1)
	r.BidAmount.Record(ctx, amount)
}

func (r *Registry) RecordBidRejected(ctx context.Context, reason string) {
	r.BidRejectedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Registry) RecordAuctionClosed(ctx context.Context, hadWinner bool) {
	r.AuctionsClosed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("had_winner", hadWinner)))
}

// Negotiation collectors

func (r *Registry) RecordOfferCreated(ctx context.Context, amount float64) {
	r.OffersCreated.Add(ctx, 1)
	r.OfferAmount.Record(ctx, amount)
}

func (r *Registry) RecordOfferResolved(ctx context.Context, status string) {
	r.OffersResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (r *Registry) RecordPurchaseRequested(ctx context.Context) {
	r.PurchaseRequests.Add(ctx, 1)
}

// Transaction collectors

func (r *Registry) RecordTransactionCreated(ctx context.Context, originKind string) {
	r.TransactionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", originKind)))
}

func (r *Registry) RecordTransactionResolved(ctx context.Context, status string) {
	r.TransactionsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (r *Registry) RecordPropagationFailure(ctx context.Context, step string) {
	r.PropagationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}
