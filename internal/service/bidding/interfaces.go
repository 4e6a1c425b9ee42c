package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// Service defines the bidding service interface
type Service interface {
	// PlaceBid validates and records a new bid for a product
	PlaceBid(ctx context.Context, req *PlaceBidRequest) (*bid.Bid, error)
	// GetBid retrieves a specific bid
	GetBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error)
	// GetBidsForProduct returns all bids for a product
	GetBidsForProduct(ctx context.Context, productID uuid.UUID) ([]*bid.Bid, error)
	// CloseExpiredAuctions resolves bidding listings whose window has passed
	CloseExpiredAuctions(ctx context.Context, now time.Time) error
}

// ProductRepository defines the product storage the bidding service needs
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
	// UpdateStatusIf performs a conditional status transition and reports
	// whether the row was actually moved. A false result means another
	// writer got there first.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to product.Status) (bool, error)
	// ListExpiredBidding returns active bidding products whose window closed
	// before now.
	ListExpiredBidding(ctx context.Context, now time.Time) ([]*product.Product, error)
}

// BidRepository defines the interface for bid storage
type BidRepository interface {
	Create(ctx context.Context, b *bid.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)
	Update(ctx context.Context, b *bid.Bid) error
	// HighestActiveForProduct returns the current high bid, or nil when the
	// product has no active bid.
	HighestActiveForProduct(ctx context.Context, productID uuid.UUID) (*bid.Bid, error)
	// MarkOutbidIf conditionally moves a bid from active to outbid and
	// reports whether the row was still active.
	MarkOutbidIf(ctx context.Context, bidID uuid.UUID) (bool, error)
	// MarkLostExcept marks every non-terminal bid on the product lost,
	// sparing the winner.
	MarkLostExcept(ctx context.Context, productID, wonBidID uuid.UUID) error
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*bid.Bid, error)
}

// ProductLocker serializes bid acceptance per product. Two simultaneous bids
// race on the read-then-write of the current high bid without it.
type ProductLocker interface {
	WithLock(ctx context.Context, productID uuid.UUID, fn func(ctx context.Context) error) error
}

// TransactionCreator converts a won auction into a transaction. Implemented
// by the transaction service.
type TransactionCreator interface {
	CreateFromBid(ctx context.Context, p *product.Product, winning *bid.Bid) (*transaction.Transaction, error)
}

// Notifier is the best-effort notification sink. Implementations never
// surface failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{})
}

// EventEmitter is the realtime fan-out collaborator.
type EventEmitter interface {
	Emit(room, event string, payload interface{})
}

// MetricsCollector defines the interface for bidding metrics
type MetricsCollector interface {
	RecordBidPlaced(ctx context.Context, amount float64)
	RecordBidRejected(ctx context.Context, reason string)
	RecordAuctionClosed(ctx context.Context, hadWinner bool)
}

// PlaceBidRequest represents a bid placement request
type PlaceBidRequest struct {
	ProductID uuid.UUID `validate:"required"`
	BidderID  uuid.UUID `validate:"required"`
	Amount    float64   `validate:"required,gt=0"`
	Currency  string    `validate:"omitempty,len=3"`
}
