package negotiation

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// Service defines the negotiation service interface. It owns the offer and
// buy flows up to the point of acceptance, where the transaction service
// takes over.
type Service interface {
	// CreateOffer records a buyer's price proposal on a negotiable listing
	CreateOffer(ctx context.Context, req *CreateOfferRequest) (*offer.Offer, error)
	// AcceptOffer is the seller's acceptance, opening a transaction
	AcceptOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*transaction.Transaction, error)
	// RejectOffer declines a pending offer
	RejectOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*offer.Offer, error)
	// UpdateOfferAmount resubmits a pending or rejected offer at a new amount
	UpdateOfferAmount(ctx context.Context, req *UpdateOfferRequest) (*offer.Offer, error)
	// WithdrawOffer retracts the buyer's own pending offer
	WithdrawOffer(ctx context.Context, offerID, buyerID uuid.UUID) (*offer.Offer, error)
	// GetOffer retrieves a specific offer
	GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error)

	// RequestPurchase records a buyer's intent to buy at the listed price
	RequestPurchase(ctx context.Context, req *RequestPurchaseRequest) (*buy.Buy, error)
	// ConfirmBuy is the seller's confirmation, opening a transaction
	ConfirmBuy(ctx context.Context, buyID, sellerID uuid.UUID) (*transaction.Transaction, error)
	// CancelBuy retracts the buyer's own pending purchase request
	CancelBuy(ctx context.Context, buyID, buyerID uuid.UUID) (*buy.Buy, error)
	// GetBuy retrieves a specific buy
	GetBuy(ctx context.Context, buyID uuid.UUID) (*buy.Buy, error)
}

// ProductRepository is the slice of product storage negotiation needs
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
}

// OfferRepository defines offer storage
type OfferRepository interface {
	Create(ctx context.Context, o *offer.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error)
	Update(ctx context.Context, o *offer.Offer) error
	// PendingForBuyer returns the buyer's live offer on the product, nil
	// when absent.
	PendingForBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*offer.Offer, error)
}

// BuyRepository defines buy storage
type BuyRepository interface {
	Create(ctx context.Context, b *buy.Buy) error
	GetByID(ctx context.Context, id uuid.UUID) (*buy.Buy, error)
	Update(ctx context.Context, b *buy.Buy) error
	// PendingForBuyer returns the buyer's open purchase request on the
	// product, nil when absent.
	PendingForBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*buy.Buy, error)
}

// TransactionCreator hands accepted negotiations to the transaction service.
type TransactionCreator interface {
	CreateFromOffer(ctx context.Context, p *product.Product, o *offer.Offer) (*transaction.Transaction, error)
	CreateFromBuy(ctx context.Context, p *product.Product, b *buy.Buy) (*transaction.Transaction, error)
}

// Notifier is the best-effort notification sink
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{})
}

// EventEmitter is the realtime fan-out collaborator
type EventEmitter interface {
	Emit(room, event string, payload interface{})
}

// MetricsCollector defines negotiation metrics
type MetricsCollector interface {
	RecordOfferCreated(ctx context.Context, amount float64)
	RecordOfferResolved(ctx context.Context, status string)
	RecordPurchaseRequested(ctx context.Context)
}

// Notification kinds dispatched by the negotiation flows.
const (
	NotifyOfferReceived  = "offer_received"
	NotifyOfferUpdated   = "offer_updated"
	NotifyOfferRejected  = "offer_rejected"
	NotifyOfferWithdrawn = "offer_withdrawn"
	NotifyBuyRequested   = "buy_requested"
	NotifyBuyCancelled   = "buy_cancelled"
)

// CreateOfferRequest represents a new offer
type CreateOfferRequest struct {
	ProductID uuid.UUID `validate:"required"`
	BuyerID   uuid.UUID `validate:"required"`
	Amount    float64   `validate:"required,gt=0"`
	Currency  string    `validate:"omitempty,len=3"`
}

// UpdateOfferRequest resubmits an offer at a new amount
type UpdateOfferRequest struct {
	OfferID uuid.UUID `validate:"required"`
	BuyerID uuid.UUID `validate:"required"`
	Amount  float64   `validate:"required,gt=0"`
}

// RequestPurchaseRequest represents a fixed-price purchase intent
type RequestPurchaseRequest struct {
	ProductID uuid.UUID `validate:"required"`
	BuyerID   uuid.UUID `validate:"required"`
}
