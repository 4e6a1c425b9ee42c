package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// Service drives a transaction from creation through the meetup
// sub-state-machine to completion, cancellation, or expiry.
type Service interface {
	// CreateFromOffer converts an accepted offer into a transaction
	CreateFromOffer(ctx context.Context, p *product.Product, o *offer.Offer) (*transaction.Transaction, error)
	// CreateFromBuy converts a confirmed buy into a transaction
	CreateFromBuy(ctx context.Context, p *product.Product, b *buy.Buy) (*transaction.Transaction, error)
	// CreateFromBid converts a won auction bid into a transaction. The
	// caller must already hold the product's in_transaction reservation.
	CreateFromBid(ctx context.Context, p *product.Product, winning *bid.Bid) (*transaction.Transaction, error)

	// ProposeMeetup schedules a meetup for an active transaction
	ProposeMeetup(ctx context.Context, req *ProposeMeetupRequest) (*transaction.Transaction, error)
	// AcceptMeetup confirms a scheduled meetup
	AcceptMeetup(ctx context.Context, txID, accepterID uuid.UUID) (*transaction.Transaction, error)
	// MarkAsSold is the seller's terminal success transition
	MarkAsSold(ctx context.Context, txID, sellerID uuid.UUID) (*transaction.Transaction, error)
	// CancelTransaction terminates an active transaction
	CancelTransaction(ctx context.Context, txID, cancellerID uuid.UUID, reason string) (*transaction.Transaction, error)

	// GetTransaction retrieves a transaction, lazily repairing any
	// propagation drift on terminal rows
	GetTransaction(ctx context.Context, txID uuid.UUID) (*transaction.Transaction, error)
	// ExpireStale resolves active transactions past their deadline
	ExpireStale(ctx context.Context, now time.Time) error
}

// Repository defines transaction storage
type Repository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	// UpdateIfVersion persists the aggregate only when the stored version
	// still matches expected, bumping the version on success. A false
	// result means a concurrent writer won.
	UpdateIfVersion(ctx context.Context, tx *transaction.Transaction, expected int64) (bool, error)
	// ListStale returns active transactions eligible for expiry at now.
	ListStale(ctx context.Context, now time.Time) ([]*transaction.Transaction, error)
	// ActiveForProduct returns the open transaction on a product, nil when none.
	ActiveForProduct(ctx context.Context, productID uuid.UUID) (*transaction.Transaction, error)
}

// ProductRepository defines the product writes the propagator performs
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to product.Status) (bool, error)
	// MarkSold records the concluded sale on the listing.
	MarkSold(ctx context.Context, id, soldTo uuid.UUID, at time.Time) error
}

// OfferRepository is the slice of offer storage the propagator needs
type OfferRepository interface {
	Update(ctx context.Context, o *offer.Offer) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status offer.Status) error
}

// BuyRepository is the slice of buy storage the propagator needs
type BuyRepository interface {
	Update(ctx context.Context, b *buy.Buy) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status buy.Status) error
}

// BidRepository is the slice of bid storage the propagator needs
type BidRepository interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status bid.Status) error
}

// ConversationRepository defines conversation storage
type ConversationRepository interface {
	// FindForProduct returns the conversation between the parties about a
	// product, nil when absent.
	FindForProduct(ctx context.Context, buyerID, sellerID, productID uuid.UUID) (*conversation.Conversation, error)
	GetByTransactionID(ctx context.Context, txID uuid.UUID) (*conversation.Conversation, error)
	Create(ctx context.Context, c *conversation.Conversation) error
	Update(ctx context.Context, c *conversation.Conversation) error
}

// MessageAppender appends system-authored chat messages
type MessageAppender interface {
	AppendSystemMessage(ctx context.Context, conversationID uuid.UUID, text string) (*conversation.Message, error)
}

// Notifier is the best-effort notification sink
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{})
}

// EventEmitter is the realtime fan-out collaborator
type EventEmitter interface {
	Emit(room, event string, payload interface{})
}

// Ledger mirrors completed transactions to a non-authoritative audit store.
// Failures are logged only.
type Ledger interface {
	RecordReceipt(ctx context.Context, tx *transaction.Transaction) (string, error)
}

// MetricsCollector defines transaction metrics
type MetricsCollector interface {
	RecordTransactionCreated(ctx context.Context, originKind string)
	RecordTransactionResolved(ctx context.Context, status string)
	RecordPropagationFailure(ctx context.Context, step string)
}

// Notification kinds dispatched by the engine.
const (
	NotifyOfferAccepted        = "offer_accepted"
	NotifyBuyConfirmed         = "buy_confirmed"
	NotifyBidWon               = "bid_won"
	NotifyMeetupProposed       = "meetup_proposed"
	NotifyMeetupAccepted       = "meetup_accepted"
	NotifyTransactionCompleted = "transaction_completed"
	NotifyTransactionCancelled = "transaction_cancelled"
	NotifyTransactionExpired   = "transaction_expired"
	NotifyReviewPrompt         = "review_prompt"
)

// ProposeMeetupRequest carries a meetup proposal
type ProposeMeetupRequest struct {
	TransactionID uuid.UUID `validate:"required"`
	ProposerID    uuid.UUID `validate:"required"`
	Time          time.Time `validate:"required"`
	Location      string    `validate:"required"`
	Latitude      *float64
	Longitude     *float64
}
