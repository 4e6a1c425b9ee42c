package buy

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// Buy is a fixed-price purchase intent awaiting seller confirmation.
type Buy struct {
	ID            uuid.UUID    `json:"id"`
	ProductID     uuid.UUID    `json:"product_id"`
	BuyerID       uuid.UUID    `json:"buyer_id"`
	SellerID      uuid.UUID    `json:"seller_id"`
	PurchasePrice values.Money `json:"purchase_price"`
	Status        Status       `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusConfirmedPendingMeetup
	StatusCompleted
	StatusCancelledByBuyer
	StatusCancelledBySeller
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmedPendingMeetup:
		return "confirmed_pending_meetup"
	case StatusCompleted:
		return "completed"
	case StatusCancelledByBuyer:
		return "cancelled_by_buyer"
	case StatusCancelledBySeller:
		return "cancelled_by_seller"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to its enum value.
func ParseStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "confirmed_pending_meetup":
		return StatusConfirmedPendingMeetup
	case "completed":
		return StatusCompleted
	case "cancelled_by_buyer":
		return StatusCancelledByBuyer
	case "cancelled_by_seller":
		return StatusCancelledBySeller
	case "expired":
		return StatusExpired
	default:
		return StatusPending
	}
}

func NewBuy(productID, buyerID, sellerID uuid.UUID, purchasePrice values.Money) *Buy {
	now := time.Now()
	return &Buy{
		ID:            uuid.New(),
		ProductID:     productID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		PurchasePrice: purchasePrice,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Cancel retracts a pending purchase request.
func (b *Buy) Cancel(byBuyer bool) error {
	if b.Status != StatusPending {
		return errors.NewConflictError("buy is not pending")
	}
	if byBuyer {
		b.Status = StatusCancelledByBuyer
	} else {
		b.Status = StatusCancelledBySeller
	}
	b.UpdatedAt = time.Now()
	return nil
}

// Confirm is the seller's acceptance of the purchase intent.
func (b *Buy) Confirm() error {
	if b.Status != StatusPending {
		return errors.NewConflictError("buy is not pending")
	}
	b.Status = StatusConfirmedPendingMeetup
	b.UpdatedAt = time.Now()
	return nil
}
