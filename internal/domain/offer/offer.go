package offer

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// Offer is a negotiated price proposal from a buyer. A buyer may hold
// multiple offers per product over time; resubmission after rejection resets
// the offer to pending.
type Offer struct {
	ID        uuid.UUID    `json:"id"`
	ProductID uuid.UUID    `json:"product_id"`
	BuyerID   uuid.UUID    `json:"buyer_id"`
	SellerID  uuid.UUID    `json:"seller_id"`
	Amount    values.Money `json:"amount"`
	Status    Status       `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusAccepted
	StatusRejected
	StatusExpired
	StatusWithdrawn
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	case StatusWithdrawn:
		return "withdrawn"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to its enum value.
func ParseStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "accepted":
		return StatusAccepted
	case "rejected":
		return StatusRejected
	case "expired":
		return StatusExpired
	case "withdrawn":
		return StatusWithdrawn
	case "completed":
		return StatusCompleted
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPending
	}
}

func NewOffer(productID, buyerID, sellerID uuid.UUID, amount values.Money) *Offer {
	now := time.Now()
	return &Offer{
		ID:        uuid.New(),
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Accept transitions a pending offer to accepted.
func (o *Offer) Accept() error {
	if o.Status != StatusPending {
		return errors.NewConflictError("offer is not pending")
	}
	o.Status = StatusAccepted
	o.UpdatedAt = time.Now()
	return nil
}

// Reject declines a pending offer. The buyer may later resubmit.
func (o *Offer) Reject() error {
	if o.Status != StatusPending {
		return errors.NewConflictError("offer is not pending")
	}
	o.Status = StatusRejected
	o.UpdatedAt = time.Now()
	return nil
}

// Resubmit updates the amount and resets the offer to pending. Permitted
// only while the offer is pending or rejected.
func (o *Offer) Resubmit(amount values.Money) error {
	if o.Status != StatusPending && o.Status != StatusRejected {
		return errors.NewConflictError("offer can no longer be updated")
	}
	o.Amount = amount
	o.Status = StatusPending
	o.UpdatedAt = time.Now()
	return nil
}

// Withdraw retracts a pending offer.
func (o *Offer) Withdraw() error {
	if o.Status != StatusPending {
		return errors.NewConflictError("offer is not pending")
	}
	o.Status = StatusWithdrawn
	o.UpdatedAt = time.Now()
	return nil
}
