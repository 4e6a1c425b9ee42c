package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// BidBuilder builds test Bid entities
type BidBuilder struct {
	id        uuid.UUID
	productID uuid.UUID
	bidderID  uuid.UUID
	amount    values.Money
	status    bid.Status
	placedAt  time.Time
}

// NewBidBuilder creates a BidBuilder with an active bid as its default.
func NewBidBuilder() *BidBuilder {
	return &BidBuilder{
		id:        uuid.New(),
		productID: uuid.New(),
		bidderID:  uuid.New(),
		amount:    values.MustNewMoneyFromFloat(110.00, "USD"),
		status:    bid.StatusActive,
		placedAt:  time.Now(),
	}
}

func (b *BidBuilder) WithProduct(productID uuid.UUID) *BidBuilder {
	b.productID = productID
	return b
}

func (b *BidBuilder) WithBidder(bidderID uuid.UUID) *BidBuilder {
	b.bidderID = bidderID
	return b
}

func (b *BidBuilder) WithAmount(amount float64) *BidBuilder {
	b.amount = values.MustNewMoneyFromFloat(amount, "USD")
	return b
}

func (b *BidBuilder) WithStatus(status bid.Status) *BidBuilder {
	b.status = status
	return b
}

func (b *BidBuilder) PlacedAt(at time.Time) *BidBuilder {
	b.placedAt = at
	return b
}

func (b *BidBuilder) Build() *bid.Bid {
	bb := bid.NewBid(b.productID, b.bidderID, b.amount)
	bb.ID = b.id
	bb.Status = b.status
	bb.PlacedAt = b.placedAt
	return bb
}
