package fixtures

import (
	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// OfferBuilder builds test Offer entities
type OfferBuilder struct {
	id        uuid.UUID
	productID uuid.UUID
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	amount    values.Money
	status    offer.Status
}

// NewOfferBuilder creates an OfferBuilder with a pending offer as its
// default.
func NewOfferBuilder() *OfferBuilder {
	return &OfferBuilder{
		id:        uuid.New(),
		productID: uuid.New(),
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		amount:    values.MustNewMoneyFromFloat(200.00, "USD"),
		status:    offer.StatusPending,
	}
}

func (b *OfferBuilder) WithProduct(productID uuid.UUID) *OfferBuilder {
	b.productID = productID
	return b
}

func (b *OfferBuilder) WithBuyer(buyerID uuid.UUID) *OfferBuilder {
	b.buyerID = buyerID
	return b
}

func (b *OfferBuilder) WithSeller(sellerID uuid.UUID) *OfferBuilder {
	b.sellerID = sellerID
	return b
}

func (b *OfferBuilder) WithAmount(amount float64) *OfferBuilder {
	b.amount = values.MustNewMoneyFromFloat(amount, "USD")
	return b
}

func (b *OfferBuilder) WithStatus(status offer.Status) *OfferBuilder {
	b.status = status
	return b
}

func (b *OfferBuilder) Build() *offer.Offer {
	o := offer.NewOffer(b.productID, b.buyerID, b.sellerID, b.amount)
	o.ID = b.id
	o.Status = b.status
	return o
}

// BuyBuilder builds test Buy entities
type BuyBuilder struct {
	id        uuid.UUID
	productID uuid.UUID
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	price     values.Money
	status    buy.Status
}

// NewBuyBuilder creates a BuyBuilder with a pending purchase request as its
// default.
func NewBuyBuilder() *BuyBuilder {
	return &BuyBuilder{
		id:        uuid.New(),
		productID: uuid.New(),
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		price:     values.MustNewMoneyFromFloat(250.00, "USD"),
		status:    buy.StatusPending,
	}
}

func (b *BuyBuilder) WithProduct(productID uuid.UUID) *BuyBuilder {
	b.productID = productID
	return b
}

func (b *BuyBuilder) WithBuyer(buyerID uuid.UUID) *BuyBuilder {
	b.buyerID = buyerID
	return b
}

func (b *BuyBuilder) WithSeller(sellerID uuid.UUID) *BuyBuilder {
	b.sellerID = sellerID
	return b
}

func (b *BuyBuilder) WithPrice(amount float64) *BuyBuilder {
	b.price = values.MustNewMoneyFromFloat(amount, "USD")
	return b
}

func (b *BuyBuilder) WithStatus(status buy.Status) *BuyBuilder {
	b.status = status
	return b
}

func (b *BuyBuilder) Build() *buy.Buy {
	bb := buy.NewBuy(b.productID, b.buyerID, b.sellerID, b.price)
	bb.ID = b.id
	bb.Status = b.status
	return bb
}
