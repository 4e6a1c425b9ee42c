package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// ProductBuilder builds test Product entities
type ProductBuilder struct {
	id            uuid.UUID
	sellerID      uuid.UUID
	title         string
	price         values.Money
	saleType      product.SaleType
	status        product.Status
	allowOffers   bool
	allowBidding  bool
	minimumBid    values.Money
	biddingEndsAt *time.Time
}

// NewProductBuilder creates a ProductBuilder with an active fixed-price
// listing as its default.
func NewProductBuilder() *ProductBuilder {
	return &ProductBuilder{
		id:       uuid.New(),
		sellerID: uuid.New(),
		title:    "Road bike, barely used",
		price:    values.MustNewMoneyFromFloat(250.00, "USD"),
		saleType: product.SaleTypeFixed,
		status:   product.StatusActive,
	}
}

func (b *ProductBuilder) WithID(id uuid.UUID) *ProductBuilder {
	b.id = id
	return b
}

func (b *ProductBuilder) WithSeller(sellerID uuid.UUID) *ProductBuilder {
	b.sellerID = sellerID
	return b
}

func (b *ProductBuilder) WithTitle(title string) *ProductBuilder {
	b.title = title
	return b
}

func (b *ProductBuilder) WithPrice(amount float64) *ProductBuilder {
	b.price = values.MustNewMoneyFromFloat(amount, "USD")
	return b
}

func (b *ProductBuilder) WithStatus(status product.Status) *ProductBuilder {
	b.status = status
	return b
}

// Negotiable marks the listing as accepting offers.
func (b *ProductBuilder) Negotiable() *ProductBuilder {
	b.saleType = product.SaleTypeNegotiable
	b.allowOffers = true
	return b
}

// Auction marks the listing as a bidding sale with the given increment and
// close time.
func (b *ProductBuilder) Auction(increment float64, endsAt time.Time) *ProductBuilder {
	b.saleType = product.SaleTypeBidding
	b.allowBidding = true
	b.minimumBid = values.MustNewMoneyFromFloat(increment, "USD")
	b.biddingEndsAt = &endsAt
	return b
}

func (b *ProductBuilder) Build() *product.Product {
	p := product.NewProduct(b.sellerID, b.title, b.price, b.saleType)
	p.ID = b.id
	p.Status = b.status
	p.AllowOffers = b.allowOffers
	p.AllowBidding = b.allowBidding
	p.MinimumBid = b.minimumBid
	p.BiddingEndsAt = b.biddingEndsAt
	return p
}
