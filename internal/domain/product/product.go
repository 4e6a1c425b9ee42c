package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// Product is a listing offered by a seller. Once negotiation begins its
// status is mutated only by the status propagator and the scheduled resolver.
type Product struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Title    string    `json:"title"`

	Price    values.Money `json:"price"`
	SaleType SaleType     `json:"sale_type"`

	AllowOffers  bool         `json:"allow_offers"`
	AllowBidding bool         `json:"allow_bidding"`
	MinimumBid   values.Money `json:"minimum_bid"` // bid increment
	BiddingEndsAt *time.Time  `json:"bidding_ends_at,omitempty"`

	Status Status `json:"status"`

	SoldAt *time.Time `json:"sold_at,omitempty"`
	SoldTo *uuid.UUID `json:"sold_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SaleType int

const (
	SaleTypeFixed SaleType = iota
	SaleTypeNegotiable
	SaleTypeBidding
)

func (s SaleType) String() string {
	switch s {
	case SaleTypeFixed:
		return "fixed"
	case SaleTypeNegotiable:
		return "negotiable"
	case SaleTypeBidding:
		return "bidding"
	default:
		return "unknown"
	}
}

type Status int

const (
	StatusDraft Status = iota
	StatusActive
	StatusInTransaction
	StatusSold
	StatusExpired
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusActive:
		return "active"
	case StatusInTransaction:
		return "in_transaction"
	case StatusSold:
		return "sold"
	case StatusExpired:
		return "expired"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to its enum value.
func ParseStatus(s string) Status {
	switch s {
	case "draft":
		return StatusDraft
	case "active":
		return StatusActive
	case "in_transaction":
		return StatusInTransaction
	case "sold":
		return StatusSold
	case "expired":
		return StatusExpired
	case "removed":
		return StatusRemoved
	default:
		return StatusDraft
	}
}

// ParseSaleType converts a stored sale type string back to its enum value.
func ParseSaleType(s string) SaleType {
	switch s {
	case "negotiable":
		return SaleTypeNegotiable
	case "bidding":
		return SaleTypeBidding
	default:
		return SaleTypeFixed
	}
}

func NewProduct(sellerID uuid.UUID, title string, price values.Money, saleType SaleType) *Product {
	now := time.Now()
	return &Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     title,
		Price:     price,
		SaleType:  saleType,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsBiddingOpen reports whether bids may still be placed at the given time.
func (p *Product) IsBiddingOpen(now time.Time) bool {
	if p.SaleType != SaleTypeBidding || p.Status != StatusActive {
		return false
	}
	return p.BiddingEndsAt != nil && now.Before(*p.BiddingEndsAt)
}

// MarkInTransaction flips the listing off the market while a transaction is open.
func (p *Product) MarkInTransaction() {
	p.Status = StatusInTransaction
	p.UpdatedAt = time.Now()
}

// MarkSold records the concluded sale.
func (p *Product) MarkSold(buyerID uuid.UUID, at time.Time) {
	p.Status = StatusSold
	p.SoldAt = &at
	p.SoldTo = &buyerID
	p.UpdatedAt = at
}

// Reopen returns the listing to the market after a cancelled or expired
// transaction.
func (p *Product) Reopen() {
	p.Status = StatusActive
	p.SoldAt = nil
	p.SoldTo = nil
	p.UpdatedAt = time.Now()
}

// Expire closes an auction listing that ended without bids.
func (p *Product) Expire() {
	p.Status = StatusExpired
	p.UpdatedAt = time.Now()
}
