package transaction

import (
	"fmt"

	"github.com/google/uuid"
)

// OriginKind discriminates which negotiation record a transaction was
// created from.
type OriginKind int

const (
	OriginOffer OriginKind = iota
	OriginBuy
	OriginBid
)

func (k OriginKind) String() string {
	switch k {
	case OriginOffer:
		return "offer"
	case OriginBuy:
		return "buy"
	case OriginBid:
		return "bid"
	default:
		return "unknown"
	}
}

// ParseOriginKind converts a stored kind string back to its enum value.
func ParseOriginKind(s string) (OriginKind, error) {
	switch s {
	case "offer":
		return OriginOffer, nil
	case "buy":
		return OriginBuy, nil
	case "bid":
		return OriginBid, nil
	default:
		return 0, fmt.Errorf("unknown origin kind %q", s)
	}
}

// Origin is a tagged union pointing at exactly one of Offer, Buy, or Bid.
// Modeling it as a sum type keeps propagation an exhaustive switch instead
// of three parallel null checks.
type Origin struct {
	Kind OriginKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func NewOfferOrigin(offerID uuid.UUID) Origin {
	return Origin{Kind: OriginOffer, ID: offerID}
}

func NewBuyOrigin(buyID uuid.UUID) Origin {
	return Origin{Kind: OriginBuy, ID: buyID}
}

func NewBidOrigin(bidID uuid.UUID) Origin {
	return Origin{Kind: OriginBid, ID: bidID}
}
