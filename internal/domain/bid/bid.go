package bid

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// Bid is a prospective agreement on an auction listing's price. At most one
// bid per product holds StatusActive before auction close.
type Bid struct {
	ID        uuid.UUID    `json:"id"`
	ProductID uuid.UUID    `json:"product_id"`
	BidderID  uuid.UUID    `json:"bidder_id"`
	Amount    values.Money `json:"amount"`
	Status    Status       `json:"status"`

	PlacedAt  time.Time `json:"placed_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusActive Status = iota
	StatusOutbid
	StatusWon
	StatusLost
	StatusCompleted
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusOutbid:
		return "outbid"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to its enum value.
func ParseStatus(s string) Status {
	switch s {
	case "active":
		return StatusActive
	case "outbid":
		return StatusOutbid
	case "won":
		return StatusWon
	case "lost":
		return StatusLost
	case "completed":
		return StatusCompleted
	case "cancelled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

func NewBid(productID, bidderID uuid.UUID, amount values.Money) *Bid {
	now := time.Now()
	return &Bid{
		ID:        uuid.New(),
		ProductID: productID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    StatusActive,
		PlacedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkOutbid transitions the previous high bid when a higher bid lands.
func (b *Bid) MarkOutbid() {
	b.Status = StatusOutbid
	b.UpdatedAt = time.Now()
}

// MarkWon records the bid as the auction winner.
func (b *Bid) MarkWon() {
	b.Status = StatusWon
	b.UpdatedAt = time.Now()
}

// MarkLost records a non-winning bid at auction close.
func (b *Bid) MarkLost() {
	b.Status = StatusLost
	b.UpdatedAt = time.Now()
}

// ValidateAmount runs the bid ranking ladder. Rules are evaluated in order
// and the first failure wins:
//
//  1. amount must be at least the starting price
//  2. against a current high bid: amount must strictly exceed it and the
//     difference must be an exact multiple of the increment (when set)
//  3. with no prior bid: amount must be at least price+increment and the
//     difference from the starting price an exact multiple of the increment
//
// Ties are impossible by construction: rule 2 requires a strict increase.
func ValidateAmount(startingPrice, increment values.Money, high *Bid, amount values.Money) error {
	if !amount.GreaterThanOrEqual(startingPrice) {
		return errors.ErrBidTooLow
	}

	hasIncrement := increment.IsPositive()

	if high != nil {
		if !amount.GreaterThan(high.Amount) {
			return errors.NewValidationError("BID_NOT_HIGHER",
				"bid must exceed the current high bid")
		}
		if hasIncrement {
			diff, err := amount.Sub(high.Amount)
			if err != nil {
				return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
			}
			ok, err := diff.IsMultipleOf(increment)
			if err != nil {
				return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
			}
			if !ok {
				return errors.NewValidationError("BID_OFF_INCREMENT",
					"bid must follow the listing's increment")
			}
		}
		return nil
	}

	if hasIncrement {
		floor, err := startingPrice.Add(increment)
		if err != nil {
			return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
		}
		if !amount.GreaterThanOrEqual(floor) {
			return errors.ErrBidTooLow
		}
		diff, err := amount.Sub(startingPrice)
		if err != nil {
			return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
		}
		ok, err := diff.IsMultipleOf(increment)
		if err != nil {
			return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
		}
		if !ok {
			return errors.NewValidationError("BID_OFF_INCREMENT",
				"bid must follow the listing's increment")
		}
	}

	return nil
}
