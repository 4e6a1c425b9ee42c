package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// TransactionBuilder builds test Transaction entities
type TransactionBuilder struct {
	id            uuid.UUID
	origin        transaction.Origin
	productID     uuid.UUID
	buyerID       uuid.UUID
	sellerID      uuid.UUID
	agreedPrice   values.Money
	originalPrice values.Money
	meetupAt      *time.Time
	meetupBy      *uuid.UUID
	meetupStatus  transaction.MeetupStatus
}

// NewTransactionBuilder creates a TransactionBuilder for an active
// offer-origin transaction.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		id:            uuid.New(),
		origin:        transaction.NewOfferOrigin(uuid.New()),
		productID:     uuid.New(),
		buyerID:       uuid.New(),
		sellerID:      uuid.New(),
		agreedPrice:   values.MustNewMoneyFromFloat(200.00, "USD"),
		originalPrice: values.MustNewMoneyFromFloat(250.00, "USD"),
		meetupStatus:  transaction.MeetupNotScheduled,
	}
}

func (b *TransactionBuilder) WithOrigin(origin transaction.Origin) *TransactionBuilder {
	b.origin = origin
	return b
}

func (b *TransactionBuilder) WithProduct(productID uuid.UUID) *TransactionBuilder {
	b.productID = productID
	return b
}

func (b *TransactionBuilder) WithParties(buyerID, sellerID uuid.UUID) *TransactionBuilder {
	b.buyerID = buyerID
	b.sellerID = sellerID
	return b
}

func (b *TransactionBuilder) WithAgreedPrice(amount float64) *TransactionBuilder {
	b.agreedPrice = values.MustNewMoneyFromFloat(amount, "USD")
	return b
}

// WithScheduledMeetup places the transaction in the scheduled meetup state,
// proposed by the buyer.
func (b *TransactionBuilder) WithScheduledMeetup(at time.Time) *TransactionBuilder {
	b.meetupAt = &at
	b.meetupStatus = transaction.MeetupScheduled
	return b
}

// WithConfirmedMeetup places the transaction in the confirmed meetup state.
func (b *TransactionBuilder) WithConfirmedMeetup(at time.Time) *TransactionBuilder {
	b.meetupAt = &at
	b.meetupStatus = transaction.MeetupConfirmed
	return b
}

func (b *TransactionBuilder) Build() *transaction.Transaction {
	tx := transaction.New(b.origin, b.productID, b.buyerID, b.sellerID, b.agreedPrice, b.originalPrice)
	tx.ID = b.id
	if b.meetupAt != nil {
		tx.MeetupStatus = b.meetupStatus
		tx.ScheduledMeetupAt = b.meetupAt
		tx.MeetupLocation = "Central Station, north entrance"
		proposer := b.buyerID
		tx.MeetupProposedBy = &proposer
	}
	return tx
}
