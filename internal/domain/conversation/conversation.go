package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation links two participants around a negotiation. It is a display
// cache, not a source of truth: once a negotiation is accepted the
// transaction id is back-filled so later lookups resolve transaction state
// without re-deriving it from the origin record.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	SellerID     uuid.UUID `json:"seller_id"`

	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	OfferID       *uuid.UUID `json:"offer_id,omitempty"`
	BuyID         *uuid.UUID `json:"buy_id,omitempty"`
	BidID         *uuid.UUID `json:"bid_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`

	Preview       string    `json:"preview,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversation(buyerID, sellerID uuid.UUID, productID *uuid.UUID) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AttachTransaction back-fills the transaction pointer after acceptance.
func (c *Conversation) AttachTransaction(transactionID uuid.UUID) {
	c.TransactionID = &transactionID
	c.UpdatedAt = time.Now()
}

// RecordMessage updates the denormalized preview. Last writer wins.
func (c *Conversation) RecordMessage(preview string, at time.Time) {
	c.Preview = preview
	c.LastMessageAt = at
	c.UpdatedAt = at
}

// Participants returns both parties to the conversation.
func (c *Conversation) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{c.BuyerID, c.SellerID}
}

// Message is a single chat entry; system-authored messages carry the engine
// sender id.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Body           string    `json:"body"`
	IsSystem       bool      `json:"is_system"`
	CreatedAt      time.Time `json:"created_at"`
}
