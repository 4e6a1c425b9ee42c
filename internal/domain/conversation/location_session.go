package conversation

import (
	"time"

	"github.com/google/uuid"
)

// LocationSharingSession tracks live location sharing between the two
// conversation participants while coordinating a meetup. A session ends when
// both participants stop sharing, or when the resolver force-stops a
// participant who has been sharing past the hard ceiling.
type LocationSharingSession struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`

	BuyerSharing       bool       `json:"buyer_sharing"`
	BuyerSharingSince  *time.Time `json:"buyer_sharing_since,omitempty"`
	BuyerStoppedAt     *time.Time `json:"buyer_stopped_at,omitempty"`
	SellerSharing      bool       `json:"seller_sharing"`
	SellerSharingSince *time.Time `json:"seller_sharing_since,omitempty"`
	SellerStoppedAt    *time.Time `json:"seller_stopped_at,omitempty"`

	EndedAt *time.Time `json:"ended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewLocationSharingSession(conversationID uuid.UUID) *LocationSharingSession {
	now := time.Now()
	return &LocationSharingSession{
		ID:             uuid.New(),
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActive reports whether the session has not yet ended.
func (s *LocationSharingSession) IsActive() bool {
	return s.EndedAt == nil
}

// StartSharing turns on sharing for one side. isBuyer selects which.
func (s *LocationSharingSession) StartSharing(isBuyer bool, now time.Time) {
	if isBuyer {
		s.BuyerSharing = true
		s.BuyerSharingSince = &now
		s.BuyerStoppedAt = nil
	} else {
		s.SellerSharing = true
		s.SellerSharingSince = &now
		s.SellerStoppedAt = nil
	}
	s.UpdatedAt = now
}

// StopSharing turns off sharing for one side and ends the session when both
// sides are stopped.
func (s *LocationSharingSession) StopSharing(isBuyer bool, now time.Time) {
	if isBuyer {
		s.BuyerSharing = false
		s.BuyerStoppedAt = &now
	} else {
		s.SellerSharing = false
		s.SellerStoppedAt = &now
	}
	if !s.BuyerSharing && !s.SellerSharing {
		s.EndedAt = &now
	}
	s.UpdatedAt = now
}

// OverdueSides returns which sides have been sharing continuously for longer
// than ceiling at the given time.
func (s *LocationSharingSession) OverdueSides(now time.Time, ceiling time.Duration) (buyer, seller bool) {
	if s.BuyerSharing && s.BuyerSharingSince != nil && now.Sub(*s.BuyerSharingSince) > ceiling {
		buyer = true
	}
	if s.SellerSharing && s.SellerSharingSince != nil && now.Sub(*s.SellerSharingSince) > ceiling {
		seller = true
	}
	return buyer, seller
}
