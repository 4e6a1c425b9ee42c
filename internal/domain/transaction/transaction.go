package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

const (
	// ExpiryWindow is how long a transaction may sit without a completed
	// meetup before the resolver expires it.
	ExpiryWindow = 24 * time.Hour

	// CancellationLockout blocks cancellation this close to a scheduled
	// meetup.
	CancellationLockout = time.Hour
)

// Transaction is the canonical agreement created when a negotiation is
// accepted. It owns the agreed price, the parties, and the meetup
// sub-state-machine. Terminal transactions are retained for audit and
// review eligibility, never deleted.
type Transaction struct {
	ID     uuid.UUID `json:"id"`
	Origin Origin    `json:"origin"`

	ProductID uuid.UUID `json:"product_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`

	AgreedPrice   values.Money `json:"agreed_price"`
	OriginalPrice values.Money `json:"original_price"`

	Status       Status       `json:"status"`
	MeetupStatus MeetupStatus `json:"meetup_status"`

	ScheduledMeetupAt *time.Time `json:"scheduled_meetup_at,omitempty"`
	MeetupLocation    string     `json:"meetup_location,omitempty"`
	MeetupLatitude    *float64   `json:"meetup_latitude,omitempty"`
	MeetupLongitude   *float64   `json:"meetup_longitude,omitempty"`
	MeetupProposedBy  *uuid.UUID `json:"meetup_proposed_by,omitempty"`

	BuyerConfirmedCompletion  bool `json:"buyer_confirmed_completion"`
	SellerConfirmedCompletion bool `json:"seller_confirmed_completion"`

	ReferenceNumber values.ReferenceNumber `json:"reference_number,omitempty"`

	CancelledBy  *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	// Version guards concurrent writers: every update is conditional on the
	// version read, and a mismatch surfaces as a conflict.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelledByBuyer
	StatusCancelledBySeller
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelledByBuyer:
		return "cancelled_by_buyer"
	case StatusCancelledBySeller:
		return "cancelled_by_seller"
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
	case "completed":
		return StatusCompleted
	case "cancelled_by_buyer":
		return StatusCancelledByBuyer
	case "cancelled_by_seller":
		return StatusCancelledBySeller
	case "expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s != StatusActive
}

type MeetupStatus int

const (
	MeetupNotScheduled MeetupStatus = iota
	MeetupScheduled
	MeetupConfirmed
	MeetupCompleted
	MeetupCancelled
)

func (s MeetupStatus) String() string {
	switch s {
	case MeetupNotScheduled:
		return "not_scheduled"
	case MeetupScheduled:
		return "scheduled"
	case MeetupConfirmed:
		return "confirmed"
	case MeetupCompleted:
		return "completed"
	case MeetupCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseMeetupStatus converts a stored meetup status string back to its enum value.
func ParseMeetupStatus(s string) MeetupStatus {
	switch s {
	case "not_scheduled":
		return MeetupNotScheduled
	case "scheduled":
		return MeetupScheduled
	case "confirmed":
		return MeetupConfirmed
	case "completed":
		return MeetupCompleted
	case "cancelled":
		return MeetupCancelled
	default:
		return MeetupNotScheduled
	}
}

// New creates an active transaction from an accepted negotiation.
func New(origin Origin, productID, buyerID, sellerID uuid.UUID, agreedPrice, originalPrice values.Money) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:             uuid.New(),
		Origin:         origin,
		ProductID:      productID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		AgreedPrice:    agreedPrice,
		OriginalPrice:  originalPrice,
		Status:         StatusActive,
		MeetupStatus:   MeetupNotScheduled,
		ExpiresAt:      now.Add(ExpiryWindow),
		LastActivityAt: now,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsParticipant reports whether userID is the buyer or the seller.
func (t *Transaction) IsParticipant(userID uuid.UUID) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// OtherParty returns the counterpart of userID in the transaction.
func (t *Transaction) OtherParty(userID uuid.UUID) uuid.UUID {
	if userID == t.BuyerID {
		return t.SellerID
	}
	return t.BuyerID
}

func (t *Transaction) touch(now time.Time) {
	t.LastActivityAt = now
	t.UpdatedAt = now
}

// ProposeMeetup schedules a meetup. The proposed time must be strictly in
// the future.
func (t *Transaction) ProposeMeetup(proposer uuid.UUID, at time.Time, location string, lat, lng *float64, now time.Time) error {
	if t.Status != StatusActive {
		return errors.NewConflictError("transaction is not active")
	}
	if !t.IsParticipant(proposer) {
		return errors.NewAuthorizationError("only a participant may propose a meetup")
	}
	if !at.After(now) {
		return errors.NewValidationError("MEETUP_TIME_PAST", "meetup time must be in the future")
	}

	t.MeetupStatus = MeetupScheduled
	t.ScheduledMeetupAt = &at
	t.MeetupLocation = location
	t.MeetupLatitude = lat
	t.MeetupLongitude = lng
	t.MeetupProposedBy = &proposer
	t.touch(now)
	return nil
}

// AcceptMeetup confirms a scheduled meetup. The proposer may not accept
// their own proposal.
func (t *Transaction) AcceptMeetup(accepter uuid.UUID, now time.Time) error {
	if t.Status != StatusActive {
		return errors.NewConflictError("transaction is not active")
	}
	if t.MeetupStatus != MeetupScheduled {
		return errors.NewConflictError("no meetup proposal to accept")
	}
	if !t.IsParticipant(accepter) {
		return errors.NewAuthorizationError("only a participant may accept a meetup")
	}
	if t.MeetupProposedBy != nil && *t.MeetupProposedBy == accepter {
		return errors.NewAuthorizationError("proposer cannot accept their own meetup proposal")
	}

	t.MeetupStatus = MeetupConfirmed
	t.touch(now)
	return nil
}

// Complete is the seller-side terminal success transition, reachable only
// from a confirmed meetup.
func (t *Transaction) Complete(seller uuid.UUID, ref values.ReferenceNumber, now time.Time) error {
	if t.Status != StatusActive {
		return errors.NewConflictError("transaction is not active")
	}
	if seller != t.SellerID {
		return errors.NewAuthorizationError("only the seller may mark the transaction sold")
	}
	if t.MeetupStatus != MeetupConfirmed {
		return errors.NewConflictError("meetup has not been confirmed")
	}

	t.Status = StatusCompleted
	t.MeetupStatus = MeetupCompleted
	t.SellerConfirmedCompletion = true
	t.ReferenceNumber = ref
	t.CompletedAt = &now
	t.touch(now)
	return nil
}

// Cancel terminates an active transaction. When a meetup is scheduled,
// cancellation is blocked inside the lockout window before it.
func (t *Transaction) Cancel(canceller uuid.UUID, reason string, now time.Time) error {
	if t.Status != StatusActive {
		return errors.NewConflictError("transaction is not active")
	}
	if !t.IsParticipant(canceller) {
		return errors.NewAuthorizationError("only a participant may cancel the transaction")
	}
	if t.MeetupStatus == MeetupScheduled || t.MeetupStatus == MeetupConfirmed {
		if t.ScheduledMeetupAt != nil && now.After(t.ScheduledMeetupAt.Add(-CancellationLockout)) {
			return errors.NewConflictError("cannot cancel within one hour of the scheduled meetup")
		}
	}

	if canceller == t.BuyerID {
		t.Status = StatusCancelledByBuyer
	} else {
		t.Status = StatusCancelledBySeller
	}
	t.MeetupStatus = MeetupCancelled
	t.CancelledBy = &canceller
	t.CancelReason = reason
	t.CancelledAt = &now
	t.touch(now)
	return nil
}

// Expire is the resolver-side terminal transition for stale transactions.
func (t *Transaction) Expire(now time.Time) error {
	if t.Status != StatusActive {
		return errors.NewConflictError("transaction is not active")
	}
	t.Status = StatusExpired
	t.touch(now)
	return nil
}

// IsReviewEligible reports whether the parties may review each other.
// Completion unlocks reviews for both sides at once.
func (t *Transaction) IsReviewEligible() bool {
	return t.Status == StatusCompleted
}

// IsStale reports whether the transaction is eligible for expiry at the
// given time: either its own deadline has passed without a scheduled meetup,
// or the scheduled meetup is more than the expiry window in the past.
func (t *Transaction) IsStale(now time.Time) bool {
	if t.Status != StatusActive {
		return false
	}
	if t.ScheduledMeetupAt != nil {
		return now.Sub(*t.ScheduledMeetupAt) > ExpiryWindow
	}
	return now.After(t.ExpiresAt)
}
