package sharing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
)

// DefaultCeiling is how long one side may share continuously before the
// resolver force-stops it.
const DefaultCeiling = 2 * time.Hour

// Service manages live location sharing between conversation participants
// while a meetup is being coordinated.
type Service interface {
	// StartSharing turns on sharing for a participant
	StartSharing(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.LocationSharingSession, error)
	// StopSharing turns off sharing for a participant
	StopSharing(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.LocationSharingSession, error)
	// ExpireOverdue force-stops sides sharing past the ceiling
	ExpireOverdue(ctx context.Context, now time.Time) error
}

// SessionRepository defines location session storage
type SessionRepository interface {
	Create(ctx context.Context, s *conversation.LocationSharingSession) error
	Update(ctx context.Context, s *conversation.LocationSharingSession) error
	// ActiveForConversation returns the open session, nil when none.
	ActiveForConversation(ctx context.Context, conversationID uuid.UUID) (*conversation.LocationSharingSession, error)
	// ListSharing returns open sessions with at least one side sharing.
	ListSharing(ctx context.Context) ([]*conversation.LocationSharingSession, error)
}

// ConversationRepository resolves the participants of a conversation
type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error)
}

// Notifier is the best-effort notification sink
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{})
}

// EventEmitter is the realtime fan-out collaborator
type EventEmitter interface {
	Emit(room, event string, payload interface{})
}
