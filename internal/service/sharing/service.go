package sharing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

// service implements the Service interface
type service struct {
	sessions SessionRepository
	convs    ConversationRepository
	notifier Notifier
	events   EventEmitter
	ceiling  time.Duration
	logger   *slog.Logger
}

// NewService creates a new location sharing service. A non-positive ceiling
// falls back to the default.
func NewService(
	sessions SessionRepository,
	convs ConversationRepository,
	notifier Notifier,
	events EventEmitter,
	ceiling time.Duration,
	logger *slog.Logger,
) Service {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &service{
		sessions: sessions,
		convs:    convs,
		notifier: notifier,
		events:   events,
		ceiling:  ceiling,
		logger:   logger,
	}
}

// StartSharing turns on sharing for a participant, opening a session if the
// conversation has none.
func (s *service) StartSharing(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.LocationSharingSession, error) {
	conv, isBuyer, err := s.resolveSide(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.ActiveForConversation(ctx, conversationID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load sharing session").WithCause(err)
	}
	now := time.Now()
	if sess == nil {
		sess = conversation.NewLocationSharingSession(conversationID)
		sess.StartSharing(isBuyer, now)
		if err := s.sessions.Create(ctx, sess); err != nil {
			return nil, errors.NewInternalError("failed to create sharing session").WithCause(err)
		}
	} else {
		sess.StartSharing(isBuyer, now)
		if err := s.sessions.Update(ctx, sess); err != nil {
			return nil, errors.NewInternalError("failed to update sharing session").WithCause(err)
		}
	}

	s.emit(conv, "location_sharing_started", userID)
	return sess, nil
}

// StopSharing turns off sharing for a participant. The session ends when
// both sides have stopped.
func (s *service) StopSharing(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.LocationSharingSession, error) {
	conv, isBuyer, err := s.resolveSide(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.ActiveForConversation(ctx, conversationID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load sharing session").WithCause(err)
	}
	if sess == nil {
		return nil, errors.NewNotFoundError("location sharing session")
	}

	sess.StopSharing(isBuyer, time.Now())
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, errors.NewInternalError("failed to update sharing session").WithCause(err)
	}

	s.emit(conv, "location_sharing_stopped", userID)
	return sess, nil
}

// ExpireOverdue force-stops every side that has been sharing continuously
// past the ceiling. A failure on one session is logged and the sweep moves
// on.
func (s *service) ExpireOverdue(ctx context.Context, now time.Time) error {
	open, err := s.sessions.ListSharing(ctx)
	if err != nil {
		return errors.NewInternalError("failed to list sharing sessions").WithCause(err)
	}

	for _, sess := range open {
		if err := s.expireOne(ctx, sess, now); err != nil {
			s.logger.Error("sharing expiry failed",
				slog.String("session_id", sess.ID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

func (s *service) expireOne(ctx context.Context, sess *conversation.LocationSharingSession, now time.Time) error {
	buyerOverdue, sellerOverdue := sess.OverdueSides(now, s.ceiling)
	if !buyerOverdue && !sellerOverdue {
		return nil
	}

	if buyerOverdue {
		sess.StopSharing(true, now)
	}
	if sellerOverdue {
		sess.StopSharing(false, now)
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		return err
	}

	conv, err := s.convs.GetByID(ctx, sess.ConversationID)
	if err != nil {
		// Session already stopped; the notification is lost, not retried.
		s.logger.Warn("sharing expiry notification skipped",
			slog.String("session_id", sess.ID.String()),
			slog.Any("error", err))
		return nil
	}

	payload := map[string]interface{}{"conversation_id": conv.ID.String()}
	if buyerOverdue && s.notifier != nil {
		s.notifier.Notify(ctx, conv.BuyerID, "location_sharing_expired", payload)
	}
	if sellerOverdue && s.notifier != nil {
		s.notifier.Notify(ctx, conv.SellerID, "location_sharing_expired", payload)
	}
	if s.events != nil {
		s.events.Emit("conversation:"+conv.ID.String(), "location_sharing_expired", sess)
	}
	return nil
}

func (s *service) resolveSide(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.Conversation, bool, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, false, errors.NewNotFoundError("conversation").WithCause(err)
	}
	if userID != conv.BuyerID && userID != conv.SellerID {
		return nil, false, errors.NewAuthorizationError("only a participant may share location")
	}
	return conv, userID == conv.BuyerID, nil
}

func (s *service) emit(conv *conversation.Conversation, event string, userID uuid.UUID) {
	if s.events == nil {
		return
	}
	s.events.Emit("conversation:"+conv.ID.String(), event, map[string]interface{}{
		"user_id": userID.String(),
	})
}
