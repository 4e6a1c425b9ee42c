package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

// LocationSessionRepository implements location sharing session storage over
// PostgreSQL.
type LocationSessionRepository struct {
	db *pgxpool.Pool
}

func NewLocationSessionRepository(db *pgxpool.Pool) *LocationSessionRepository {
	return &LocationSessionRepository{db: db}
}

const sessionColumns = `
	id, conversation_id,
	buyer_sharing, buyer_sharing_since, buyer_stopped_at,
	seller_sharing, seller_sharing_since, seller_stopped_at,
	ended_at, created_at, updated_at`

func (r *LocationSessionRepository) Create(ctx context.Context, s *conversation.LocationSharingSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO location_sessions (
			id, conversation_id,
			buyer_sharing, buyer_sharing_since, buyer_stopped_at,
			seller_sharing, seller_sharing_since, seller_stopped_at,
			ended_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.ConversationID,
		s.BuyerSharing, s.BuyerSharingSince, s.BuyerStoppedAt,
		s.SellerSharing, s.SellerSharingSince, s.SellerStoppedAt,
		s.EndedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert location session").WithCause(err)
	}
	return nil
}

func (r *LocationSessionRepository) Update(ctx context.Context, s *conversation.LocationSharingSession) error {
	_, err := r.db.Exec(ctx, `
		UPDATE location_sessions SET
			buyer_sharing = $2, buyer_sharing_since = $3, buyer_stopped_at = $4,
			seller_sharing = $5, seller_sharing_since = $6, seller_stopped_at = $7,
			ended_at = $8, updated_at = NOW()
		WHERE id = $1`,
		s.ID,
		s.BuyerSharing, s.BuyerSharingSince, s.BuyerStoppedAt,
		s.SellerSharing, s.SellerSharingSince, s.SellerStoppedAt,
		s.EndedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update location session").WithCause(err)
	}
	return nil
}

// ActiveForConversation returns the open session, nil when none.
func (r *LocationSessionRepository) ActiveForConversation(ctx context.Context, conversationID uuid.UUID) (*conversation.LocationSharingSession, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+sessionColumns+`
		FROM location_sessions
		WHERE conversation_id = $1 AND ended_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`,
		conversationID,
	)
	s, err := scanSession(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load location session").WithCause(err)
	}
	return s, nil
}

// ListSharing returns open sessions with at least one side sharing.
func (r *LocationSessionRepository) ListSharing(ctx context.Context) ([]*conversation.LocationSharingSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+sessionColumns+`
		FROM location_sessions
		WHERE ended_at IS NULL AND (buyer_sharing OR seller_sharing)`,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to list location sessions").WithCause(err)
	}
	defer rows.Close()

	var out []*conversation.LocationSharingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan location session").WithCause(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*conversation.LocationSharingSession, error) {
	var s conversation.LocationSharingSession
	err := row.Scan(
		&s.ID, &s.ConversationID,
		&s.BuyerSharing, &s.BuyerSharingSince, &s.BuyerStoppedAt,
		&s.SellerSharing, &s.SellerSharingSince, &s.SellerStoppedAt,
		&s.EndedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
