package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

// SystemSenderID marks engine-authored messages. Client rendering treats it
// as the system voice, not a participant.
var SystemSenderID = uuid.Nil

// ConversationRepository implements conversation and message storage over
// PostgreSQL.
type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, buyer_id, seller_id, product_id, offer_id, buy_id, bid_id,
	transaction_id, preview, last_message_at, created_at, updated_at`

func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversations (
			id, buyer_id, seller_id, product_id, offer_id, buy_id, bid_id,
			transaction_id, preview, last_message_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.BuyerID, c.SellerID, c.ProductID, c.OfferID, c.BuyID, c.BidID,
		c.TransactionID, nullIfEmpty(c.Preview), c.LastMessageAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert conversation").WithCause(err)
	}
	return nil
}

func (r *ConversationRepository) Update(ctx context.Context, c *conversation.Conversation) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET
			offer_id = $2, buy_id = $3, bid_id = $4, transaction_id = $5,
			preview = $6, last_message_at = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.OfferID, c.BuyID, c.BidID, c.TransactionID,
		nullIfEmpty(c.Preview), c.LastMessageAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update conversation").WithCause(err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	row := r.db.QueryRow(ctx, `SELECT`+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return c, nil
}

func (r *ConversationRepository) GetByTransactionID(ctx context.Context, txID uuid.UUID) (*conversation.Conversation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+conversationColumns+` FROM conversations WHERE transaction_id = $1`, txID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return c, nil
}

// FindForProduct returns the conversation between the parties about a
// product, nil when absent.
func (r *ConversationRepository) FindForProduct(ctx context.Context, buyerID, sellerID, productID uuid.UUID) (*conversation.Conversation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE buyer_id = $1 AND seller_id = $2 AND product_id = $3`,
		buyerID, sellerID, productID,
	)
	c, err := scanConversation(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load conversation").WithCause(err)
	}
	return c, nil
}

// AppendSystemMessage inserts an engine-authored chat message.
func (r *ConversationRepository) AppendSystemMessage(ctx context.Context, conversationID uuid.UUID, text string) (*conversation.Message, error) {
	msg := &conversation.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       SystemSenderID,
		Body:           text,
		IsSystem:       true,
		CreatedAt:      time.Now(),
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.IsSystem, msg.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to insert system message").WithCause(err)
	}
	return msg, nil
}

// ListMessages returns a page of messages oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*conversation.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, is_system, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to list messages").WithCause(err)
	}
	defer rows.Close()

	var out []*conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.IsSystem, &m.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan message").WithCause(err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var (
		c       conversation.Conversation
		preview *string
	)
	err := row.Scan(
		&c.ID, &c.BuyerID, &c.SellerID, &c.ProductID, &c.OfferID, &c.BuyID,
		&c.BidID, &c.TransactionID, &preview, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if preview != nil {
		c.Preview = *preview
	}
	return &c, nil
}
