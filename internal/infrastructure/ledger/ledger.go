package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// Ledger mirrors completed transactions into an append-only receipts table.
// It is an audit convenience, not a source of truth: the transaction row
// remains authoritative and a failed mirror write is only logged by the
// caller.
type Ledger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func New(db *pgxpool.Pool, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// RecordReceipt appends the receipt row for a completed transaction and
// returns its reference number. Replays are absorbed by the primary key.
func (l *Ledger) RecordReceipt(ctx context.Context, tx *transaction.Transaction) (string, error) {
	_, err := l.db.Exec(ctx, `
		INSERT INTO transaction_receipts (
			reference_number, transaction_id, product_id, buyer_id, seller_id,
			agreed_price, currency, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reference_number) DO NOTHING`,
		string(tx.ReferenceNumber), tx.ID, tx.ProductID, tx.BuyerID, tx.SellerID,
		tx.AgreedPrice.Amount(), tx.AgreedPrice.Currency(), tx.CompletedAt,
	)
	if err != nil {
		return "", err
	}

	l.logger.Info("receipt recorded",
		zap.String("reference", string(tx.ReferenceNumber)),
		zap.String("transaction_id", tx.ID.String()))
	return string(tx.ReferenceNumber), nil
}
