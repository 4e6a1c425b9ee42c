package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// TransactionRepository implements transaction storage over PostgreSQL.
// Updates are version guarded: the WHERE clause carries the version the
// caller read, so concurrent writers lose by affecting zero rows. A partial
// unique index on (product_id) WHERE status = 'active' backs the at most one
// open transaction per product invariant at the storage layer as well.
type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, origin_kind, origin_id, product_id, buyer_id, seller_id,
	agreed_price::text, original_price::text, currency, status, meetup_status,
	scheduled_meetup_at, meetup_location, meetup_latitude, meetup_longitude,
	meetup_proposed_by, buyer_confirmed_completion, seller_confirmed_completion,
	reference_number, cancelled_by, cancel_reason, cancelled_at, completed_at,
	expires_at, last_activity_at, version, created_at, updated_at`

func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (
			id, origin_kind, origin_id, product_id, buyer_id, seller_id,
			agreed_price, original_price, currency, status, meetup_status,
			expires_at, last_activity_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		tx.ID, tx.Origin.Kind.String(), tx.Origin.ID,
		tx.ProductID, tx.BuyerID, tx.SellerID,
		tx.AgreedPrice.Amount(), tx.OriginalPrice.Amount(), tx.AgreedPrice.Currency(),
		tx.Status.String(), tx.MeetupStatus.String(),
		tx.ExpiresAt, tx.LastActivityAt, tx.Version, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert transaction").WithCause(err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT`+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return tx, nil
}

// UpdateIfVersion persists the aggregate only when the stored version still
// matches expected, bumping the version on success.
func (r *TransactionRepository) UpdateIfVersion(ctx context.Context, tx *transaction.Transaction, expected int64) (bool, error) {
	var ref *string
	if !tx.ReferenceNumber.IsZero() {
		s := string(tx.ReferenceNumber)
		ref = &s
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET
			status = $3, meetup_status = $4,
			scheduled_meetup_at = $5, meetup_location = $6,
			meetup_latitude = $7, meetup_longitude = $8, meetup_proposed_by = $9,
			buyer_confirmed_completion = $10, seller_confirmed_completion = $11,
			reference_number = $12, cancelled_by = $13, cancel_reason = $14,
			cancelled_at = $15, completed_at = $16,
			last_activity_at = $17, version = $2 + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		tx.ID, expected,
		tx.Status.String(), tx.MeetupStatus.String(),
		tx.ScheduledMeetupAt, nullIfEmpty(tx.MeetupLocation),
		tx.MeetupLatitude, tx.MeetupLongitude, tx.MeetupProposedBy,
		tx.BuyerConfirmedCompletion, tx.SellerConfirmedCompletion,
		ref, tx.CancelledBy, nullIfEmpty(tx.CancelReason),
		tx.CancelledAt, tx.CompletedAt,
		tx.LastActivityAt,
	)
	if err != nil {
		return false, errors.NewInternalError("failed to update transaction").WithCause(err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	tx.Version = expected + 1
	return true, nil
}

// ListStale returns active transactions eligible for expiry: a scheduled
// meetup more than the expiry window in the past, or the creation deadline
// passed with no meetup ever scheduled.
func (r *TransactionRepository) ListStale(ctx context.Context, now time.Time) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+transactionColumns+`
		FROM transactions
		WHERE status = 'active' AND (
			(scheduled_meetup_at IS NOT NULL AND scheduled_meetup_at < $1)
			OR (scheduled_meetup_at IS NULL AND expires_at < $2)
		)
		ORDER BY created_at`,
		now.Add(-transaction.ExpiryWindow), now,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to list stale transactions").WithCause(err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan transaction").WithCause(err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ActiveForProduct returns the open transaction on a product, nil when none.
func (r *TransactionRepository) ActiveForProduct(ctx context.Context, productID uuid.UUID) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+transactionColumns+`
		FROM transactions
		WHERE product_id = $1 AND status = 'active'`,
		productID,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load active transaction").WithCause(err)
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		tx            transaction.Transaction
		originKind    string
		agreedPrice   string
		originalPrice string
		currency      string
		status        string
		meetupStatus  string
		location      *string
		ref           *string
		cancelReason  *string
	)
	err := row.Scan(
		&tx.ID, &originKind, &tx.Origin.ID,
		&tx.ProductID, &tx.BuyerID, &tx.SellerID,
		&agreedPrice, &originalPrice, &currency, &status, &meetupStatus,
		&tx.ScheduledMeetupAt, &location, &tx.MeetupLatitude, &tx.MeetupLongitude,
		&tx.MeetupProposedBy, &tx.BuyerConfirmedCompletion, &tx.SellerConfirmedCompletion,
		&ref, &tx.CancelledBy, &cancelReason, &tx.CancelledAt, &tx.CompletedAt,
		&tx.ExpiresAt, &tx.LastActivityAt, &tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	kind, err := transaction.ParseOriginKind(originKind)
	if err != nil {
		return nil, err
	}
	tx.Origin.Kind = kind

	if tx.AgreedPrice, err = values.NewMoneyFromString(agreedPrice, currency); err != nil {
		return nil, err
	}
	if tx.OriginalPrice, err = values.NewMoneyFromString(originalPrice, currency); err != nil {
		return nil, err
	}
	tx.Status = transaction.ParseStatus(status)
	tx.MeetupStatus = transaction.ParseMeetupStatus(meetupStatus)
	if location != nil {
		tx.MeetupLocation = *location
	}
	if ref != nil {
		tx.ReferenceNumber = values.ReferenceNumber(*ref)
	}
	if cancelReason != nil {
		tx.CancelReason = *cancelReason
	}
	return &tx, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
