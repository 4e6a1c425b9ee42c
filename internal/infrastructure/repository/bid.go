package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// BidRepository implements bid storage over PostgreSQL.
type BidRepository struct {
	db *pgxpool.Pool
}

func NewBidRepository(db *pgxpool.Pool) *BidRepository {
	return &BidRepository{db: db}
}

const bidColumns = `
	id, product_id, bidder_id, amount::text, currency, status,
	placed_at, created_at, updated_at`

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bids (
			id, product_id, bidder_id, amount, currency, status,
			placed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.ProductID, b.BidderID,
		b.Amount.Amount(), b.Amount.Currency(), b.Status.String(),
		b.PlacedAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert bid").WithCause(err)
	}
	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	row := r.db.QueryRow(ctx, `SELECT`+bidColumns+` FROM bids WHERE id = $1`, id)
	b, err := scanBid(row)
	if err != nil {
		return nil, notFound(err, "bid")
	}
	return b, nil
}

func (r *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`,
		b.ID, b.Status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update bid").WithCause(err)
	}
	return nil
}

func (r *BidRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status bid.Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update bid status").WithCause(err)
	}
	return nil
}

// HighestActiveForProduct returns the current high bid, nil when the product
// has no active bid.
func (r *BidRepository) HighestActiveForProduct(ctx context.Context, productID uuid.UUID) (*bid.Bid, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+bidColumns+`
		FROM bids
		WHERE product_id = $1 AND status = 'active'
		ORDER BY amount DESC, placed_at ASC
		LIMIT 1`,
		productID,
	)
	b, err := scanBid(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load high bid").WithCause(err)
	}
	return b, nil
}

// MarkOutbidIf conditionally moves a bid from active to outbid. A false
// result means the bid was no longer active.
func (r *BidRepository) MarkOutbidIf(ctx context.Context, bidID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bids SET status = 'outbid', updated_at = NOW()
		WHERE id = $1 AND status = 'active'`,
		bidID,
	)
	if err != nil {
		return false, errors.NewInternalError("failed to outbid bid").WithCause(err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLostExcept marks every non-terminal bid on the product lost, sparing
// the winner.
func (r *BidRepository) MarkLostExcept(ctx context.Context, productID, wonBidID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bids SET status = 'lost', updated_at = NOW()
		WHERE product_id = $1 AND id <> $2 AND status IN ('active', 'outbid')`,
		productID, wonBidID,
	)
	if err != nil {
		return errors.NewInternalError("failed to mark losing bids").WithCause(err)
	}
	return nil
}

func (r *BidRepository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*bid.Bid, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+bidColumns+`
		FROM bids
		WHERE product_id = $1
		ORDER BY placed_at`,
		productID,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	defer rows.Close()

	var out []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan bid").WithCause(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBid(row pgx.Row) (*bid.Bid, error) {
	var (
		b        bid.Bid
		amount   string
		currency string
		status   string
	)
	err := row.Scan(
		&b.ID, &b.ProductID, &b.BidderID, &amount, &currency, &status,
		&b.PlacedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.Amount, err = values.NewMoneyFromString(amount, currency); err != nil {
		return nil, err
	}
	b.Status = bid.ParseStatus(status)
	return &b, nil
}
