package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// OfferRepository implements offer storage over PostgreSQL.
type OfferRepository struct {
	db *pgxpool.Pool
}

func NewOfferRepository(db *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `
	id, product_id, buyer_id, seller_id, amount::text, currency, status,
	created_at, updated_at`

func (r *OfferRepository) Create(ctx context.Context, o *offer.Offer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO offers (
			id, product_id, buyer_id, seller_id, amount, currency, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.ProductID, o.BuyerID, o.SellerID,
		o.Amount.Amount(), o.Amount.Currency(), o.Status.String(),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert offer").WithCause(err)
	}
	return nil
}

func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	row := r.db.QueryRow(ctx, `SELECT`+offerColumns+` FROM offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if err != nil {
		return nil, notFound(err, "offer")
	}
	return o, nil
}

func (r *OfferRepository) Update(ctx context.Context, o *offer.Offer) error {
	_, err := r.db.Exec(ctx, `
		UPDATE offers SET amount = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		o.ID, o.Amount.Amount(), o.Status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update offer").WithCause(err)
	}
	return nil
}

func (r *OfferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status offer.Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE offers SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update offer status").WithCause(err)
	}
	return nil
}

// PendingForBuyer returns the buyer's live offer on the product, nil when
// absent.
func (r *OfferRepository) PendingForBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*offer.Offer, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+offerColumns+`
		FROM offers
		WHERE product_id = $1 AND buyer_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1`,
		productID, buyerID,
	)
	o, err := scanOffer(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load pending offer").WithCause(err)
	}
	return o, nil
}

func scanOffer(row pgx.Row) (*offer.Offer, error) {
	var (
		o        offer.Offer
		amount   string
		currency string
		status   string
	)
	err := row.Scan(
		&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID,
		&amount, &currency, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.Amount, err = values.NewMoneyFromString(amount, currency); err != nil {
		return nil, err
	}
	o.Status = offer.ParseStatus(status)
	return &o, nil
}
