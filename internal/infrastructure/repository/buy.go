package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// BuyRepository implements buy storage over PostgreSQL.
type BuyRepository struct {
	db *pgxpool.Pool
}

func NewBuyRepository(db *pgxpool.Pool) *BuyRepository {
	return &BuyRepository{db: db}
}

const buyColumns = `
	id, product_id, buyer_id, seller_id, purchase_price::text, currency, status,
	created_at, updated_at`

func (r *BuyRepository) Create(ctx context.Context, b *buy.Buy) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO buys (
			id, product_id, buyer_id, seller_id, purchase_price, currency,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.ProductID, b.BuyerID, b.SellerID,
		b.PurchasePrice.Amount(), b.PurchasePrice.Currency(), b.Status.String(),
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert buy").WithCause(err)
	}
	return nil
}

func (r *BuyRepository) GetByID(ctx context.Context, id uuid.UUID) (*buy.Buy, error) {
	row := r.db.QueryRow(ctx, `SELECT`+buyColumns+` FROM buys WHERE id = $1`, id)
	b, err := scanBuy(row)
	if err != nil {
		return nil, notFound(err, "buy")
	}
	return b, nil
}

func (r *BuyRepository) Update(ctx context.Context, b *buy.Buy) error {
	_, err := r.db.Exec(ctx, `
		UPDATE buys SET status = $2, updated_at = NOW() WHERE id = $1`,
		b.ID, b.Status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update buy").WithCause(err)
	}
	return nil
}

func (r *BuyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status buy.Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE buys SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status.String(),
	)
	if err != nil {
		return errors.NewInternalError("failed to update buy status").WithCause(err)
	}
	return nil
}

// PendingForBuyer returns the buyer's open purchase request on the product,
// nil when absent.
func (r *BuyRepository) PendingForBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*buy.Buy, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+buyColumns+`
		FROM buys
		WHERE product_id = $1 AND buyer_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1`,
		productID, buyerID,
	)
	b, err := scanBuy(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load pending buy").WithCause(err)
	}
	return b, nil
}

func scanBuy(row pgx.Row) (*buy.Buy, error) {
	var (
		b        buy.Buy
		price    string
		currency string
		status   string
	)
	err := row.Scan(
		&b.ID, &b.ProductID, &b.BuyerID, &b.SellerID,
		&price, &currency, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.PurchasePrice, err = values.NewMoneyFromString(price, currency); err != nil {
		return nil, err
	}
	b.Status = buy.ParseStatus(status)
	return &b, nil
}
