package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// ProductRepository implements product storage over PostgreSQL.
type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db}
}

// Money columns are selected as text so the scanner can rebuild the decimal
// value exactly.
const productColumns = `
	id, seller_id, title, price::text, currency, sale_type,
	allow_offers, allow_bidding, minimum_bid::text, bidding_ends_at,
	status, sold_at, sold_to, created_at, updated_at`

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (
			id, seller_id, title, price, currency, sale_type,
			allow_offers, allow_bidding, minimum_bid, bidding_ends_at,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.SellerID, p.Title,
		p.Price.Amount(), p.Price.Currency(), p.SaleType.String(),
		p.AllowOffers, p.AllowBidding, p.MinimumBid.Amount(), p.BiddingEndsAt,
		p.Status.String(), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert product").WithCause(err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT`+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return p, nil
}

// UpdateStatusIf performs the conditional status transition the engine uses
// as its serialization guard. The row count tells the caller whether this
// writer won.
func (r *ProductRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to product.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from.String(), to.String(),
	)
	if err != nil {
		return false, errors.NewInternalError("failed to update product status").WithCause(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProductRepository) MarkSold(ctx context.Context, id, soldTo uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE products
		SET status = 'sold', sold_to = $2, sold_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, soldTo, at,
	)
	if err != nil {
		return errors.NewInternalError("failed to mark product sold").WithCause(err)
	}
	return nil
}

func (r *ProductRepository) ListExpiredBidding(ctx context.Context, now time.Time) ([]*product.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+productColumns+`
		FROM products
		WHERE sale_type = 'bidding' AND status = 'active' AND bidding_ends_at < $1
		ORDER BY bidding_ends_at`,
		now,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to list expired auctions").WithCause(err)
	}
	defer rows.Close()

	var out []*product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan product").WithCause(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p          product.Product
		price      string
		minimumBid string
		currency   string
		saleType   string
		status     string
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &price, &currency, &saleType,
		&p.AllowOffers, &p.AllowBidding, &minimumBid, &p.BiddingEndsAt,
		&status, &p.SoldAt, &p.SoldTo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Price, err = values.NewMoneyFromString(price, currency); err != nil {
		return nil, err
	}
	if p.MinimumBid, err = values.NewMoneyFromString(minimumBid, currency); err != nil {
		return nil, err
	}
	p.SaleType = product.ParseSaleType(saleType)
	p.Status = product.ParseStatus(status)
	return &p, nil
}
