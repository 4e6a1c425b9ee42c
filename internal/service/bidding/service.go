package bidding

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// service implements the Service interface
type service struct {
	products ProductRepository
	bids     BidRepository
	locker   ProductLocker
	txs      TransactionCreator
	notifier Notifier
	events   EventEmitter
	metrics  MetricsCollector
	logger   *slog.Logger
	validate *validator.Validate

	// Per-bidder rate limiting
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	bidRate  rate.Limit
	bidBurst int
}

// NewService creates a new bidding service
func NewService(
	products ProductRepository,
	bids BidRepository,
	locker ProductLocker,
	txs TransactionCreator,
	notifier Notifier,
	events EventEmitter,
	metrics MetricsCollector,
	rateEvery time.Duration,
	rateBurst int,
	logger *slog.Logger,
) Service {
	if rateEvery <= 0 {
		rateEvery = 3 * time.Second
	}
	if rateBurst <= 0 {
		rateBurst = 10
	}
	return &service{
		products: products,
		bids:     bids,
		locker:   locker,
		txs:      txs,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
		limiters: make(map[uuid.UUID]*rate.Limiter),
		bidRate:  rate.Every(rateEvery),
		bidBurst: rateBurst,
	}
}

// PlaceBid validates and records a new bid for a product. Acceptance is
// serialized per product: the read of the current high bid and the write of
// the new one happen under a per-product lock, with a conditional outbid
// update as a second guard.
func (s *service) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*bid.Bid, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_BID_REQUEST", err.Error())
	}

	if !s.allowBid(req.BidderID) {
		return nil, errors.NewValidationError("RATE_LIMIT_EXCEEDED", "too many bids, slow down")
	}

	currency := req.Currency
	if currency == "" {
		currency = values.USD
	}
	amount, err := values.NewMoneyFromFloat(req.Amount, currency)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_BID_AMOUNT", err.Error())
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithCause(err)
	}

	now := time.Now()
	if p.SaleType != product.SaleTypeBidding || !p.AllowBidding {
		return nil, errors.NewValidationError("NOT_BIDDABLE", "product does not accept bids")
	}
	if !p.IsBiddingOpen(now) {
		return nil, errors.ErrBiddingClosed
	}
	if req.BidderID == p.SellerID {
		return nil, errors.ErrOwnListing
	}

	var (
		newBid *bid.Bid
		outbid *bid.Bid
	)
	err = s.locker.WithLock(ctx, p.ID, func(ctx context.Context) error {
		high, err := s.bids.HighestActiveForProduct(ctx, p.ID)
		if err != nil {
			return errors.NewInternalError("failed to read current high bid").WithCause(err)
		}

		if err := bid.ValidateAmount(p.Price, p.MinimumBid, high, amount); err != nil {
			return err
		}

		if high != nil {
			moved, err := s.bids.MarkOutbidIf(ctx, high.ID)
			if err != nil {
				return errors.NewInternalError("failed to outbid previous high bid").WithCause(err)
			}
			if !moved {
				// The high bid changed between the read and the write.
				return errors.NewConflictError("high bid changed, retry")
			}
			outbid = high
		}

		b := bid.NewBid(p.ID, req.BidderID, amount)
		if err := s.bids.Create(ctx, b); err != nil {
			return errors.NewInternalError("failed to create bid").WithCause(err)
		}
		newBid = b
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordBidRejected(ctx, reasonOf(err))
		}
		return nil, err
	}

	// Outbid notification is fire-and-forget; failure does not roll back
	// the bid.
	if outbid != nil && s.notifier != nil {
		s.notifier.Notify(ctx, outbid.BidderID, "outbid", map[string]interface{}{
			"product_id": p.ID.String(),
			"bid_id":     outbid.ID.String(),
			"new_amount": amount.String(),
		})
	}
	if s.events != nil {
		s.events.Emit("product:"+p.ID.String(), "bid_placed", newBid)
	}
	if s.metrics != nil {
		s.metrics.RecordBidPlaced(ctx, amount.ToFloat64())
	}

	return newBid, nil
}

// GetBid retrieves a specific bid
func (s *service) GetBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, errors.ErrBidNotFound.WithCause(err)
	}
	return b, nil
}

// GetBidsForProduct returns all bids for a product
func (s *service) GetBidsForProduct(ctx context.Context, productID uuid.UUID) ([]*bid.Bid, error) {
	bids, err := s.bids.ListForProduct(ctx, productID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	return bids, nil
}

func (s *service) allowBid(bidderID uuid.UUID) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[bidderID]
	if !ok {
		limiter = rate.NewLimiter(s.bidRate, s.bidBurst)
		s.limiters[bidderID] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func reasonOf(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return "internal"
}
