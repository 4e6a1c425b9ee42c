package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// service implements the Service interface
type service struct {
	txs      Repository
	products ProductRepository
	offers   OfferRepository
	buys     BuyRepository
	bids     BidRepository

	propagator *propagator
	metrics    MetricsCollector
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewService creates a new transaction service
func NewService(
	txs Repository,
	products ProductRepository,
	offers OfferRepository,
	buys BuyRepository,
	bids BidRepository,
	convs ConversationRepository,
	messages MessageAppender,
	notifier Notifier,
	events EventEmitter,
	ledger Ledger,
	metrics MetricsCollector,
	logger *slog.Logger,
) Service {
	return &service{
		txs:      txs,
		products: products,
		offers:   offers,
		buys:     buys,
		bids:     bids,
		propagator: newPropagator(
			products, offers, buys, bids, convs, messages,
			notifier, events, ledger, metrics, logger,
		),
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
	}
}

// CreateFromOffer accepts a pending offer and opens a transaction at the
// offered price. The conditional product status transition is what enforces
// at most one active transaction per product: two concurrent acceptances
// race on it and exactly one wins.
func (s *service) CreateFromOffer(ctx context.Context, p *product.Product, o *offer.Offer) (*transaction.Transaction, error) {
	if o.ProductID != p.ID {
		return nil, errors.NewValidationError("OFFER_PRODUCT_MISMATCH", "offer does not belong to this product")
	}

	moved, err := s.products.UpdateStatusIf(ctx, p.ID, product.StatusActive, product.StatusInTransaction)
	if err != nil {
		return nil, errors.NewInternalError("failed to reserve product").WithCause(err)
	}
	if !moved {
		return nil, errors.NewConflictError("product is no longer available")
	}

	if err := o.Accept(); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, err
	}
	if err := s.offers.Update(ctx, o); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, errors.NewInternalError("failed to persist accepted offer").WithCause(err)
	}

	tx := transaction.New(
		transaction.NewOfferOrigin(o.ID),
		p.ID, o.BuyerID, p.SellerID,
		o.Amount, p.Price,
	)
	if err := s.txs.Create(ctx, tx); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, errors.NewInternalError("failed to create transaction").WithCause(err)
	}

	s.propagator.onCreated(ctx, tx, p)
	if s.metrics != nil {
		s.metrics.RecordTransactionCreated(ctx, tx.Origin.Kind.String())
	}
	return tx, nil
}

// CreateFromBuy confirms a pending buy and opens a transaction at the listed
// price.
func (s *service) CreateFromBuy(ctx context.Context, p *product.Product, b *buy.Buy) (*transaction.Transaction, error) {
	if b.ProductID != p.ID {
		return nil, errors.NewValidationError("BUY_PRODUCT_MISMATCH", "buy does not belong to this product")
	}

	moved, err := s.products.UpdateStatusIf(ctx, p.ID, product.StatusActive, product.StatusInTransaction)
	if err != nil {
		return nil, errors.NewInternalError("failed to reserve product").WithCause(err)
	}
	if !moved {
		return nil, errors.NewConflictError("product is no longer available")
	}

	if err := b.Confirm(); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, err
	}
	if err := s.buys.Update(ctx, b); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, errors.NewInternalError("failed to persist confirmed buy").WithCause(err)
	}

	tx := transaction.New(
		transaction.NewBuyOrigin(b.ID),
		p.ID, b.BuyerID, p.SellerID,
		b.PurchasePrice, p.Price,
	)
	if err := s.txs.Create(ctx, tx); err != nil {
		s.releaseProduct(ctx, p.ID)
		return nil, errors.NewInternalError("failed to create transaction").WithCause(err)
	}

	s.propagator.onCreated(ctx, tx, p)
	if s.metrics != nil {
		s.metrics.RecordTransactionCreated(ctx, tx.Origin.Kind.String())
	}
	return tx, nil
}

// CreateFromBid opens a transaction for the winning bid of a closed auction.
// The auction close already moved the product to in_transaction, so there is
// no reservation step here.
func (s *service) CreateFromBid(ctx context.Context, p *product.Product, winning *bid.Bid) (*transaction.Transaction, error) {
	if winning.ProductID != p.ID {
		return nil, errors.NewValidationError("BID_PRODUCT_MISMATCH", "bid does not belong to this product")
	}

	tx := transaction.New(
		transaction.NewBidOrigin(winning.ID),
		p.ID, winning.BidderID, p.SellerID,
		winning.Amount, p.Price,
	)
	if err := s.txs.Create(ctx, tx); err != nil {
		return nil, errors.NewInternalError("failed to create transaction").WithCause(err)
	}

	s.propagator.onCreated(ctx, tx, p)
	if s.metrics != nil {
		s.metrics.RecordTransactionCreated(ctx, tx.Origin.Kind.String())
	}
	return tx, nil
}

// ProposeMeetup schedules a meetup on an active transaction.
func (s *service) ProposeMeetup(ctx context.Context, req *ProposeMeetupRequest) (*transaction.Transaction, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_MEETUP_REQUEST", err.Error())
	}

	tx, err := s.txs.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound.WithCause(err)
	}

	expected := tx.Version
	if err := tx.ProposeMeetup(req.ProposerID, req.Time, req.Location, req.Latitude, req.Longitude, time.Now()); err != nil {
		return nil, err
	}
	if err := s.saveVersioned(ctx, tx, expected); err != nil {
		return nil, err
	}

	s.propagator.onMeetupProposed(ctx, tx, req.ProposerID)
	return tx, nil
}

// AcceptMeetup confirms a scheduled meetup.
func (s *service) AcceptMeetup(ctx context.Context, txID, accepterID uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound.WithCause(err)
	}

	expected := tx.Version
	if err := tx.AcceptMeetup(accepterID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.saveVersioned(ctx, tx, expected); err != nil {
		return nil, err
	}

	s.propagator.onMeetupAccepted(ctx, tx, accepterID)
	return tx, nil
}

// MarkAsSold is the seller's terminal success transition. The transaction
// write is authoritative; downstream updates run in the propagator and
// their failures are logged, never surfaced.
func (s *service) MarkAsSold(ctx context.Context, txID, sellerID uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound.WithCause(err)
	}

	now := time.Now()
	expected := tx.Version
	if err := tx.Complete(sellerID, values.NewReferenceNumber(now), now); err != nil {
		return nil, err
	}
	if err := s.saveVersioned(ctx, tx, expected); err != nil {
		return nil, err
	}

	s.propagator.onResolved(ctx, tx)
	if s.metrics != nil {
		s.metrics.RecordTransactionResolved(ctx, tx.Status.String())
	}
	return tx, nil
}

// CancelTransaction terminates an active transaction on behalf of a
// participant.
func (s *service) CancelTransaction(ctx context.Context, txID, cancellerID uuid.UUID, reason string) (*transaction.Transaction, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound.WithCause(err)
	}

	expected := tx.Version
	if err := tx.Cancel(cancellerID, reason, time.Now()); err != nil {
		return nil, err
	}
	if err := s.saveVersioned(ctx, tx, expected); err != nil {
		return nil, err
	}

	s.propagator.onResolved(ctx, tx)
	if s.metrics != nil {
		s.metrics.RecordTransactionResolved(ctx, tx.Status.String())
	}
	return tx, nil
}

// GetTransaction retrieves a transaction. Terminal rows are checked against
// the product they reference; drift left behind by a failed propagation is
// repaired in place before returning.
func (s *service) GetTransaction(ctx context.Context, txID uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound.WithCause(err)
	}

	if tx.Status.IsTerminal() {
		s.repairDrift(ctx, tx)
	}
	return tx, nil
}

// ExpireStale resolves every active transaction past its deadline. A failure
// on one row is logged and the sweep moves on.
func (s *service) ExpireStale(ctx context.Context, now time.Time) error {
	stale, err := s.txs.ListStale(ctx, now)
	if err != nil {
		return errors.NewInternalError("failed to list stale transactions").WithCause(err)
	}

	for _, tx := range stale {
		if err := s.expireOne(ctx, tx, now); err != nil {
			s.logger.Error("transaction expiry failed",
				slog.String("transaction_id", tx.ID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

func (s *service) expireOne(ctx context.Context, tx *transaction.Transaction, now time.Time) error {
	expected := tx.Version
	if err := tx.Expire(now); err != nil {
		return err
	}
	if err := s.saveVersioned(ctx, tx, expected); err != nil {
		return err
	}

	s.propagator.onResolved(ctx, tx)
	if s.metrics != nil {
		s.metrics.RecordTransactionResolved(ctx, tx.Status.String())
	}
	return nil
}

func (s *service) saveVersioned(ctx context.Context, tx *transaction.Transaction, expected int64) error {
	ok, err := s.txs.UpdateIfVersion(ctx, tx, expected)
	if err != nil {
		return errors.NewInternalError("failed to persist transaction").WithCause(err)
	}
	if !ok {
		return errors.NewConflictError("transaction was modified concurrently, retry")
	}
	return nil
}

// releaseProduct undoes a product reservation after a failed creation.
func (s *service) releaseProduct(ctx context.Context, productID uuid.UUID) {
	if _, err := s.products.UpdateStatusIf(ctx, productID, product.StatusInTransaction, product.StatusActive); err != nil {
		s.logger.Error("failed to release product reservation",
			slog.String("product_id", productID.String()),
			slog.Any("error", err))
	}
}

// repairDrift re-runs the terminal side effects for a resolved transaction
// whose product was left behind. All propagator writes are absolute, so the
// re-run is idempotent.
func (s *service) repairDrift(ctx context.Context, tx *transaction.Transaction) {
	p, err := s.products.GetByID(ctx, tx.ProductID)
	if err != nil {
		s.logger.Warn("drift check skipped, product unavailable",
			slog.String("transaction_id", tx.ID.String()),
			slog.Any("error", err))
		return
	}

	var stale bool
	switch tx.Status {
	case transaction.StatusCompleted:
		stale = p.Status != product.StatusSold
	case transaction.StatusCancelledByBuyer, transaction.StatusCancelledBySeller, transaction.StatusExpired:
		stale = p.Status == product.StatusInTransaction
	}
	if !stale {
		return
	}

	// Only the record writes are replayed; the notifications went out (or
	// were lost) on the original attempt and are not repeated.
	s.logger.Info("repairing propagation drift",
		slog.String("transaction_id", tx.ID.String()),
		slog.String("transaction_status", tx.Status.String()),
		slog.String("product_status", p.Status.String()))
	s.propagator.syncRecords(ctx, tx)
}
