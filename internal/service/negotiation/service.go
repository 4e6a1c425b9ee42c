package negotiation

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

// service implements the Service interface
type service struct {
	products ProductRepository
	offers   OfferRepository
	buys     BuyRepository
	txs      TransactionCreator
	notifier Notifier
	events   EventEmitter
	metrics  MetricsCollector
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService creates a new negotiation service
func NewService(
	products ProductRepository,
	offers OfferRepository,
	buys BuyRepository,
	txs TransactionCreator,
	notifier Notifier,
	events EventEmitter,
	metrics MetricsCollector,
	logger *slog.Logger,
) Service {
	return &service{
		products: products,
		offers:   offers,
		buys:     buys,
		txs:      txs,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
	}
}

// CreateOffer records a buyer's price proposal. A buyer with a live offer on
// the product resubmits through UpdateOfferAmount instead.
func (s *service) CreateOffer(ctx context.Context, req *CreateOfferRequest) (*offer.Offer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_OFFER_REQUEST", err.Error())
	}

	currency := req.Currency
	if currency == "" {
		currency = values.USD
	}
	amount, err := values.NewMoneyFromFloat(req.Amount, currency)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_OFFER_AMOUNT", err.Error())
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithCause(err)
	}
	if p.Status != product.StatusActive {
		return nil, errors.NewConflictError("product is not open for offers")
	}
	if !p.AllowOffers {
		return nil, errors.NewValidationError("OFFERS_DISABLED", "product does not accept offers")
	}
	if req.BuyerID == p.SellerID {
		return nil, errors.ErrOwnListing
	}

	existing, err := s.offers.PendingForBuyer(ctx, p.ID, req.BuyerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check existing offers").WithCause(err)
	}
	if existing != nil {
		return nil, errors.NewConflictError("an offer on this product is already pending")
	}

	o := offer.NewOffer(p.ID, req.BuyerID, p.SellerID, amount)
	if err := s.offers.Create(ctx, o); err != nil {
		return nil, errors.NewInternalError("failed to create offer").WithCause(err)
	}

	s.notify(ctx, p.SellerID, NotifyOfferReceived, o)
	s.emit(p.ID, "offer_created", o)
	if s.metrics != nil {
		s.metrics.RecordOfferCreated(ctx, amount.ToFloat64())
	}
	return o, nil
}

// AcceptOffer is the seller's acceptance. The transaction service performs
// the actual acceptance so the product reservation, the offer transition,
// and the transaction creation happen in one place.
func (s *service) AcceptOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*transaction.Transaction, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, errors.ErrOfferNotFound.WithCause(err)
	}
	if sellerID != o.SellerID {
		return nil, errors.NewAuthorizationError("only the seller may accept an offer")
	}
	if o.Status != offer.StatusPending {
		return nil, errors.NewConflictError("offer is not pending")
	}

	p, err := s.products.GetByID(ctx, o.ProductID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithCause(err)
	}

	tx, err := s.txs.CreateFromOffer(ctx, p, o)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordOfferResolved(ctx, o.Status.String())
	}
	return tx, nil
}

// RejectOffer declines a pending offer. The buyer may resubmit later.
func (s *service) RejectOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*offer.Offer, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, errors.ErrOfferNotFound.WithCause(err)
	}
	if sellerID != o.SellerID {
		return nil, errors.NewAuthorizationError("only the seller may reject an offer")
	}
	if err := o.Reject(); err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, o); err != nil {
		return nil, errors.NewInternalError("failed to persist rejected offer").WithCause(err)
	}

	s.notify(ctx, o.BuyerID, NotifyOfferRejected, o)
	s.emit(o.ProductID, "offer_rejected", o)
	if s.metrics != nil {
		s.metrics.RecordOfferResolved(ctx, o.Status.String())
	}
	return o, nil
}

// UpdateOfferAmount resubmits an offer at a new amount, resetting it to
// pending. Permitted while the offer is pending or rejected.
func (s *service) UpdateOfferAmount(ctx context.Context, req *UpdateOfferRequest) (*offer.Offer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_OFFER_REQUEST", err.Error())
	}

	o, err := s.offers.GetByID(ctx, req.OfferID)
	if err != nil {
		return nil, errors.ErrOfferNotFound.WithCause(err)
	}
	if req.BuyerID != o.BuyerID {
		return nil, errors.NewAuthorizationError("only the buyer may update their offer")
	}

	amount, err := values.NewMoneyFromFloat(req.Amount, o.Amount.Currency())
	if err != nil {
		return nil, errors.NewValidationError("INVALID_OFFER_AMOUNT", err.Error())
	}
	if err := o.Resubmit(amount); err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, o); err != nil {
		return nil, errors.NewInternalError("failed to persist updated offer").WithCause(err)
	}

	s.notify(ctx, o.SellerID, NotifyOfferUpdated, o)
	s.emit(o.ProductID, "offer_updated", o)
	return o, nil
}

// WithdrawOffer retracts the buyer's own pending offer.
func (s *service) WithdrawOffer(ctx context.Context, offerID, buyerID uuid.UUID) (*offer.Offer, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, errors.ErrOfferNotFound.WithCause(err)
	}
	if buyerID != o.BuyerID {
		return nil, errors.NewAuthorizationError("only the buyer may withdraw their offer")
	}
	if err := o.Withdraw(); err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, o); err != nil {
		return nil, errors.NewInternalError("failed to persist withdrawn offer").WithCause(err)
	}

	s.notify(ctx, o.SellerID, NotifyOfferWithdrawn, o)
	s.emit(o.ProductID, "offer_withdrawn", o)
	if s.metrics != nil {
		s.metrics.RecordOfferResolved(ctx, o.Status.String())
	}
	return o, nil
}

// GetOffer retrieves a specific offer
func (s *service) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, errors.ErrOfferNotFound.WithCause(err)
	}
	return o, nil
}

// RequestPurchase records a buyer's intent to buy at the listed price.
func (s *service) RequestPurchase(ctx context.Context, req *RequestPurchaseRequest) (*buy.Buy, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_PURCHASE_REQUEST", err.Error())
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithCause(err)
	}
	if p.Status != product.StatusActive {
		return nil, errors.NewConflictError("product is not available for purchase")
	}
	if p.SaleType == product.SaleTypeBidding {
		return nil, errors.NewValidationError("BIDDING_ONLY", "auction listings are sold through bids")
	}
	if req.BuyerID == p.SellerID {
		return nil, errors.ErrOwnListing
	}

	existing, err := s.buys.PendingForBuyer(ctx, p.ID, req.BuyerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check existing purchase requests").WithCause(err)
	}
	if existing != nil {
		return nil, errors.NewConflictError("a purchase request on this product is already pending")
	}

	b := buy.NewBuy(p.ID, req.BuyerID, p.SellerID, p.Price)
	if err := s.buys.Create(ctx, b); err != nil {
		return nil, errors.NewInternalError("failed to create purchase request").WithCause(err)
	}

	s.notify(ctx, p.SellerID, NotifyBuyRequested, b)
	s.emit(p.ID, "buy_requested", b)
	if s.metrics != nil {
		s.metrics.RecordPurchaseRequested(ctx)
	}
	return b, nil
}

// ConfirmBuy is the seller's confirmation of a purchase request.
func (s *service) ConfirmBuy(ctx context.Context, buyID, sellerID uuid.UUID) (*transaction.Transaction, error) {
	b, err := s.buys.GetByID(ctx, buyID)
	if err != nil {
		return nil, errors.ErrBuyNotFound.WithCause(err)
	}
	if sellerID != b.SellerID {
		return nil, errors.NewAuthorizationError("only the seller may confirm a purchase")
	}
	if b.Status != buy.StatusPending {
		return nil, errors.NewConflictError("buy is not pending")
	}

	p, err := s.products.GetByID(ctx, b.ProductID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithCause(err)
	}

	return s.txs.CreateFromBuy(ctx, p, b)
}

// CancelBuy retracts the buyer's own pending purchase request.
func (s *service) CancelBuy(ctx context.Context, buyID, buyerID uuid.UUID) (*buy.Buy, error) {
	b, err := s.buys.GetByID(ctx, buyID)
	if err != nil {
		return nil, errors.ErrBuyNotFound.WithCause(err)
	}
	if buyerID != b.BuyerID {
		return nil, errors.NewAuthorizationError("only the buyer may cancel their purchase request")
	}
	if err := b.Cancel(true); err != nil {
		return nil, err
	}
	if err := s.buys.Update(ctx, b); err != nil {
		return nil, errors.NewInternalError("failed to persist cancelled buy").WithCause(err)
	}

	s.notify(ctx, b.SellerID, NotifyBuyCancelled, b)
	s.emit(b.ProductID, "buy_cancelled", b)
	return b, nil
}

// GetBuy retrieves a specific buy
func (s *service) GetBuy(ctx context.Context, buyID uuid.UUID) (*buy.Buy, error) {
	b, err := s.buys.GetByID(ctx, buyID)
	if err != nil {
		return nil, errors.ErrBuyNotFound.WithCause(err)
	}
	return b, nil
}

func (s *service) notify(ctx context.Context, userID uuid.UUID, kind string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, kind, map[string]interface{}{"payload": payload})
}

func (s *service) emit(productID uuid.UUID, event string, payload interface{}) {
	if s.events != nil {
		s.events.Emit("product:"+productID.String(), event, payload)
	}
}
