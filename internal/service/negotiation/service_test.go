package negotiation

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*product.Product
}

func newFakeProductRepo(ps ...*product.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[uuid.UUID]*product.Product)}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, stderrors.New("not found")
	}
	return p, nil
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]*offer.Offer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[uuid.UUID]*offer.Offer)}
}

func (r *fakeOfferRepo) Create(_ context.Context, o *offer.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = o
	return nil
}

func (r *fakeOfferRepo) GetByID(_ context.Context, id uuid.UUID) (*offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, stderrors.New("not found")
	}
	return o, nil
}

func (r *fakeOfferRepo) Update(_ context.Context, o *offer.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = o
	return nil
}

func (r *fakeOfferRepo) PendingForBuyer(_ context.Context, productID, buyerID uuid.UUID) (*offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.offers {
		if o.ProductID == productID && o.BuyerID == buyerID && o.Status == offer.StatusPending {
			return o, nil
		}
	}
	return nil, nil
}

type fakeBuyRepo struct {
	mu   sync.Mutex
	buys map[uuid.UUID]*buy.Buy
}

func newFakeBuyRepo() *fakeBuyRepo {
	return &fakeBuyRepo{buys: make(map[uuid.UUID]*buy.Buy)}
}

func (r *fakeBuyRepo) Create(_ context.Context, b *buy.Buy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buys[b.ID] = b
	return nil
}

func (r *fakeBuyRepo) GetByID(_ context.Context, id uuid.UUID) (*buy.Buy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buys[id]
	if !ok {
		return nil, stderrors.New("not found")
	}
	return b, nil
}

func (r *fakeBuyRepo) Update(_ context.Context, b *buy.Buy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buys[b.ID] = b
	return nil
}

func (r *fakeBuyRepo) PendingForBuyer(_ context.Context, productID, buyerID uuid.UUID) (*buy.Buy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buys {
		if b.ProductID == productID && b.BuyerID == buyerID && b.Status == buy.StatusPending {
			return b, nil
		}
	}
	return nil, nil
}

// fakeTxCreator mimics the transaction service's acceptance behavior: it
// flips the origin record and returns a fresh transaction.
type fakeTxCreator struct {
	mu         sync.Mutex
	fromOffers int
	fromBuys   int
}

func (c *fakeTxCreator) CreateFromOffer(_ context.Context, p *product.Product, o *offer.Offer) (*transaction.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := o.Accept(); err != nil {
		return nil, err
	}
	c.fromOffers++
	return transaction.New(transaction.NewOfferOrigin(o.ID), p.ID, o.BuyerID, p.SellerID, o.Amount, p.Price), nil
}

func (c *fakeTxCreator) CreateFromBuy(_ context.Context, p *product.Product, b *buy.Buy) (*transaction.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := b.Confirm(); err != nil {
		return nil, err
	}
	c.fromBuys++
	return transaction.New(transaction.NewBuyOrigin(b.ID), p.ID, b.BuyerID, p.SellerID, b.PurchasePrice, p.Price), nil
}

type notification struct {
	userID uuid.UUID
	kind   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID: userID, kind: kind})
}

func money(t *testing.T, amount float64) values.Money {
	t.Helper()
	m, err := values.NewMoneyFromFloat(amount, values.USD)
	require.NoError(t, err)
	return m
}

type env struct {
	svc      Service
	products *fakeProductRepo
	offers   *fakeOfferRepo
	buys     *fakeBuyRepo
	txs      *fakeTxCreator
	notifier *fakeNotifier
}

func newEnv(t *testing.T, ps ...*product.Product) *env {
	t.Helper()
	e := &env{
		products: newFakeProductRepo(ps...),
		offers:   newFakeOfferRepo(),
		buys:     newFakeBuyRepo(),
		txs:      &fakeTxCreator{},
		notifier: &fakeNotifier{},
	}
	e.svc = NewService(e.products, e.offers, e.buys, e.txs, e.notifier, nil, nil, slog.Default())
	return e
}

func negotiableProduct(t *testing.T, seller uuid.UUID, price float64) *product.Product {
	t.Helper()
	p := product.NewProduct(seller, "bookshelf", money(t, price), product.SaleTypeNegotiable)
	p.AllowOffers = true
	return p
}

func TestCreateOffer(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()
	buyer := uuid.New()

	tests := []struct {
		name    string
		setup   func(t *testing.T) (*env, *CreateOfferRequest)
		wantErr errors.ErrorType
	}{
		{
			name: "valid offer on negotiable listing",
			setup: func(t *testing.T) (*env, *CreateOfferRequest) {
				p := negotiableProduct(t, seller, 100)
				return newEnv(t, p), &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 80}
			},
		},
		{
			name: "offers disabled",
			setup: func(t *testing.T) (*env, *CreateOfferRequest) {
				p := product.NewProduct(seller, "bookshelf", money(t, 100), product.SaleTypeFixed)
				return newEnv(t, p), &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 80}
			},
			wantErr: errors.ErrorTypeValidation,
		},
		{
			name: "inactive product",
			setup: func(t *testing.T) (*env, *CreateOfferRequest) {
				p := negotiableProduct(t, seller, 100)
				p.Status = product.StatusInTransaction
				return newEnv(t, p), &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 80}
			},
			wantErr: errors.ErrorTypeConflict,
		},
		{
			name: "seller offering on own listing",
			setup: func(t *testing.T) (*env, *CreateOfferRequest) {
				p := negotiableProduct(t, seller, 100)
				return newEnv(t, p), &CreateOfferRequest{ProductID: p.ID, BuyerID: seller, Amount: 80}
			},
			wantErr: errors.ErrorTypeValidation,
		},
		{
			name: "duplicate pending offer",
			setup: func(t *testing.T) (*env, *CreateOfferRequest) {
				p := negotiableProduct(t, seller, 100)
				e := newEnv(t, p)
				_, err := e.svc.CreateOffer(ctx, &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 70})
				require.NoError(t, err)
				return e, &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 80}
			},
			wantErr: errors.ErrorTypeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, req := tt.setup(t)
			o, err := e.svc.CreateOffer(ctx, req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, offer.StatusPending, o.Status)
			require.Len(t, e.notifier.sent, 1)
			assert.Equal(t, seller, e.notifier.sent[0].userID)
			assert.Equal(t, NotifyOfferReceived, e.notifier.sent[0].kind)
		})
	}
}

func TestOfferLifecycle(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()
	buyer := uuid.New()

	setup := func(t *testing.T) (*env, *product.Product, *offer.Offer) {
		p := negotiableProduct(t, seller, 100)
		e := newEnv(t, p)
		o, err := e.svc.CreateOffer(ctx, &CreateOfferRequest{ProductID: p.ID, BuyerID: buyer, Amount: 80})
		require.NoError(t, err)
		return e, p, o
	}

	t.Run("accept opens a transaction", func(t *testing.T) {
		e, p, o := setup(t)
		tx, err := e.svc.AcceptOffer(ctx, o.ID, seller)
		require.NoError(t, err)
		assert.Equal(t, offer.StatusAccepted, o.Status)
		assert.Equal(t, p.ID, tx.ProductID)
		assert.True(t, tx.AgreedPrice.Equal(o.Amount))
		assert.Equal(t, 1, e.txs.fromOffers)
	})

	t.Run("only the seller may accept", func(t *testing.T) {
		e, _, o := setup(t)
		_, err := e.svc.AcceptOffer(ctx, o.ID, buyer)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})

	t.Run("reject then resubmit then accept", func(t *testing.T) {
		e, _, o := setup(t)

		_, err := e.svc.RejectOffer(ctx, o.ID, seller)
		require.NoError(t, err)
		assert.Equal(t, offer.StatusRejected, o.Status)

		_, err = e.svc.UpdateOfferAmount(ctx, &UpdateOfferRequest{OfferID: o.ID, BuyerID: buyer, Amount: 90})
		require.NoError(t, err)
		assert.Equal(t, offer.StatusPending, o.Status)
		assert.True(t, o.Amount.Equal(money(t, 90)))

		_, err = e.svc.AcceptOffer(ctx, o.ID, seller)
		require.NoError(t, err)
	})

	t.Run("accepted offer cannot be accepted again", func(t *testing.T) {
		e, _, o := setup(t)
		_, err := e.svc.AcceptOffer(ctx, o.ID, seller)
		require.NoError(t, err)

		_, err = e.svc.AcceptOffer(ctx, o.ID, seller)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("withdraw blocks later acceptance", func(t *testing.T) {
		e, _, o := setup(t)
		_, err := e.svc.WithdrawOffer(ctx, o.ID, buyer)
		require.NoError(t, err)

		_, err = e.svc.AcceptOffer(ctx, o.ID, seller)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})
}

func TestBuyFlow(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()
	buyer := uuid.New()

	fixedProduct := func(t *testing.T) *product.Product {
		return product.NewProduct(seller, "toaster", money(t, 25), product.SaleTypeFixed)
	}

	t.Run("request then confirm opens a transaction at list price", func(t *testing.T) {
		p := fixedProduct(t)
		e := newEnv(t, p)

		b, err := e.svc.RequestPurchase(ctx, &RequestPurchaseRequest{ProductID: p.ID, BuyerID: buyer})
		require.NoError(t, err)
		assert.Equal(t, buy.StatusPending, b.Status)
		assert.True(t, b.PurchasePrice.Equal(p.Price))

		tx, err := e.svc.ConfirmBuy(ctx, b.ID, seller)
		require.NoError(t, err)
		assert.Equal(t, buy.StatusConfirmedPendingMeetup, b.Status)
		assert.True(t, tx.AgreedPrice.Equal(p.Price))
		assert.Equal(t, 1, e.txs.fromBuys)
	})

	t.Run("bidding listings cannot be bought directly", func(t *testing.T) {
		p := product.NewProduct(seller, "toaster", money(t, 25), product.SaleTypeBidding)
		e := newEnv(t, p)

		_, err := e.svc.RequestPurchase(ctx, &RequestPurchaseRequest{ProductID: p.ID, BuyerID: buyer})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("only the seller may confirm", func(t *testing.T) {
		p := fixedProduct(t)
		e := newEnv(t, p)
		b, err := e.svc.RequestPurchase(ctx, &RequestPurchaseRequest{ProductID: p.ID, BuyerID: buyer})
		require.NoError(t, err)

		_, err = e.svc.ConfirmBuy(ctx, b.ID, buyer)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})

	t.Run("buyer may cancel while pending", func(t *testing.T) {
		p := fixedProduct(t)
		e := newEnv(t, p)
		b, err := e.svc.RequestPurchase(ctx, &RequestPurchaseRequest{ProductID: p.ID, BuyerID: buyer})
		require.NoError(t, err)

		got, err := e.svc.CancelBuy(ctx, b.ID, buyer)
		require.NoError(t, err)
		assert.Equal(t, buy.StatusCancelledByBuyer, got.Status)

		_, err = e.svc.ConfirmBuy(ctx, b.ID, seller)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})
}
