package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/bidding"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/negotiation"
	transactionsvc "github.com/davidleathers/meetpoint-market-backend/internal/service/transaction"
	"github.com/davidleathers/meetpoint-market-backend/internal/testutil/fixtures"
)

var errNotStubbed = errors.NewInternalError("not stubbed")

type stubBidding struct {
	placeBid func(ctx context.Context, req *bidding.PlaceBidRequest) (*bid.Bid, error)
}

func (s *stubBidding) PlaceBid(ctx context.Context, req *bidding.PlaceBidRequest) (*bid.Bid, error) {
	if s.placeBid != nil {
		return s.placeBid(ctx, req)
	}
	return nil, errNotStubbed
}

func (s *stubBidding) GetBid(context.Context, uuid.UUID) (*bid.Bid, error) {
	return nil, errors.NewNotFoundError("bid")
}

func (s *stubBidding) GetBidsForProduct(context.Context, uuid.UUID) ([]*bid.Bid, error) {
	return nil, errNotStubbed
}

func (s *stubBidding) CloseExpiredAuctions(context.Context, time.Time) error {
	return errNotStubbed
}

type stubNegotiation struct {
	acceptOffer func(ctx context.Context, offerID, sellerID uuid.UUID) (*transaction.Transaction, error)
}

func (s *stubNegotiation) CreateOffer(context.Context, *negotiation.CreateOfferRequest) (*offer.Offer, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) AcceptOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*transaction.Transaction, error) {
	if s.acceptOffer != nil {
		return s.acceptOffer(ctx, offerID, sellerID)
	}
	return nil, errNotStubbed
}

func (s *stubNegotiation) RejectOffer(context.Context, uuid.UUID, uuid.UUID) (*offer.Offer, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) UpdateOfferAmount(context.Context, *negotiation.UpdateOfferRequest) (*offer.Offer, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) WithdrawOffer(context.Context, uuid.UUID, uuid.UUID) (*offer.Offer, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) GetOffer(context.Context, uuid.UUID) (*offer.Offer, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) RequestPurchase(context.Context, *negotiation.RequestPurchaseRequest) (*buy.Buy, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) ConfirmBuy(context.Context, uuid.UUID, uuid.UUID) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) CancelBuy(context.Context, uuid.UUID, uuid.UUID) (*buy.Buy, error) {
	return nil, errNotStubbed
}

func (s *stubNegotiation) GetBuy(context.Context, uuid.UUID) (*buy.Buy, error) {
	return nil, errNotStubbed
}

type stubTransactions struct {
	proposeMeetup func(ctx context.Context, req *transactionsvc.ProposeMeetupRequest) (*transaction.Transaction, error)
}

func (s *stubTransactions) CreateFromOffer(context.Context, *product.Product, *offer.Offer) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubTransactions) CreateFromBuy(context.Context, *product.Product, *buy.Buy) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubTransactions) CreateFromBid(context.Context, *product.Product, *bid.Bid) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubTransactions) ProposeMeetup(ctx context.Context, req *transactionsvc.ProposeMeetupRequest) (*transaction.Transaction, error) {
	if s.proposeMeetup != nil {
		return s.proposeMeetup(ctx, req)
	}
	return nil, errNotStubbed
}

func (s *stubTransactions) AcceptMeetup(context.Context, uuid.UUID, uuid.UUID) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubTransactions) MarkAsSold(context.Context, uuid.UUID, uuid.UUID) (*transaction.Transaction, error) {
	return nil, errNotStubbed
}

func (s *stubTransactions) CancelTransaction(context.Context, uuid.UUID, uuid.UUID, string) (*transaction.Transaction, error) {
	return nil, errors.NewConflictError("cannot cancel within one hour of the scheduled meetup")
}

func (s *stubTransactions) GetTransaction(context.Context, uuid.UUID) (*transaction.Transaction, error) {
	return nil, errors.NewNotFoundError("transaction")
}

func (s *stubTransactions) ExpireStale(context.Context, time.Time) error {
	return errNotStubbed
}

type stubSharing struct{}

func (s *stubSharing) StartSharing(context.Context, uuid.UUID, uuid.UUID) (*conversation.LocationSharingSession, error) {
	return nil, errNotStubbed
}

func (s *stubSharing) StopSharing(context.Context, uuid.UUID, uuid.UUID) (*conversation.LocationSharingSession, error) {
	return nil, errNotStubbed
}

func (s *stubSharing) ExpireOverdue(context.Context, time.Time) error {
	return errNotStubbed
}

func newTestMux(bids *stubBidding, neg *stubNegotiation, txs *stubTransactions) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(bids, neg, txs, &stubSharing{}, slog.Default()).Register(mux)
	return mux
}

func TestPlaceBidEndpoint(t *testing.T) {
	productID := uuid.New()
	bids := &stubBidding{
		placeBid: func(_ context.Context, req *bidding.PlaceBidRequest) (*bid.Bid, error) {
			return fixtures.NewBidBuilder().
				WithProduct(req.ProductID).
				WithBidder(req.BidderID).
				WithAmount(req.Amount).
				Build(), nil
		},
	}
	mux := newTestMux(bids, &stubNegotiation{}, &stubTransactions{})

	t.Run("creates bid", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"product_id": productID,
			"amount":     110.0,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bids", bytes.NewReader(body))
		req.Header.Set("X-User-ID", uuid.NewString())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var got bid.Bid
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, productID, got.ProductID)
	})

	t.Run("missing identity header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bids", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bids", bytes.NewReader([]byte(`{`)))
		req.Header.Set("X-User-ID", uuid.NewString())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	mux := newTestMux(&stubBidding{}, &stubNegotiation{}, &stubTransactions{})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body.Error.Type)
	})

	t.Run("conflict", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+uuid.NewString()+"/cancel",
			bytes.NewReader([]byte(`{"reason":"changed my mind"}`)))
		req.Header.Set("X-User-ID", uuid.NewString())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed path id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProposeMeetupEndpoint(t *testing.T) {
	var captured *transactionsvc.ProposeMeetupRequest
	txs := &stubTransactions{
		proposeMeetup: func(_ context.Context, req *transactionsvc.ProposeMeetupRequest) (*transaction.Transaction, error) {
			captured = req
			return fixtures.NewTransactionBuilder().WithScheduledMeetup(req.Time).Build(), nil
		},
	}
	mux := newTestMux(&stubBidding{}, &stubNegotiation{}, txs)

	txID := uuid.New()
	proposer := uuid.New()
	meetupAt := time.Now().Add(4 * time.Hour).UTC().Truncate(time.Second)

	body, _ := json.Marshal(map[string]interface{}{
		"time":     meetupAt,
		"location": "Central Station, north entrance",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+txID.String()+"/meetup", bytes.NewReader(body))
	req.Header.Set("X-User-ID", proposer.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, txID, captured.TransactionID)
	assert.Equal(t, proposer, captured.ProposerID)
	assert.True(t, captured.Time.Equal(meetupAt))
	assert.Equal(t, "Central Station, north entrance", captured.Location)
}

func TestAcceptOfferEndpoint(t *testing.T) {
	seller := uuid.New()
	offerID := uuid.New()
	neg := &stubNegotiation{
		acceptOffer: func(_ context.Context, id, sellerID uuid.UUID) (*transaction.Transaction, error) {
			if sellerID != seller {
				return nil, errors.NewAuthorizationError("only the seller may accept the offer")
			}
			return fixtures.NewTransactionBuilder().
				WithOrigin(transaction.NewOfferOrigin(id)).
				Build(), nil
		},
	}
	mux := newTestMux(&stubBidding{}, neg, &stubTransactions{})

	t.Run("seller accepts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/"+offerID.String()+"/accept", nil)
		req.Header.Set("X-User-ID", seller.String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var got transaction.Transaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, offerID, got.Origin.ID)
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/"+offerID.String()+"/accept", nil)
		req.Header.Set("X-User-ID", uuid.NewString())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
