package rest

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/bidding"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/negotiation"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/sharing"
	"github.com/davidleathers/meetpoint-market-backend/internal/service/transaction"
)

// Handler exposes the lifecycle operations over HTTP. Identity comes from
// the X-User-ID header; authentication itself is handled upstream.
type Handler struct {
	bids         bidding.Service
	negotiation  negotiation.Service
	transactions transaction.Service
	sharing      sharing.Service
	logger       *slog.Logger
}

func NewHandler(
	bids bidding.Service,
	neg negotiation.Service,
	txs transaction.Service,
	share sharing.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		bids:         bids,
		negotiation:  neg,
		transactions: txs,
		sharing:      share,
		logger:       logger,
	}
}

// Register mounts every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/bids", h.placeBid)
	mux.HandleFunc("GET /api/v1/bids/{id}", h.getBid)
	mux.HandleFunc("GET /api/v1/products/{id}/bids", h.listProductBids)

	mux.HandleFunc("POST /api/v1/offers", h.createOffer)
	mux.HandleFunc("GET /api/v1/offers/{id}", h.getOffer)
	mux.HandleFunc("PATCH /api/v1/offers/{id}", h.updateOffer)
	mux.HandleFunc("POST /api/v1/offers/{id}/accept", h.acceptOffer)
	mux.HandleFunc("POST /api/v1/offers/{id}/reject", h.rejectOffer)
	mux.HandleFunc("POST /api/v1/offers/{id}/withdraw", h.withdrawOffer)

	mux.HandleFunc("POST /api/v1/buys", h.requestPurchase)
	mux.HandleFunc("GET /api/v1/buys/{id}", h.getBuy)
	mux.HandleFunc("POST /api/v1/buys/{id}/confirm", h.confirmBuy)
	mux.HandleFunc("POST /api/v1/buys/{id}/cancel", h.cancelBuy)

	mux.HandleFunc("GET /api/v1/transactions/{id}", h.getTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{id}/meetup", h.proposeMeetup)
	mux.HandleFunc("POST /api/v1/transactions/{id}/meetup/accept", h.acceptMeetup)
	mux.HandleFunc("POST /api/v1/transactions/{id}/sold", h.markAsSold)
	mux.HandleFunc("POST /api/v1/transactions/{id}/cancel", h.cancelTransaction)

	mux.HandleFunc("POST /api/v1/conversations/{id}/location/start", h.startSharing)
	mux.HandleFunc("POST /api/v1/conversations/{id}/location/stop", h.stopSharing)
}

// Bidding

type placeBidPayload struct {
	ProductID uuid.UUID `json:"product_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload placeBidPayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	b, err := h.bids.PlaceBid(r.Context(), &bidding.PlaceBidRequest{
		ProductID: payload.ProductID,
		BidderID:  userID,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) getBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.bids.GetBid(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) listProductBids(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.bids.GetBidsForProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Offers

type createOfferPayload struct {
	ProductID uuid.UUID `json:"product_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload createOfferPayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.negotiation.CreateOffer(r.Context(), &negotiation.CreateOfferRequest{
		ProductID: payload.ProductID,
		BuyerID:   userID,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.negotiation.GetOffer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

type updateOfferPayload struct {
	Amount float64 `json:"amount"`
}

func (h *Handler) updateOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload updateOfferPayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.negotiation.UpdateOfferAmount(r.Context(), &negotiation.UpdateOfferRequest{
		OfferID: id,
		BuyerID: userID,
		Amount:  payload.Amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) acceptOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.negotiation.AcceptOffer(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) rejectOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.negotiation.RejectOffer(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) withdrawOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.negotiation.WithdrawOffer(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

// Buys

type requestPurchasePayload struct {
	ProductID uuid.UUID `json:"product_id"`
}

func (h *Handler) requestPurchase(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload requestPurchasePayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	b, err := h.negotiation.RequestPurchase(r.Context(), &negotiation.RequestPurchaseRequest{
		ProductID: payload.ProductID,
		BuyerID:   userID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) getBuy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.negotiation.GetBuy(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) confirmBuy(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.negotiation.ConfirmBuy(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) cancelBuy(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.negotiation.CancelBuy(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// Transactions

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

type proposeMeetupPayload struct {
	Time      time.Time `json:"time"`
	Location  string    `json:"location"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

func (h *Handler) proposeMeetup(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload proposeMeetupPayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.transactions.ProposeMeetup(r.Context(), &transaction.ProposeMeetupRequest{
		TransactionID: id,
		ProposerID:    userID,
		Time:          payload.Time,
		Location:      payload.Location,
		Latitude:      payload.Latitude,
		Longitude:     payload.Longitude,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) acceptMeetup(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.transactions.AcceptMeetup(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) markAsSold(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.transactions.MarkAsSold(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload cancelPayload
	if err := decode(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.transactions.CancelTransaction(r.Context(), id, userID, payload.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// Location sharing

func (h *Handler) startSharing(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.sharing.StartSharing(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) stopSharing(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.sharing.StopSharing(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// Helpers

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, errors.NewAuthorizationError("missing X-User-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.NewAuthorizationError("invalid X-User-ID header")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", "malformed "+name+" path parameter")
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("INVALID_BODY", "malformed request body")
	}
	return nil
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var body errorBody
	status := errors.GetStatusCode(err)

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body.Error.Type = string(appErr.Type)
		body.Error.Code = appErr.Code
		body.Error.Message = appErr.Message
	} else {
		body.Error.Type = "internal"
		body.Error.Message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
