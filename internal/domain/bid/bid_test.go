package bid_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/values"
)

func usd(amount float64) values.Money {
	return values.MustNewMoneyFromFloat(amount, values.USD)
}

func TestNewBid(t *testing.T) {
	productID := uuid.New()
	bidderID := uuid.New()

	b := bid.NewBid(productID, bidderID, usd(110))

	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, productID, b.ProductID)
	assert.Equal(t, bidderID, b.BidderID)
	assert.Equal(t, bid.StatusActive, b.Status)
	assert.NotZero(t, b.PlacedAt)
}

func TestValidateAmount_FirstBid(t *testing.T) {
	price := usd(100)
	increment := usd(10)

	tests := []struct {
		name     string
		amount   float64
		wantErr  bool
		wantCode string
	}{
		{name: "below starting price", amount: 90, wantErr: true, wantCode: "BID_TOO_LOW"},
		{name: "equal to starting price but below increment floor", amount: 100, wantErr: true, wantCode: "BID_TOO_LOW"},
		{name: "not a multiple of increment", amount: 105, wantErr: true, wantCode: "BID_OFF_INCREMENT"},
		{name: "exactly price plus increment", amount: 110},
		{name: "two increments", amount: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bid.ValidateAmount(price, increment, nil, usd(tt.amount))
			if tt.wantErr {
				require.Error(t, err)
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateAmount_AgainstHighBid(t *testing.T) {
	price := usd(100)
	increment := usd(10)
	high := bid.NewBid(uuid.New(), uuid.New(), usd(110))

	tests := []struct {
		name     string
		amount   float64
		wantErr  bool
		wantCode string
	}{
		{name: "below high bid", amount: 105, wantErr: true, wantCode: "BID_NOT_HIGHER"},
		{name: "equal to high bid", amount: 110, wantErr: true, wantCode: "BID_NOT_HIGHER"},
		{name: "above high bid but off increment", amount: 115, wantErr: true, wantCode: "BID_OFF_INCREMENT"},
		{name: "one increment above", amount: 120},
		{name: "two increments above", amount: 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bid.ValidateAmount(price, increment, high, usd(tt.amount))
			if tt.wantErr {
				require.Error(t, err)
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateAmount_NoIncrement(t *testing.T) {
	price := usd(100)
	noIncrement := values.Zero(values.USD)

	t.Run("first bid at starting price allowed", func(t *testing.T) {
		require.NoError(t, bid.ValidateAmount(price, noIncrement, nil, usd(100)))
	})

	t.Run("any strictly higher amount beats the high bid", func(t *testing.T) {
		high := bid.NewBid(uuid.New(), uuid.New(), usd(100))
		require.NoError(t, bid.ValidateAmount(price, noIncrement, high, usd(100.01)))
		require.Error(t, bid.ValidateAmount(price, noIncrement, high, usd(100)))
	})
}

func TestBid_Transitions(t *testing.T) {
	b := bid.NewBid(uuid.New(), uuid.New(), usd(110))

	b.MarkOutbid()
	assert.Equal(t, bid.StatusOutbid, b.Status)

	b.MarkWon()
	assert.Equal(t, bid.StatusWon, b.Status)

	b.MarkLost()
	assert.Equal(t, bid.StatusLost, b.Status)
}

func TestStatus_StringRoundTrip(t *testing.T) {
	for _, s := range []bid.Status{
		bid.StatusActive, bid.StatusOutbid, bid.StatusWon, bid.StatusLost,
		bid.StatusCompleted, bid.StatusCancelled, bid.StatusExpired,
	} {
		assert.Equal(t, s, bid.ParseStatus(s.String()))
	}
}
