package bidding

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
)

// CloseExpiredAuctions resolves every active bidding product whose window
// closed before now. The sweep is idempotent: the conditional product status
// transition is the guard, so a product already moved off `active` is
// skipped on re-execution. A failure on one product is logged and the sweep
// moves on.
func (s *service) CloseExpiredAuctions(ctx context.Context, now time.Time) error {
	expired, err := s.products.ListExpiredBidding(ctx, now)
	if err != nil {
		return errors.NewInternalError("failed to list expired auctions").WithCause(err)
	}

	for _, p := range expired {
		if err := s.closeAuction(ctx, p); err != nil {
			s.logger.Error("auction close failed",
				slog.String("product_id", p.ID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

func (s *service) closeAuction(ctx context.Context, p *product.Product) error {
	winning, err := s.bids.HighestActiveForProduct(ctx, p.ID)
	if err != nil {
		return errors.NewInternalError("failed to find highest bid").WithCause(err)
	}

	if winning == nil {
		// No bids: the listing expires, no transaction.
		moved, err := s.products.UpdateStatusIf(ctx, p.ID, product.StatusActive, product.StatusExpired)
		if err != nil {
			return errors.NewInternalError("failed to expire product").WithCause(err)
		}
		if moved {
			if s.events != nil {
				s.events.Emit("product:"+p.ID.String(), "auction_expired", p.ID)
			}
			if s.metrics != nil {
				s.metrics.RecordAuctionClosed(ctx, false)
			}
		}
		return nil
	}

	// The status transition doubles as the idempotence guard: only the
	// sweep run that wins this conditional write processes the product.
	moved, err := s.products.UpdateStatusIf(ctx, p.ID, product.StatusActive, product.StatusInTransaction)
	if err != nil {
		return errors.NewInternalError("failed to reserve product").WithCause(err)
	}
	if !moved {
		return nil
	}

	winning.MarkWon()
	if err := s.bids.Update(ctx, winning); err != nil {
		return errors.NewInternalError("failed to mark winning bid").WithCause(err)
	}
	if err := s.bids.MarkLostExcept(ctx, p.ID, winning.ID); err != nil {
		s.logger.Warn("failed to mark losing bids",
			slog.String("product_id", p.ID.String()),
			slog.Any("error", err))
	}

	tx, err := s.txs.CreateFromBid(ctx, p, winning)
	if err != nil {
		return errors.NewInternalError("failed to create transaction from winning bid").WithCause(err)
	}

	if s.events != nil {
		s.events.Emit("product:"+p.ID.String(), "bid_won", map[string]interface{}{
			"bid_id":         winning.ID.String(),
			"transaction_id": tx.ID.String(),
		})
	}
	if s.metrics != nil {
		s.metrics.RecordAuctionClosed(ctx, true)
	}
	return nil
}
