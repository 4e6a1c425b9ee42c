package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/bid"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/buy"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/conversation"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/offer"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// propagator pushes transaction state out to the records that mirror it:
// the product listing, the origin record, the conversation, and the realtime
// and notification channels. The transaction write that precedes each call
// is authoritative; every failure here is logged and counted, never
// surfaced to the caller. All writes are absolute, so replaying any step is
// safe.
type propagator struct {
	products ProductRepository
	offers   OfferRepository
	buys     BuyRepository
	bids     BidRepository
	convs    ConversationRepository
	messages MessageAppender
	notifier Notifier
	events   EventEmitter
	ledger   Ledger
	metrics  MetricsCollector
	logger   *slog.Logger
}

func newPropagator(
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
) *propagator {
	return &propagator{
		products: products,
		offers:   offers,
		buys:     buys,
		bids:     bids,
		convs:    convs,
		messages: messages,
		notifier: notifier,
		events:   events,
		ledger:   ledger,
		metrics:  metrics,
		logger:   logger,
	}
}

// onCreated back-fills the conversation for a freshly opened transaction,
// announces it in chat, and notifies the buyer.
func (p *propagator) onCreated(ctx context.Context, tx *transaction.Transaction, prod *product.Product) {
	conv := p.upsertConversation(ctx, tx)
	if conv != nil {
		p.appendMessage(ctx, tx, conv, acceptanceMessage(tx, prod))
	}

	var kind string
	switch tx.Origin.Kind {
	case transaction.OriginOffer:
		kind = NotifyOfferAccepted
	case transaction.OriginBuy:
		kind = NotifyBuyConfirmed
	case transaction.OriginBid:
		kind = NotifyBidWon
	}
	p.notify(ctx, tx.BuyerID, kind, tx)
	p.emit(tx, "transaction_created")
}

// onMeetupProposed announces a meetup proposal to the other party.
func (p *propagator) onMeetupProposed(ctx context.Context, tx *transaction.Transaction, proposerID uuid.UUID) {
	if conv := p.findConversation(ctx, tx); conv != nil {
		p.appendMessage(ctx, tx, conv, meetupProposedMessage(tx))
	}
	p.notify(ctx, tx.OtherParty(proposerID), NotifyMeetupProposed, tx)
	p.emit(tx, "meetup_proposed")
}

// onMeetupAccepted announces a confirmed meetup to the proposer.
func (p *propagator) onMeetupAccepted(ctx context.Context, tx *transaction.Transaction, accepterID uuid.UUID) {
	if conv := p.findConversation(ctx, tx); conv != nil {
		p.appendMessage(ctx, tx, conv, meetupAcceptedMessage(tx))
	}
	p.notify(ctx, tx.OtherParty(accepterID), NotifyMeetupAccepted, tx)
	p.emit(tx, "meetup_accepted")
}

// onResolved runs the full terminal fan-out: record synchronization, the
// closing chat message, notifications to both parties, and the audit mirror
// on completion.
func (p *propagator) onResolved(ctx context.Context, tx *transaction.Transaction) {
	p.syncRecords(ctx, tx)

	if conv := p.findConversation(ctx, tx); conv != nil {
		p.appendMessage(ctx, tx, conv, resolutionMessage(tx))
	}

	kind := resolutionNotifyKind(tx.Status)
	p.notify(ctx, tx.BuyerID, kind, tx)
	p.notify(ctx, tx.SellerID, kind, tx)
	if tx.IsReviewEligible() {
		p.notify(ctx, tx.BuyerID, NotifyReviewPrompt, tx)
		p.notify(ctx, tx.SellerID, NotifyReviewPrompt, tx)
		p.recordReceipt(ctx, tx)
	}
	p.emit(tx, kind)
}

// syncRecords pushes the terminal status to the origin record and the
// product listing. This is the part replayed by lazy repair on read.
func (p *propagator) syncRecords(ctx context.Context, tx *transaction.Transaction) {
	p.syncOrigin(ctx, tx)
	p.syncProduct(ctx, tx)
}

func (p *propagator) syncOrigin(ctx context.Context, tx *transaction.Transaction) {
	var err error
	switch tx.Origin.Kind {
	case transaction.OriginOffer:
		err = p.offers.UpdateStatus(ctx, tx.Origin.ID, offerStatusFor(tx.Status))
	case transaction.OriginBuy:
		err = p.buys.UpdateStatus(ctx, tx.Origin.ID, buyStatusFor(tx.Status))
	case transaction.OriginBid:
		err = p.bids.UpdateStatus(ctx, tx.Origin.ID, bidStatusFor(tx.Status))
	}
	if err != nil {
		p.logFailure(ctx, tx, "origin_status", err)
	}
}

func (p *propagator) syncProduct(ctx context.Context, tx *transaction.Transaction) {
	if tx.Status == transaction.StatusCompleted {
		at := time.Now()
		if tx.CompletedAt != nil {
			at = *tx.CompletedAt
		}
		if err := p.products.MarkSold(ctx, tx.ProductID, tx.BuyerID, at); err != nil {
			p.logFailure(ctx, tx, "product_sold", err)
		}
		return
	}

	// Cancelled and expired transactions put the listing back on the
	// market. Conditional on in_transaction so a listing the seller has
	// since removed stays removed.
	if _, err := p.products.UpdateStatusIf(ctx, tx.ProductID, product.StatusInTransaction, product.StatusActive); err != nil {
		p.logFailure(ctx, tx, "product_reopen", err)
	}
}

func (p *propagator) upsertConversation(ctx context.Context, tx *transaction.Transaction) *conversation.Conversation {
	conv, err := p.convs.FindForProduct(ctx, tx.BuyerID, tx.SellerID, tx.ProductID)
	if err != nil {
		p.logFailure(ctx, tx, "conversation_lookup", err)
		return nil
	}
	if conv == nil {
		productID := tx.ProductID
		conv = conversation.NewConversation(tx.BuyerID, tx.SellerID, &productID)
		if err := p.convs.Create(ctx, conv); err != nil {
			p.logFailure(ctx, tx, "conversation_create", err)
			return nil
		}
	}

	conv.AttachTransaction(tx.ID)
	originID := tx.Origin.ID
	switch tx.Origin.Kind {
	case transaction.OriginOffer:
		conv.OfferID = &originID
	case transaction.OriginBuy:
		conv.BuyID = &originID
	case transaction.OriginBid:
		conv.BidID = &originID
	}
	if err := p.convs.Update(ctx, conv); err != nil {
		p.logFailure(ctx, tx, "conversation_backfill", err)
		return nil
	}
	return conv
}

func (p *propagator) findConversation(ctx context.Context, tx *transaction.Transaction) *conversation.Conversation {
	conv, err := p.convs.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		p.logFailure(ctx, tx, "conversation_lookup", err)
		return nil
	}
	return conv
}

func (p *propagator) appendMessage(ctx context.Context, tx *transaction.Transaction, conv *conversation.Conversation, text string) {
	msg, err := p.messages.AppendSystemMessage(ctx, conv.ID, text)
	if err != nil {
		p.logFailure(ctx, tx, "system_message", err)
		return
	}
	conv.RecordMessage(text, msg.CreatedAt)
	if err := p.convs.Update(ctx, conv); err != nil {
		p.logFailure(ctx, tx, "conversation_preview", err)
	}
	if p.events != nil {
		p.events.Emit("conversation:"+conv.ID.String(), "new_message", msg)
	}
}

func (p *propagator) notify(ctx context.Context, userID uuid.UUID, kind string, tx *transaction.Transaction) {
	if p.notifier == nil || kind == "" {
		return
	}
	p.notifier.Notify(ctx, userID, kind, map[string]interface{}{
		"transaction_id": tx.ID.String(),
		"product_id":     tx.ProductID.String(),
		"status":         tx.Status.String(),
		"agreed_price":   tx.AgreedPrice.String(),
	})
}

func (p *propagator) emit(tx *transaction.Transaction, event string) {
	if p.events == nil {
		return
	}
	p.events.Emit("transaction:"+tx.ID.String(), event, tx)
	p.events.Emit("product:"+tx.ProductID.String(), event, tx.ID)
}

func (p *propagator) recordReceipt(ctx context.Context, tx *transaction.Transaction) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordReceipt(ctx, tx); err != nil {
		p.logFailure(ctx, tx, "ledger_receipt", err)
	}
}

func (p *propagator) logFailure(ctx context.Context, tx *transaction.Transaction, step string, cause error) {
	err := errors.NewPropagationError(step, cause)
	p.logger.Error("propagation step failed",
		slog.String("transaction_id", tx.ID.String()),
		slog.String("step", step),
		slog.Any("error", err))
	if p.metrics != nil {
		p.metrics.RecordPropagationFailure(ctx, step)
	}
}

func resolutionNotifyKind(s transaction.Status) string {
	switch s {
	case transaction.StatusCompleted:
		return NotifyTransactionCompleted
	case transaction.StatusCancelledByBuyer, transaction.StatusCancelledBySeller:
		return NotifyTransactionCancelled
	case transaction.StatusExpired:
		return NotifyTransactionExpired
	default:
		return ""
	}
}

func offerStatusFor(s transaction.Status) offer.Status {
	switch s {
	case transaction.StatusCompleted:
		return offer.StatusCompleted
	case transaction.StatusExpired:
		return offer.StatusExpired
	default:
		return offer.StatusCancelled
	}
}

func buyStatusFor(s transaction.Status) buy.Status {
	switch s {
	case transaction.StatusCompleted:
		return buy.StatusCompleted
	case transaction.StatusCancelledByBuyer:
		return buy.StatusCancelledByBuyer
	case transaction.StatusCancelledBySeller:
		return buy.StatusCancelledBySeller
	default:
		return buy.StatusExpired
	}
}

func bidStatusFor(s transaction.Status) bid.Status {
	switch s {
	case transaction.StatusCompleted:
		return bid.StatusCompleted
	case transaction.StatusExpired:
		return bid.StatusExpired
	default:
		return bid.StatusCancelled
	}
}
