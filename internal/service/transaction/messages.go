package transaction

import (
	"fmt"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/product"
	"github.com/davidleathers/meetpoint-market-backend/internal/domain/transaction"
)

// System-authored chat messages posted into the conversation as the
// transaction moves through its lifecycle.

func acceptanceMessage(tx *transaction.Transaction, prod *product.Product) string {
	switch tx.Origin.Kind {
	case transaction.OriginBuy:
		return fmt.Sprintf("Purchase confirmed for %q at %s. Arrange a meetup to complete the exchange.", prod.Title, tx.AgreedPrice)
	case transaction.OriginBid:
		return fmt.Sprintf("Auction won! %q goes for %s. Arrange a meetup to complete the exchange.", prod.Title, tx.AgreedPrice)
	default:
		return fmt.Sprintf("Offer accepted for %q at %s. Arrange a meetup to complete the exchange.", prod.Title, tx.AgreedPrice)
	}
}

func meetupProposedMessage(tx *transaction.Transaction) string {
	when := ""
	if tx.ScheduledMeetupAt != nil {
		when = tx.ScheduledMeetupAt.Format("Mon, Jan 2 at 15:04")
	}
	return fmt.Sprintf("Meetup proposed: %s, %s. Waiting for the other party to accept.", tx.MeetupLocation, when)
}

func meetupAcceptedMessage(tx *transaction.Transaction) string {
	when := ""
	if tx.ScheduledMeetupAt != nil {
		when = tx.ScheduledMeetupAt.Format("Mon, Jan 2 at 15:04")
	}
	return fmt.Sprintf("Meetup confirmed: %s, %s.", tx.MeetupLocation, when)
}

func resolutionMessage(tx *transaction.Transaction) string {
	switch tx.Status {
	case transaction.StatusCompleted:
		return fmt.Sprintf("Transaction complete. Reference %s. You can now review each other.", tx.ReferenceNumber)
	case transaction.StatusCancelledByBuyer:
		return "The buyer cancelled the transaction. The listing is back on the market."
	case transaction.StatusCancelledBySeller:
		return "The seller cancelled the transaction. The listing is back on the market."
	case transaction.StatusExpired:
		return "The transaction expired without a completed meetup. The listing is back on the market."
	default:
		return ""
	}
}
