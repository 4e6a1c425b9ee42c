package values

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReferenceNumber is the human-readable identifier handed to both parties
// when a transaction completes. It is printable on a receipt and sortable by
// completion time.
type ReferenceNumber string

// NewReferenceNumber generates a reference number of the form MKT-<ULID>.
func NewReferenceNumber(at time.Time) ReferenceNumber {
	id := ulid.MustNew(ulid.Timestamp(at.UTC()), rand.Reader)
	return ReferenceNumber(fmt.Sprintf("MKT-%s", id.String()))
}

func (r ReferenceNumber) String() string {
	return string(r)
}

// IsZero reports whether no reference has been assigned yet.
func (r ReferenceNumber) IsZero() bool {
	return r == ""
}
