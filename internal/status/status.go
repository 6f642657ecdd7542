package status

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransport covers connectivity and timeout failures before any
	// response was read.
	ErrTransport = errors.New("transport: request failed")

	// ErrServer covers non-2xx responses from the backend.
	ErrServer = errors.New("server: unexpected status")

	// ErrDecode covers malformed or unexpected JSON/HTML payloads.
	ErrDecode = errors.New("decode: unexpected payload shape")

	ErrUnauthorized = errors.New("auth: credentials rejected")

	ErrSyncInProgress = errors.New("sync: already in progress")

	ErrMissingPurchaseField = errors.New("purchase: missing required field")

	ErrBadExpiryDate = errors.New("membership: could not parse expiry date")

	ErrPaymentNotConfirmed = errors.New("payment: confirmation rejected")
)

// ServerError wraps ErrServer with the status code and a body excerpt.
func ServerError(op string, code int, body []byte) error {
	const maxBody = 256
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Errorf("%s: status %d (%s): %w", op, code, body, ErrServer)
}

// Confirmation is the settled-payment payload returned by the backend
// confirmation endpoint.
type Confirmation struct {
	Status           string          `json:"status"`
	TransactionID    string          `json:"transactionId"`
	Amount           decimal.Decimal `json:"amount"`
	MembershipExpiry string          `json:"membershipExpiry,omitempty"`
	TicketURL        string          `json:"ticketUrl,omitempty"`
	ConfirmedAt      time.Time       `json:"confirmedAt"`
}

// Settled reports whether the backend accepted the payment.
func (c *Confirmation) Settled() bool {
	return c.Status == "success" || c.Status == "paid"
}
