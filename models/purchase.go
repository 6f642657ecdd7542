package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseKind string

const (
	PurchaseTicket  PurchaseKind = "ticket"
	PurchaseProgram PurchaseKind = "program"
)

// PurchaseRecord is the unified view over ticket purchases and program
// registrations used for purchase history and per-event registration status.
type PurchaseRecord struct {
	ID        string          `db:"id" json:"id"`
	Kind      PurchaseKind    `db:"kind" json:"kind"`
	Status    string          `db:"status" json:"status"` // paid, pending, waitlisted, cancelled
	EventID   string          `db:"event_id" json:"eventId,omitempty"`
	EventName string          `db:"event_name" json:"eventName"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Amount    decimal.Decimal `db:"-" json:"amount"`
	CreatedAt time.Time       `db:"-" json:"createdAt"`
}

// Waitlisted reports whether the record represents a waitlist spot rather
// than a confirmed registration.
func (r *PurchaseRecord) Waitlisted() bool {
	return r.Status == "waitlisted"
}

// Active reports whether the record still counts toward registration status.
func (r *PurchaseRecord) Active() bool {
	return r.Status != "cancelled"
}

// NormalizeEventName is the matching key for legacy records that carry no
// event id: trimmed and lowercased, nothing stricter.
func NormalizeEventName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type MembershipPackage struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Fee            decimal.Decimal `json:"fee"`
	DurationMonths int             `json:"durationMonths"`
}
