package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Summary     string     `db:"summary" json:"summary"`
	Description string     `db:"description" json:"description"`
	Location    string     `db:"location" json:"location"`
	Category    string     `db:"category" json:"category"`
	ImageURL    string     `db:"image_url" json:"imageUrl"`
	Link        string     `db:"link" json:"link"`
	StartsAt    *time.Time `db:"-" json:"startsAt"`
	UsesPanthi  bool       `db:"uses_panthi" json:"usesPanthi"`

	// Registration flags arrive as bool, int or string depending on the
	// backend version. Absent means the flag was not decodable.
	TicketsOpen      FlexBool `db:"-" json:"ticketsOpen"`
	RegistrationOpen FlexBool `db:"-" json:"registrationOpen"`

	// UpdatedAt is the sync cursor source; incremental sync requests only
	// records strictly newer than the stored cursor.
	UpdatedAt time.Time `db:"-" json:"lastUpdatedAt"`

	TicketTypes []TicketType `db:"-" json:"ticketTypes,omitempty"`
	Panthis     []Panthi     `db:"-" json:"panthis,omitempty"`
	Programs    []Program    `db:"-" json:"programs,omitempty"`
}

// Upcoming reports whether the event has a start time that is not in the past.
func (e *Event) Upcoming(now time.Time) bool {
	return e.StartsAt != nil && !e.StartsAt.Before(now)
}

type TicketType struct {
	ID             string           `db:"id" json:"id"`
	EventID        string           `db:"event_id" json:"eventId"`
	Name           string           `db:"name" json:"name"`
	Price          decimal.Decimal  `db:"-" json:"price"`
	EarlyBirdPrice *decimal.Decimal `db:"-" json:"earlyBirdPrice,omitempty"`
	EarlyBirdUntil *time.Time       `db:"-" json:"earlyBirdUntil,omitempty"`
}

// CurrentPrice returns the early-bird price while the cutoff has not passed,
// otherwise the regular price.
func (t *TicketType) CurrentPrice(now time.Time) decimal.Decimal {
	if t.EarlyBirdPrice != nil && t.EarlyBirdUntil != nil && !now.After(*t.EarlyBirdUntil) {
		return *t.EarlyBirdPrice
	}
	return t.Price
}

type Panthi struct {
	ID       string `db:"id" json:"id"`
	EventID  string `db:"event_id" json:"eventId"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}

type Program struct {
	ID       string     `db:"id" json:"id"`
	EventID  string     `db:"event_id" json:"eventId"`
	Name     string     `db:"name" json:"name"`
	Category string     `db:"category" json:"category"`
	StartsAt *time.Time `db:"-" json:"startsAt,omitempty"`
}
