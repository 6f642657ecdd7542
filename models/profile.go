package models

import (
	"time"

	"memberhub/internal/status"
)

// Accepted membership expiry formats, tried in order.
var expiryFormats = []string{"02-Jan-2006", "2006-01-02"}

type UserProfile struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	DateOfBirth string `db:"date_of_birth" json:"dateOfBirth"`
	Address     string `db:"address" json:"address"`
	Phone       string `db:"phone" json:"phone"`
	Email       string `db:"email" json:"email"`
	Comments    string `db:"comments" json:"comments"`

	// MembershipExpiry is kept as the raw backend string; both accepted
	// date formats are tried when deriving membership state.
	MembershipExpiry string `db:"membership_expiry" json:"membershipExpiry"`
}

// ExpiryDate parses the membership expiry via the accepted formats.
func (p *UserProfile) ExpiryDate() (time.Time, error) {
	raw := p.MembershipExpiry
	for _, layout := range expiryFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, status.ErrBadExpiryDate
}

// IsMember reports whether the membership expiry is today or later. An
// unparseable or empty expiry yields false.
func (p *UserProfile) IsMember(now time.Time) bool {
	expiry, err := p.ExpiryDate()
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !expiry.Before(today)
}

type FamilyMember struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"userId"`
	Name         string `db:"name" json:"name"`
	Relationship string `db:"relationship" json:"relationship"`
	Phone        string `db:"phone" json:"phone,omitempty"`
	Email        string `db:"email" json:"email,omitempty"`
}
