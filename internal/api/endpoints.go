package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"memberhub/internal/status"
	"memberhub/models"
)

// EventsDelta is the change set returned by the events delta endpoint.
type EventsDelta struct {
	Changed    []models.Event `json:"changed"`
	DeletedIDs []string       `json:"deleted"`
}

// MaxUpdatedAt returns the newest update stamp among the changed records.
func (d *EventsDelta) MaxUpdatedAt() time.Time {
	var max time.Time
	for i := range d.Changed {
		if d.Changed[i].UpdatedAt.After(max) {
			max = d.Changed[i].UpdatedAt
		}
	}
	return max
}

// EventsChangedSince fetches records changed strictly after since. A nil
// since requests the full data set.
func (c *Client) EventsChangedSince(ctx context.Context, since *time.Time) (*EventsDelta, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	var delta EventsDelta
	if err := c.do(ctx, "api.EventsChangedSince", http.MethodGet, "/api/v1/events/delta", query, nil, &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

type purchasePayload struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	EventID   string          `json:"eventId"`
	EventName string          `json:"eventName"`
	Quantity  int             `json:"quantity"`
	Amount    json.RawMessage `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Purchases fetches the unified purchase history: ticket purchases and
// program registrations in one view.
func (c *Client) Purchases(ctx context.Context) ([]models.PurchaseRecord, error) {
	var reply struct {
		Tickets       []purchasePayload `json:"tickets"`
		Registrations []purchasePayload `json:"registrations"`
	}
	if err := c.do(ctx, "api.Purchases", http.MethodGet, "/api/v1/purchases", nil, nil, &reply); err != nil {
		return nil, err
	}

	records := make([]models.PurchaseRecord, 0, len(reply.Tickets)+len(reply.Registrations))
	for _, p := range reply.Tickets {
		rec, err := p.toRecord(models.PurchaseTicket)
		if err != nil {
			return nil, fmt.Errorf("api.Purchases: %w", err)
		}
		records = append(records, rec)
	}
	for _, p := range reply.Registrations {
		rec, err := p.toRecord(models.PurchaseProgram)
		if err != nil {
			return nil, fmt.Errorf("api.Purchases: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *purchasePayload) toRecord(kind models.PurchaseKind) (models.PurchaseRecord, error) {
	if p.ID == "" || (p.EventID == "" && p.EventName == "") {
		return models.PurchaseRecord{}, status.ErrMissingPurchaseField
	}
	rec := models.PurchaseRecord{
		ID:        p.ID,
		Kind:      kind,
		Status:    p.Status,
		EventID:   p.EventID,
		EventName: p.EventName,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
	}
	if len(p.Amount) > 0 {
		if err := rec.Amount.UnmarshalJSON(p.Amount); err != nil {
			return models.PurchaseRecord{}, fmt.Errorf("amount for %s: %w", p.ID, status.ErrDecode)
		}
	}
	return rec, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.do(ctx, "api.Profile", http.MethodGet, "/api/v1/profile", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// MembershipPackages lists the renewal packages on offer.
func (c *Client) MembershipPackages(ctx context.Context) ([]models.MembershipPackage, error) {
	var reply struct {
		Packages []models.MembershipPackage `json:"packages"`
	}
	if err := c.do(ctx, "api.MembershipPackages", http.MethodGet, "/api/v1/membership/packages", nil, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Packages, nil
}

// RenewMembership starts a renewal and returns the hosted checkout URL the
// web view should load.
func (c *Client) RenewMembership(ctx context.Context, packageID string) (string, error) {
	var reply struct {
		CheckoutURL string `json:"checkoutUrl"`
	}
	body := map[string]string{"packageId": packageID}
	if err := c.do(ctx, "api.RenewMembership", http.MethodPost, "/api/v1/membership/renew", nil, body, &reply); err != nil {
		return "", err
	}
	if reply.CheckoutURL == "" {
		return "", fmt.Errorf("api.RenewMembership: empty checkout url: %w", status.ErrDecode)
	}
	return reply.CheckoutURL, nil
}

// VersionInfo is the app-version gate published by the backend.
type VersionInfo struct {
	Minimum     string `json:"minimum"`
	Recommended string `json:"recommended"`
	Override    string `json:"override,omitempty"` // none|optional|mandatory, explicit server override
}

// VersionGate fetches the current version requirements.
func (c *Client) VersionGate(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.do(ctx, "api.VersionGate", http.MethodGet, "/api/v1/app/version", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
