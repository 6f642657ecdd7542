package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"memberhub/internal/payment"
	"memberhub/internal/status"
	"memberhub/models"
	"memberhub/store"
)

// MembershipAPI is the modern backend surface used for profile and renewal.
type MembershipAPI interface {
	Profile(ctx context.Context) (*models.UserProfile, error)
	MembershipPackages(ctx context.Context) ([]models.MembershipPackage, error)
	RenewMembership(ctx context.Context, packageID string) (string, error)
}

// LegacyPortal is the scraped member portal, the fallback source of profile
// data and the only writer for family members.
type LegacyPortal interface {
	FetchProfile(ctx context.Context) (*models.UserProfile, error)
	FetchFamily(ctx context.Context) ([]models.FamilyMember, error)
	SaveFamilyMember(ctx context.Context, m *models.FamilyMember) error
	DeleteFamilyMember(ctx context.Context, id string) error
}

// PaymentConfirmer matches provider return redirects and runs the
// server-side confirmation handshake.
type PaymentConfirmer interface {
	Match(u *url.URL) (*payment.ReturnParams, bool)
	Confirm(ctx context.Context, p *payment.ReturnParams, contact payment.ContactFields) (*status.Confirmation, error)
}

// MembershipService owns profile, family and renewal flows. Profile reads
// prefer the API and fall back to the legacy portal; family writes always go
// through the portal, and the local cache updates only after the backend
// acknowledges.
type MembershipService struct {
	API     MembershipAPI
	Legacy  LegacyPortal
	Payment PaymentConfirmer
	Store   *store.Store

	// Pub, when set, announces settled payments so the app shell can react
	// without polling.
	Pub     Publisher
	Channel string
}

func NewMembershipService(api MembershipAPI, legacy LegacyPortal, pay PaymentConfirmer, st *store.Store) *MembershipService {
	return &MembershipService{API: api, Legacy: legacy, Payment: pay, Store: st}
}

// RefreshProfile pulls the profile and family list and replaces the cached
// copies. When the API is unreachable the legacy portal serves the profile.
func (s *MembershipService) RefreshProfile(ctx context.Context) (*models.UserProfile, error) {
	profile, err := s.API.Profile(ctx)
	if err != nil {
		slog.Warn("membership: api profile failed, falling back to portal", "error", err)
		profile, err = s.Legacy.FetchProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("membership.RefreshProfile: %w", err)
		}
	}

	if err := s.Store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("membership.RefreshProfile: %w", err)
	}

	family, err := s.Legacy.FetchFamily(ctx)
	if err != nil {
		// A profile without the family list is still useful.
		slog.Warn("membership: family fetch failed", "error", err)
		return profile, nil
	}
	if err := s.Store.ReplaceFamily(ctx, profile.ID, family); err != nil {
		return nil, fmt.Errorf("membership.RefreshProfile: %w", err)
	}
	return profile, nil
}

// CachedProfile returns the locally cached profile, nil when none is stored.
func (s *MembershipService) CachedProfile(ctx context.Context) (*models.UserProfile, error) {
	return s.Store.GetProfile(ctx)
}

// Family returns the cached family members for the given profile.
func (s *MembershipService) Family(ctx context.Context, userID string) ([]models.FamilyMember, error) {
	return s.Store.ListFamily(ctx, userID)
}

// SaveFamilyMember writes through to the portal, then re-fetches the family
// list so the cache reflects server-assigned ids.
func (s *MembershipService) SaveFamilyMember(ctx context.Context, userID string, m *models.FamilyMember) error {
	if err := s.Legacy.SaveFamilyMember(ctx, m); err != nil {
		return err
	}
	return s.refreshFamily(ctx, userID)
}

// DeleteFamilyMember removes a member on the portal, then refreshes the cache.
func (s *MembershipService) DeleteFamilyMember(ctx context.Context, userID, memberID string) error {
	if err := s.Legacy.DeleteFamilyMember(ctx, memberID); err != nil {
		return err
	}
	return s.refreshFamily(ctx, userID)
}

func (s *MembershipService) refreshFamily(ctx context.Context, userID string) error {
	family, err := s.Legacy.FetchFamily(ctx)
	if err != nil {
		return fmt.Errorf("membership: refresh family: %w", err)
	}
	if err := s.Store.ReplaceFamily(ctx, userID, family); err != nil {
		return fmt.Errorf("membership: refresh family: %w", err)
	}
	return nil
}

// Packages lists the renewal packages on offer.
func (s *MembershipService) Packages(ctx context.Context) ([]models.MembershipPackage, error) {
	return s.API.MembershipPackages(ctx)
}

// StartRenewal begins a renewal and returns the hosted checkout URL.
func (s *MembershipService) StartRenewal(ctx context.Context, packageID string) (string, error) {
	return s.API.RenewMembership(ctx, packageID)
}

// CompletePayment inspects a checkout redirect URL. Non-return URLs report
// (false, nil, nil) so the web view keeps navigating. A matched return URL
// triggers exactly one confirmation call; a declined or failed handshake
// surfaces status.ErrPaymentNotConfirmed and is never retried automatically.
func (s *MembershipService) CompletePayment(ctx context.Context, rawURL string) (bool, *status.Confirmation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, nil, fmt.Errorf("membership.CompletePayment: %w", err)
	}

	params, ok := s.Payment.Match(u)
	if !ok {
		return false, nil, nil
	}

	var contact payment.ContactFields
	if profile, err := s.Store.GetProfile(ctx); err == nil && profile != nil {
		contact = payment.ContactFields{
			Name:  profile.Name,
			Phone: profile.Phone,
			Email: profile.Email,
		}
	}

	conf, err := s.Payment.Confirm(ctx, params, contact)
	if err != nil {
		return true, conf, err
	}

	if conf.MembershipExpiry != "" {
		if err := s.Store.SetMembershipExpiry(ctx, conf.MembershipExpiry); err != nil {
			return true, conf, fmt.Errorf("membership.CompletePayment: %w", err)
		}
	}
	if s.Pub != nil {
		msg := map[string]any{
			"type":           "payment_settled",
			"transaction_id": conf.TransactionID,
			"status":         conf.Status,
		}
		if err := s.Pub.Publish(ctx, s.Channel, msg); err != nil {
			slog.Warn("membership: settled-payment publish failed", "error", err)
		}
	}

	slog.Info("membership: payment confirmed",
		"transaction", conf.TransactionID, "expiry", conf.MembershipExpiry)
	return true, conf, nil
}
