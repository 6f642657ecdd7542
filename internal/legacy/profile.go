package legacy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"memberhub/models"
)

// fieldText returns the first non-empty value among the candidate selectors,
// preferring an input's value attribute over element text.
func fieldText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("value"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if t := strings.TrimSpace(node.Text()); t != "" {
			return t
		}
	}
	return ""
}

// FetchProfile scrapes the member profile page. Fields the page does not
// carry come back empty.
func (s *Session) FetchProfile(ctx context.Context) (*models.UserProfile, error) {
	doc, err := s.getPage(ctx, "/member/profile")
	if err != nil {
		return nil, fmt.Errorf("legacy.FetchProfile: %w", err)
	}

	profile := &models.UserProfile{
		ID:          fieldText(doc, `input[name="member_id"]`, "#member-id", "[data-member-id]"),
		Name:        fieldText(doc, `input[name="name"]`, "#profile-name", ".profile-header h2"),
		DateOfBirth: fieldText(doc, `input[name="dob"]`, "#profile-dob", "td.dob"),
		Address:     fieldText(doc, `textarea[name="address"]`, "#profile-address", "td.address"),
		Phone:       fieldText(doc, `input[name="phone"]`, "#profile-phone", "td.phone"),
		Email:       fieldText(doc, `input[name="email"]`, "#profile-email", "td.email"),
		Comments:    fieldText(doc, `textarea[name="comments"]`, "#profile-comments"),
		MembershipExpiry: fieldText(doc,
			`input[name="membership_expiry"]`, "#membership-expiry", "td.membership-expiry"),
	}
	if profile.ID == "" {
		if v, ok := doc.Find("[data-member-id]").First().Attr("data-member-id"); ok {
			profile.ID = strings.TrimSpace(v)
		}
	}
	return profile, nil
}

// FetchFamily scrapes the family members table; older deployments render
// cards instead of a table, so both shapes are read.
func (s *Session) FetchFamily(ctx context.Context) ([]models.FamilyMember, error) {
	doc, err := s.getPage(ctx, "/member/family")
	if err != nil {
		return nil, fmt.Errorf("legacy.FetchFamily: %w", err)
	}

	var members []models.FamilyMember
	doc.Find("table#family-members tbody tr").Each(func(_ int, row *goquery.Selection) {
		m := models.FamilyMember{
			ID:           row.AttrOr("data-id", ""),
			Name:         strings.TrimSpace(row.Find("td.name").Text()),
			Relationship: strings.TrimSpace(row.Find("td.relationship").Text()),
			Phone:        strings.TrimSpace(row.Find("td.phone").Text()),
			Email:        strings.TrimSpace(row.Find("td.email").Text()),
		}
		if m.ID == "" {
			m.ID, _ = row.Find(`input[name="member_id"]`).First().Attr("value")
		}
		if m.Name != "" {
			members = append(members, m)
		}
	})

	if len(members) == 0 {
		doc.Find(".family-member").Each(func(_ int, card *goquery.Selection) {
			m := models.FamilyMember{
				ID:           card.AttrOr("data-id", ""),
				Name:         strings.TrimSpace(card.Find(".name").Text()),
				Relationship: strings.TrimSpace(card.Find(".relationship").Text()),
				Phone:        strings.TrimSpace(card.Find(".phone").Text()),
				Email:        strings.TrimSpace(card.Find(".email").Text()),
			}
			if m.Name != "" {
				members = append(members, m)
			}
		})
	}
	return members, nil
}

// SaveFamilyMember creates or updates a family member. The local cache is
// only updated after the backend acknowledges, so callers re-fetch on success.
func (s *Session) SaveFamilyMember(ctx context.Context, m *models.FamilyMember) error {
	doc, err := s.getPage(ctx, "/member/family")
	if err != nil {
		return fmt.Errorf("legacy.SaveFamilyMember: %w", err)
	}

	form := url.Values{
		"member_id":    []string{m.ID},
		"name":         []string{m.Name},
		"relationship": []string{m.Relationship},
		"phone":        []string{m.Phone},
		"email":        []string{m.Email},
	}
	if token := csrfToken(doc); token != "" {
		form.Set("_token", token)
	}
	if _, err := s.postForm(ctx, "/member/family/save", form); err != nil {
		return fmt.Errorf("legacy.SaveFamilyMember: %w", err)
	}
	return nil
}

// DeleteFamilyMember removes a family member on the backend.
func (s *Session) DeleteFamilyMember(ctx context.Context, id string) error {
	doc, err := s.getPage(ctx, "/member/family")
	if err != nil {
		return fmt.Errorf("legacy.DeleteFamilyMember: %w", err)
	}

	form := url.Values{"member_id": []string{id}}
	if token := csrfToken(doc); token != "" {
		form.Set("_token", token)
	}
	if _, err := s.postForm(ctx, "/member/family/delete", form); err != nil {
		return fmt.Errorf("legacy.DeleteFamilyMember: %w", err)
	}
	return nil
}
