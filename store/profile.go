package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pocketbase/dbx"

	"memberhub/models"
)

// SaveProfile caches the user profile. Single-user device: one row.
func (s *Store) SaveProfile(ctx context.Context, p *models.UserProfile) error {
	_, err := s.db.NewQuery(`
		INSERT INTO profiles (id, name, date_of_birth, address, phone, email, comments, membership_expiry)
		VALUES ({:id}, {:name}, {:dob}, {:address}, {:phone}, {:email}, {:comments}, {:expiry})
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			date_of_birth = excluded.date_of_birth,
			address = excluded.address,
			phone = excluded.phone,
			email = excluded.email,
			comments = excluded.comments,
			membership_expiry = excluded.membership_expiry`).
		Bind(dbx.Params{
			"id":       p.ID,
			"name":     p.Name,
			"dob":      p.DateOfBirth,
			"address":  p.Address,
			"phone":    p.Phone,
			"email":    p.Email,
			"comments": p.Comments,
			"expiry":   p.MembershipExpiry,
		}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store.SaveProfile: %w", err)
	}
	return nil
}

// GetProfile returns the cached profile, or nil when nothing is cached yet.
func (s *Store) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.NewQuery("SELECT * FROM profiles LIMIT 1").WithContext(ctx).One(&p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.GetProfile: %w", err)
	}
	return &p, nil
}

// SetMembershipExpiry updates only the cached expiry, used after a renewal
// confirmation reports the new date.
func (s *Store) SetMembershipExpiry(ctx context.Context, expiry string) error {
	_, err := s.db.NewQuery("UPDATE profiles SET membership_expiry = {:expiry}").
		Bind(dbx.Params{"expiry": expiry}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store.SetMembershipExpiry: %w", err)
	}
	return nil
}

// ReplaceFamily rewrites the cached family members for a user.
func (s *Store) ReplaceFamily(ctx context.Context, userID string, members []models.FamilyMember) error {
	err := s.db.Transactional(func(tx *dbx.Tx) error {
		if _, err := tx.Delete("family_members", dbx.HashExp{"user_id": userID}).WithContext(ctx).Execute(); err != nil {
			return err
		}
		for _, m := range members {
			params := dbx.Params{
				"id":           m.ID,
				"user_id":      userID,
				"name":         m.Name,
				"relationship": m.Relationship,
				"phone":        m.Phone,
				"email":        m.Email,
			}
			if _, err := tx.Insert("family_members", params).WithContext(ctx).Execute(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store.ReplaceFamily: %w", err)
	}
	return nil
}

// ListFamily returns the cached family members for a user.
func (s *Store) ListFamily(ctx context.Context, userID string) ([]models.FamilyMember, error) {
	var members []models.FamilyMember
	err := s.db.NewQuery("SELECT * FROM family_members WHERE user_id = {:uid} ORDER BY name").
		Bind(dbx.Params{"uid": userID}).WithContext(ctx).All(&members)
	if err != nil {
		return nil, fmt.Errorf("store.ListFamily: %w", err)
	}
	return members, nil
}
