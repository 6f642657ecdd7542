package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"memberhub/models"
	"memberhub/services"
)

type ProfileHandler struct {
	membership *services.MembershipService
}

func NewProfileHandler(membership *services.MembershipService) *ProfileHandler {
	return &ProfileHandler{membership: membership}
}

// GetProfile serves the cached profile; ?refresh=true pulls a fresh copy
// first. The membership flag is derived from the cached expiry date.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var profile *models.UserProfile
	var err error
	if c.QueryParam("refresh") == "true" {
		profile, err = h.membership.RefreshProfile(ctx)
	} else {
		profile, err = h.membership.CachedProfile(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to load profile",
		})
	}
	if profile == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "No profile cached yet",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"profile":  profile,
		"isMember": profile.IsMember(time.Now()),
	})
}

// ListFamily serves the cached family members.
func (h *ProfileHandler) ListFamily(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.membership.CachedProfile(ctx)
	if err != nil || profile == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "No profile cached yet",
		})
	}

	family, err := h.membership.Family(ctx, profile.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load family members",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"family": family,
		"count":  len(family),
	})
}

// SaveFamilyMember creates or updates a family member on the backend, then
// refreshes the cache from the server's copy.
func (h *ProfileHandler) SaveFamilyMember(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.membership.CachedProfile(ctx)
	if err != nil || profile == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "No profile cached yet",
		})
	}

	var member models.FamilyMember
	if err := c.Bind(&member); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request",
		})
	}
	if member.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Name is required",
		})
	}

	if err := h.membership.SaveFamilyMember(ctx, profile.ID, &member); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to save family member",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Family member saved",
	})
}

// DeleteFamilyMember removes a family member on the backend, then refreshes
// the cache.
func (h *ProfileHandler) DeleteFamilyMember(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.membership.CachedProfile(ctx)
	if err != nil || profile == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "No profile cached yet",
		})
	}

	if err := h.membership.DeleteFamilyMember(ctx, profile.ID, c.PathParam("id")); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to delete family member",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Family member deleted",
	})
}

// ListPackages serves the membership renewal packages on offer.
func (h *ProfileHandler) ListPackages(c echo.Context) error {
	packages, err := h.membership.Packages(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to load membership packages",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"packages": packages,
	})
}

// StartRenewal begins a membership renewal and returns the hosted checkout
// URL the app's web view should load.
func (h *ProfileHandler) StartRenewal(c echo.Context) error {
	var req struct {
		PackageID string `json:"packageId"`
	}
	if err := c.Bind(&req); err != nil || req.PackageID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "packageId is required",
		})
	}

	checkoutURL, err := h.membership.StartRenewal(c.Request().Context(), req.PackageID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to start renewal",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"checkoutUrl": checkoutURL,
	})
}
