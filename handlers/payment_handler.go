package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"

	"memberhub/internal/status"
	"memberhub/services"
)

type PaymentHandler struct {
	membership *services.MembershipService
	purchases  *services.PurchaseService
}

func NewPaymentHandler(membership *services.MembershipService, purchases *services.PurchaseService) *PaymentHandler {
	return &PaymentHandler{
		membership: membership,
		purchases:  purchases,
	}
}

// HandleCheckoutNavigation is called by the app shell for every web-view
// navigation during checkout. Non-return URLs pass through untouched; the
// provider's return redirect triggers exactly one confirmation handshake.
func (h *PaymentHandler) HandleCheckoutNavigation(c echo.Context) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "url is required",
		})
	}

	ctx := c.Request().Context()
	handled, conf, err := h.membership.CompletePayment(ctx, req.URL)
	if !handled {
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Unparseable navigation url",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"handled": false})
	}

	if errors.Is(err, status.ErrPaymentNotConfirmed) {
		// The user sees the decline; they decide whether to retry.
		return c.JSON(http.StatusPaymentRequired, map[string]any{
			"handled":      true,
			"confirmation": conf,
			"error":        "Payment was not confirmed",
		})
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{
			"handled": true,
			"error":   "Payment confirmation failed",
		})
	}

	// A settled payment means the purchase history just changed.
	if err := h.purchases.ForceRefresh(ctx); err != nil {
		slog.Warn("payment: post-confirmation refresh failed", "error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"handled":      true,
		"confirmation": conf,
	})
}
