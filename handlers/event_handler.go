package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"memberhub/services"
	"memberhub/store"
)

type EventHandler struct {
	store     *store.Store
	purchases *services.PurchaseService
}

func NewEventHandler(st *store.Store, purchases *services.PurchaseService) *EventHandler {
	return &EventHandler{
		store:     st,
		purchases: purchases,
	}
}

// ListEvents serves the cached event list, optionally filtered by category.
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.store.ListEvents(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load events",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// GetEvent serves one event with its ticket types, panthis and programs.
func (h *EventHandler) GetEvent(c echo.Context) error {
	event, err := h.store.GetEvent(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load event",
		})
	}
	if event == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Event not found",
		})
	}

	return c.JSON(http.StatusOK, event)
}

// GetEventStatus answers whether the user already holds a purchase or
// registration for the event.
func (h *EventHandler) GetEventStatus(c echo.Context) error {
	ctx := c.Request().Context()

	event, err := h.store.GetEvent(ctx, c.PathParam("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load event",
		})
	}
	if event == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Event not found",
		})
	}

	res, err := h.purchases.Status(ctx, event)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to resolve registration status",
		})
	}

	return c.JSON(http.StatusOK, res)
}

// RefreshPurchases forces a purchase re-sync and drops cached status results,
// used right after a checkout completes.
func (h *EventHandler) RefreshPurchases(c echo.Context) error {
	if err := h.purchases.ForceRefresh(c.Request().Context()); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to refresh purchases",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Purchase history refreshed",
	})
}

// GetPurchaseHistory serves the cached unified purchase history.
func (h *EventHandler) GetPurchaseHistory(c echo.Context) error {
	records, err := h.purchases.History(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load purchase history",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"purchases": records,
		"count":     len(records),
	})
}
