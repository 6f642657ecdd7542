package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"memberhub/internal/status"
	"memberhub/services"
	"memberhub/store"
)

type SyncHandler struct {
	store *store.Store
	sync  *services.SyncService
}

func NewSyncHandler(st *store.Store, sync *services.SyncService) *SyncHandler {
	return &SyncHandler{
		store: st,
		sync:  sync,
	}
}

// TriggerSync runs one sync pass for events and purchases. A pass already in
// flight is reported, not queued.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.sync.SyncEvents(ctx)
	if errors.Is(err, status.ErrSyncInProgress) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "Sync already in progress",
		})
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Event sync failed",
		})
	}

	purchaseWrites, err := h.sync.SyncPurchases(ctx)
	if err != nil && !errors.Is(err, status.ErrSyncInProgress) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Purchase sync failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events": map[string]int{
			"upserts": res.Upserts,
			"deletes": res.Deletes,
		},
		"purchaseWrites": purchaseWrites,
	})
}

// GetSyncStatus reports the stored per-entity cursors. A null cursor means
// the entity has never completed a full sync.
func (h *SyncHandler) GetSyncStatus(c echo.Context) error {
	ctx := c.Request().Context()

	cursors := map[string]any{}
	for _, entity := range []string{"events", "purchases"} {
		cursor, err := h.store.GetCursor(ctx, entity)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "Failed to read sync state",
			})
		}
		if cursor == nil {
			cursors[entity] = nil
		} else {
			cursors[entity] = cursor
		}
	}

	count, err := h.store.CountEvents(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to read sync state",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"cursors":      cursors,
		"cachedEvents": count,
	})
}
