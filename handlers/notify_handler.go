package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"memberhub/services"
)

type NotifyHandler struct {
	notifications *services.NotificationService
}

func NewNotifyHandler(notifications *services.NotificationService) *NotifyHandler {
	return &NotifyHandler{notifications: notifications}
}

// GetSettings serves the current reminder settings.
func (h *NotifyHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notifications.Settings())
}

// UpdateSettings stores new reminder settings and repairs the schedule.
func (h *NotifyHandler) UpdateSettings(c echo.Context) error {
	var settings services.ReminderSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request",
		})
	}

	rebuilt, err := h.notifications.UpdateSettings(c.Request().Context(), settings)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to update reminder settings",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"settings":    settings,
		"rescheduled": rebuilt,
	})
}

// TriggerRebuild repairs the reminder schedule on demand, e.g. after the
// device wakes from a long sleep.
func (h *NotifyHandler) TriggerRebuild(c echo.Context) error {
	rebuilt, err := h.notifications.Rebuild(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to rebuild reminder schedule",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"rescheduled": rebuilt,
	})
}
