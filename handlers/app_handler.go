package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"memberhub/internal/api"
	"memberhub/models"
)

type AppHandler struct {
	fetch func(c echo.Context) (*api.VersionInfo, error)
	gate  *models.UpdateGate
}

func NewAppHandler(client *api.Client, gate *models.UpdateGate) *AppHandler {
	return &AppHandler{
		fetch: func(c echo.Context) (*api.VersionInfo, error) {
			return client.VersionGate(c.Request().Context())
		},
		gate: gate,
	}
}

// CheckUpdate evaluates the update gate against the backend's published
// versions. An unreachable backend keeps the last known state: a mandatory
// gate never clears just because the version endpoint is down.
func (h *AppHandler) CheckUpdate(c echo.Context) error {
	info, err := h.fetch(c)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"state": h.gate.State().String(),
			"stale": true,
		})
	}

	if override, ok := parseOverride(info.Override); ok {
		h.gate.ForceState(override)
	} else {
		h.gate.Evaluate(info.Minimum, info.Recommended)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"state":       h.gate.State().String(),
		"minimum":     info.Minimum,
		"recommended": info.Recommended,
	})
}

func parseOverride(s string) (models.UpdateState, bool) {
	switch s {
	case "none":
		return models.UpdateNone, true
	case "optional":
		return models.UpdateOptional, true
	case "mandatory":
		return models.UpdateMandatory, true
	default:
		return models.UpdateNone, false
	}
}
