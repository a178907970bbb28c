package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Simon2219/BetterIntelligence/internal/hooks"
)

// HooksHandler exposes admin-only management of webhook registrations.
type HooksHandler struct {
	registry *hooks.Registry
}

func NewHooksHandler(registry *hooks.Registry) *HooksHandler {
	return &HooksHandler{registry: registry}
}

type registerHookRequest struct {
	Event   string `json:"event" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
	Enabled *bool  `json:"enabled"`
}

// Register adds a callback URL under an event name.
func (h *HooksHandler) Register(c echo.Context) error {
	var req registerHookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	h.registry.Register(req.Event, req.URL, enabled)
	return c.JSON(http.StatusCreated, hooks.Registration{Event: req.Event, URL: req.URL, Enabled: enabled})
}

// List returns every registration.
func (h *HooksHandler) List(c echo.Context) error {
	regs := h.registry.All()
	if regs == nil {
		regs = []hooks.Registration{}
	}
	return c.JSON(http.StatusOK, regs)
}

// Clear removes all registrations under an event name.
func (h *HooksHandler) Clear(c echo.Context) error {
	event := c.Param("event")
	if event == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event name required")
	}
	h.registry.Clear(event)
	return c.NoContent(http.StatusNoContent)
}
