package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clavis/clavis/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("ADMIN", "DOCTOR"))
	read.GET("/analytics", h.Overview)
}

func (h *Handler) Overview(c echo.Context) error {
	report, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
