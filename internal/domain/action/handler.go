package action

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clavis/clavis/internal/platform/auth"
	"github.com/clavis/clavis/internal/workflow"
	"github.com/clavis/clavis/pkg/pagination"
)

var clinicalRoles = []string{"ADMIN", "DOCTOR", "NURSE", "PHARMACIST", "LAB_TECH", "RADIOLOGIST"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole(clinicalRoles...))
	clinical.GET("/actions/:id", h.Get)
	clinical.POST("/actions/:id/transition", h.Transition)
	clinical.GET("/actions/:id/events", h.Events)
	clinical.GET("/patients/:id/actions", h.PatientActions)
	clinical.GET("/patients/:id/timeline", h.PatientTimeline)
	clinical.GET("/departments/:name/queue", h.DepartmentQueue)
	clinical.GET("/escalations", h.Escalations)

	write := api.Group("", auth.RequireRole("ADMIN", "DOCTOR"))
	write.POST("/actions", h.Create)
	write.PATCH("/actions/:id", h.UpdateDetails)
	write.PATCH("/actions/:id/priority", h.UpdatePriority)
}

func actorFrom(c echo.Context) Actor {
	ctx := c.Request().Context()
	role := workflow.Role("")
	if roles := auth.RolesFromContext(ctx); len(roles) > 0 {
		role = workflow.ParseRole(roles[0])
	}
	return Actor{ID: auth.UserIDFromContext(ctx), Role: role}
}

// httpError maps the service taxonomy onto HTTP statuses.
func httpError(err error) error {
	var te *workflow.TransitionError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrStaleState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPreconditionFailed):
		return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrDependencyViolation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createRequest struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	ActionType   string     `json:"action_type"`
	CustomTypeID *uuid.UUID `json:"custom_type_id"`
	Priority     string     `json:"priority"`
	Title        string     `json:"title"`
	Notes        string     `json:"notes"`
	Department   string     `json:"department"`
	AssigneeID   *string    `json:"assignee_id"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, warnings, err := h.svc.Create(c.Request().Context(), CreateInput{
		PatientID:    req.PatientID,
		Kind:         req.ActionType,
		CustomTypeID: req.CustomTypeID,
		Priority:     req.Priority,
		Title:        req.Title,
		Notes:        req.Notes,
		Department:   req.Department,
		AssigneeID:   req.AssigneeID,
		Actor:        actorFrom(c),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"action":               a,
		"interaction_warnings": warnings,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type transitionRequest struct {
	NewState string `json:"new_state"`
	Notes    string `json:"notes"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Transition(c.Request().Context(), id, req.NewState, req.Notes, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type detailsRequest struct {
	Title      string  `json:"title"`
	Notes      string  `json:"notes"`
	AssigneeID *string `json:"assignee_id"`
}

func (h *Handler) UpdateDetails(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action id")
	}
	var req detailsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateDetails(c.Request().Context(), id, req.Title, req.Notes, req.AssigneeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdatePriority(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action id")
	}
	var req struct {
		Priority string `json:"priority"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdatePriority(c.Request().Context(), id, req.Priority)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Events(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action id")
	}
	events, err := h.svc.ActionEvents(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	p := pagination.FromContext(c)
	start, end := p.Bounds(len(events))
	return c.JSON(http.StatusOK, pagination.NewResponse(events[start:end], len(events), p.Limit, p.Offset))
}

func (h *Handler) PatientActions(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	actions, err := h.svc.PatientActions(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, actions)
}

func (h *Handler) PatientTimeline(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	entries, err := h.svc.PatientTimeline(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	p := pagination.FromContext(c)
	start, end := p.Bounds(len(entries))
	return c.JSON(http.StatusOK, pagination.NewResponse(entries[start:end], len(entries), p.Limit, p.Offset))
}

func (h *Handler) DepartmentQueue(c echo.Context) error {
	department := c.Param("name")
	includeTerminal := c.QueryParam("include_terminal") == "true"
	items, err := h.svc.DepartmentQueue(c.Request().Context(), department, includeTerminal, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"department": department,
		"actions":    items,
		"count":      len(items),
	})
}

func (h *Handler) Escalations(c echo.Context) error {
	items, err := h.svc.Escalations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"escalations": items,
		"count":       len(items),
	})
}
