package onboarding

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/onboarding"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

type StartRequest struct {
	Name        string         `json:"name" validate:"required_without=BusinessID"`
	Address     string         `json:"address" validate:"required_without=BusinessID"`
	Description string         `json:"description"`
	Location    *models.LatLng `json:"location"`
	BusinessID  string         `json:"business_id"`
}

type AddCompetitorsRequest struct {
	Competitors []resolver.CompetitorInput `json:"competitors" validate:"required,min=1,dive"`
}

type Handler struct {
	workflow *onboarding.Workflow
}

func NewHandler(workflow *onboarding.Workflow) *Handler {
	return &Handler{workflow: workflow}
}

// Register registers onboarding session routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Start)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Abort)
	g.POST("/:id/business", h.RespondBusiness)
	g.POST("/:id/competitors", h.AddCompetitors)
	g.POST("/:id/competitors/:index", h.RespondCompetitor)
}

// Start opens an onboarding session
func (h *Handler) Start(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.Start")
	defer span.End()

	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
	}

	resp, err := h.workflow.Start(ctx, onboarding.StartInput{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		Location:    req.Location,
		BusinessID:  req.BusinessID,
	})
	if err != nil {
		return err
	}

	code := http.StatusCreated
	if resp.Business != nil && resp.Business.Status == resolver.StatusFailed {
		code = middleware.StatusForKind(resp.Business.ErrorKind)
	}
	return c.JSON(code, resp)
}

// Get returns the session's business id, completion and resolver state
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.Get")
	defer span.End()

	s, err := h.workflow.Get(ctx, c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	status, err := h.workflow.Status(ctx, s.ID)
	if err != nil {
		return sessionError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"session_id":  s.ID,
		"business_id": s.BusinessID,
		"complete":    status.Complete,
		"business":    s.Business,
		"competitors": s.Competitors,
		"created_at":  s.CreatedAt,
		"updated_at":  s.UpdatedAt,
	})
}

// RespondBusiness advances the business resolution
func (h *Handler) RespondBusiness(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.RespondBusiness")
	defer span.End()

	id := c.Param("id")
	ctx = context.SetSessionID(ctx, id)

	var req resolver.BusinessInput
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
	}

	resp, err := h.workflow.RespondBusiness(ctx, id, req)
	if err != nil {
		return sessionError(err)
	}

	code := http.StatusOK
	if resp.Business != nil && resp.Business.Status == resolver.StatusFailed {
		code = middleware.StatusForKind(resp.Business.ErrorKind)
	}
	return c.JSON(code, resp)
}

// AddCompetitors starts one competitor resolution per entry
func (h *Handler) AddCompetitors(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.AddCompetitors")
	defer span.End()

	id := c.Param("id")
	ctx = context.SetSessionID(ctx, id)

	var req AddCompetitorsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
	}

	resp, err := h.workflow.AddCompetitors(ctx, id, req.Competitors)
	if err != nil {
		return sessionError(err)
	}

	// per-competitor failures are reported in the body and do not fail the batch
	return c.JSON(http.StatusOK, resp)
}

// RespondCompetitor advances the competitor resolution at :index
func (h *Handler) RespondCompetitor(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.RespondCompetitor")
	defer span.End()

	id := c.Param("id")
	ctx = context.SetSessionID(ctx, id)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}

	var req resolver.CompetitorInput
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.workflow.RespondCompetitor(ctx, id, index, req)
	if err != nil {
		return sessionError(err)
	}

	code := http.StatusOK
	if len(resp.Competitors) == 1 && resp.Competitors[0].Status == resolver.StatusFailed {
		code = middleware.StatusForKind(resp.Competitors[0].ErrorKind)
	}
	return c.JSON(code, resp)
}

// Abort discards the session
func (h *Handler) Abort(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "onboarding.Abort")
	defer span.End()

	if err := h.workflow.Abort(ctx, c.Param("id")); err != nil {
		return sessionError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, onboarding.ErrSessionNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, "onboarding session not found")
	case errors.Is(err, onboarding.ErrBusinessNotResolved):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
