package business

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/recordstore"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Handler struct {
	store recordstore.Store
}

func NewHandler(store recordstore.Store) *Handler {
	return &Handler{store: store}
}

// Register registers business record routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.Search)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.UpdateDetails)
	g.GET("/:id/competitors", h.ListCompetitors)
}

// Search finds businesses whose name contains ?name=
func (h *Handler) Search(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "business.Search")
	defer span.End()

	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "name query parameter is required")
	}

	found, err := h.store.FindBusinessesByName(ctx, name)
	if err != nil {
		return err
	}
	if found == nil {
		found = []models.Business{}
	}
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "business.Get")
	defer span.End()

	b, err := h.store.GetBusiness(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// UpdateDetails amends the description and owner contact of a business
func (h *Handler) UpdateDetails(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "business.UpdateDetails")
	defer span.End()

	id := c.Param("id")
	ctx = context.SetBusinessID(ctx, id)

	var req models.BusinessDetailsUpdate
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.IsEmpty() {
		return httperror.NewHTTPError(http.StatusBadRequest, "description or owner_contact is required")
	}

	b, err := h.store.UpdateBusinessDetails(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListCompetitors(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "business.ListCompetitors")
	defer span.End()

	id := c.Param("id")
	if _, err := h.store.GetBusiness(ctx, id); err != nil {
		return err
	}

	found, err := h.store.FindCompetitors(ctx, id)
	if err != nil {
		return err
	}
	if found == nil {
		found = []models.Competitor{}
	}
	return c.JSON(http.StatusOK, found)
}
