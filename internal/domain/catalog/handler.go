package catalog

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tsumiki/tsumiki/internal/platform/auth"
)

// Handler exposes the service-code catalog over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	codes := api.Group("/service-codes")
	codes.GET("", h.List)

	admin := codes.Group("", auth.RequireRole("admin"))
	admin.POST("", h.Create)
	admin.POST("/reload", h.Reload)
}

// List returns catalog entries, optionally filtered by category and a
// free-text search over code, name and description.
func (h *Handler) List(c echo.Context) error {
	category := c.QueryParam("category")
	search := c.QueryParam("search")

	codes, err := h.svc.Search(c.Request().Context(), category, search)
	if err != nil {
		if strings.HasPrefix(err.Error(), "invalid category") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list service codes")
	}
	if codes == nil {
		codes = []*ServiceCode{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service_codes": codes,
		"total":         len(codes),
	})
}

func (h *Handler) Create(c echo.Context) error {
	var sc ServiceCode
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.Register(c.Request().Context(), &sc); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sc)
}

// Reload forces a fresh catalog load, picking up rows inserted outside
// the API (migrations, manual seeds).
func (h *Handler) Reload(c echo.Context) error {
	cat, err := h.svc.Reload(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reload catalog")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"loaded": cat.Len(),
	})
}
