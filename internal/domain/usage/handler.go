package usage

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsumiki/tsumiki/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	records := api.Group("/usage-records")
	records.GET("", h.List)
	records.GET("/:id", h.Get)

	staff := records.Group("", auth.RequireRole("admin", "billing", "staff"))
	staff.POST("", h.Create)
	staff.POST("/bulk", h.BulkImport)
	staff.PUT("/:id", h.Update)
	staff.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var rec UsageRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.Create(c.Request().Context(), &rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

type bulkImportRequest struct {
	Records []*UsageRecord `json:"records"`
}

// BulkImport stores a batch of records in one transaction, typically a
// month of attendance keyed in at once.
func (h *Handler) BulkImport(c echo.Context) error {
	var req bulkImportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.BulkImport(c.Request().Context(), req.Records); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"imported": len(req.Records),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid usage record ID")
	}

	rec, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "usage record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get usage record")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid usage record ID")
	}

	existing, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "usage record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get usage record")
	}

	var rec UsageRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec.ID = id
	rec.FacilityID = existing.FacilityID
	rec.ChildID = existing.ChildID

	if err := h.svc.Update(c.Request().Context(), &rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "usage record not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid usage record ID")
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "usage record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete usage record")
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns a month of records for either a facility or a single
// child.
func (h *Handler) List(c echo.Context) error {
	yearMonth := c.QueryParam("year_month")
	if yearMonth == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "year_month query parameter is required")
	}

	ctx := c.Request().Context()
	var (
		recs []*UsageRecord
		err  error
	)
	switch {
	case c.QueryParam("child_id") != "":
		childID, perr := uuid.Parse(c.QueryParam("child_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid child_id")
		}
		recs, err = h.svc.ListByChildMonth(ctx, childID, yearMonth)
	case c.QueryParam("facility_id") != "":
		facilityID, perr := uuid.Parse(c.QueryParam("facility_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid facility_id")
		}
		recs, err = h.svc.ListByFacilityMonth(ctx, facilityID, yearMonth)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "facility_id or child_id query parameter is required")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if recs == nil {
		recs = []*UsageRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": recs,
		"total":   len(recs),
	})
}
