package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsumiki/tsumiki/internal/platform/auth"
)

// BatchSource supplies the master data and usage facts a billing run
// needs from the other domains. Wired in the server setup. Facility
// reports a missing facility as ErrFacilityNotFound.
type BatchSource interface {
	Facility(ctx context.Context, id uuid.UUID) (FacilityInfo, error)
	Children(ctx context.Context, facilityID uuid.UUID) ([]ChildInfo, error)
	MonthFacts(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]DayFact, error)
}

type Handler struct {
	svc    *Service
	source BatchSource
}

func NewHandler(svc *Service, source BatchSource) *Handler {
	return &Handler{svc: svc, source: source}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	billing := api.Group("/billing")
	billing.GET("/records", h.ListRecords)
	billing.GET("/records/:id", h.GetRecord)
	billing.GET("/records/:id/details", h.GetDetails)
	billing.GET("/validate", h.Validate)

	staff := billing.Group("", auth.RequireRole("admin", "billing"))
	staff.POST("/generate", h.Generate)
	staff.PUT("/details/:id/units", h.SetUnitCount)
	staff.POST("/details/:id/additions", h.AddAddition)
	staff.DELETE("/details/:id/additions/:index", h.RemoveAddition)
	staff.POST("/confirm", h.ConfirmAll)
	staff.POST("/records/:id/transition", h.Transition)
	staff.GET("/export", h.Export)
}

func monthScope(c echo.Context) (uuid.UUID, string, error) {
	facilityID, err := uuid.Parse(c.QueryParam("facility_id"))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, "facility_id query parameter is required")
	}
	yearMonth := c.QueryParam("year_month")
	if !ValidYearMonth(yearMonth) {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, "year_month must be YYYY-MM")
	}
	return facilityID, yearMonth, nil
}

func mapServiceError(err error, fallback string) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "billing record not found")
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownServiceCode), errors.Is(err, ErrIndexOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) ListRecords(c echo.Context) error {
	facilityID, yearMonth, err := monthScope(c)
	if err != nil {
		return err
	}

	records, err := h.svc.Records(c.Request().Context(), facilityID, yearMonth)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list billing records")
	}
	if records == nil {
		records = []*BillingRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record ID")
	}

	rec, err := h.svc.Record(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err, "failed to get billing record")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetDetails(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record ID")
	}

	details, err := h.svc.Details(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err, "failed to list billing details")
	}
	if details == nil {
		details = []*BillingDetail{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"details": details,
		"total":   len(details),
	})
}

type generateRequest struct {
	FacilityID uuid.UUID `json:"facility_id"`
	YearMonth  string    `json:"year_month"`
}

func (h *Handler) Generate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FacilityID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "facility_id is required")
	}
	if !ValidYearMonth(req.YearMonth) {
		return echo.NewHTTPError(http.StatusBadRequest, "year_month must be YYYY-MM")
	}
	ctx := c.Request().Context()

	fac, err := h.source.Facility(ctx, req.FacilityID)
	if err != nil {
		if errors.Is(err, ErrFacilityNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "facility not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load facility")
	}
	children, err := h.source.Children(ctx, req.FacilityID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load children")
	}
	facts, err := h.source.MonthFacts(ctx, req.FacilityID, req.YearMonth)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load usage records")
	}

	result, err := h.svc.GenerateMonthly(ctx, fac, children, req.YearMonth, facts)
	if err != nil {
		return mapServiceError(err, "failed to generate billing records")
	}
	return c.JSON(http.StatusOK, result)
}

type unitCountRequest struct {
	UnitCount int `json:"unit_count"`
}

func (h *Handler) SetUnitCount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid detail ID")
	}
	var req unitCountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UnitCount < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "unit_count must not be negative")
	}

	detail, record, err := h.svc.SetUnitCount(c.Request().Context(), id, req.UnitCount)
	if err != nil {
		return mapServiceError(err, "failed to update unit count")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"detail": detail,
		"record": record,
	})
}

type additionRequest struct {
	Code string `json:"code"`
}

func (h *Handler) AddAddition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid detail ID")
	}
	var req additionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	detail, record, err := h.svc.AddAddition(c.Request().Context(), id, req.Code)
	if err != nil {
		return mapServiceError(err, "failed to add addition")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"detail": detail,
		"record": record,
	})
}

func (h *Handler) RemoveAddition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid detail ID")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid addition index")
	}

	detail, record, err := h.svc.RemoveAddition(c.Request().Context(), id, index)
	if err != nil {
		return mapServiceError(err, "failed to remove addition")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"detail": detail,
		"record": record,
	})
}

type confirmRequest struct {
	FacilityID uuid.UUID `json:"facility_id"`
	YearMonth  string    `json:"year_month"`
}

func (h *Handler) ConfirmAll(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FacilityID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "facility_id is required")
	}
	if !ValidYearMonth(req.YearMonth) {
		return echo.NewHTTPError(http.StatusBadRequest, "year_month must be YYYY-MM")
	}

	confirmed, err := h.svc.ConfirmAll(c.Request().Context(), req.FacilityID, req.YearMonth)
	if err != nil {
		return mapServiceError(err, "failed to confirm billing records")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"confirmed": confirmed,
	})
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record ID")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := h.svc.Transition(c.Request().Context(), id, req.Status)
	if err != nil {
		return mapServiceError(err, "failed to transition billing record")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) buildBatch(c echo.Context) (*Batch, error) {
	facilityID, yearMonth, err := monthScope(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()

	fac, err := h.source.Facility(ctx, facilityID)
	if err != nil {
		if errors.Is(err, ErrFacilityNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "facility not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load facility")
	}
	children, err := h.source.Children(ctx, facilityID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load children")
	}

	batch, err := h.svc.BuildBatch(ctx, fac, children, yearMonth)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to assemble billing batch")
	}
	return batch, nil
}

func (h *Handler) Validate(c echo.Context) error {
	batch, err := h.buildBatch(c)
	if err != nil {
		return err
	}

	warnings := batch.Validate()
	if warnings == nil {
		warnings = []Warning{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"warnings": warnings,
		"records":  len(batch.Records),
	})
}

// Export streams the submission CSV. Draft records or missing master
// data block the export unless force=true is passed.
func (h *Handler) Export(c echo.Context) error {
	batch, err := h.buildBatch(c)
	if err != nil {
		return err
	}
	if len(batch.Records) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no billing records for this month")
	}

	if batch.HasBlockingWarnings() && c.QueryParam("force") != "true" {
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":    "billing batch is not ready for submission",
			"warnings": batch.Validate(),
		})
	}

	var buf bytes.Buffer
	if err := batch.WriteCSV(&buf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build submission file")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, batch.Filename()))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
