package record

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/alcortex/alcortex/internal/domain/diagnosis"
	"github.com/alcortex/alcortex/internal/domain/intake"
)

// Handler exposes the record vault endpoints.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/records", h.List)
	api.POST("/records", h.Create)
	api.GET("/records/sync", h.Sync)
	api.GET("/records/:id", h.Get)
	api.DELETE("/records/:id", h.Delete)
}

// createRequest is the wire shape the intake client posts after a
// completed round trip.
type createRequest struct {
	UserEmail      string                     `json:"userEmail"`
	RecordID       string                     `json:"recordId"`
	PatientName    string                     `json:"patientName"`
	RMNo           string                     `json:"rmNo"`
	PatientData    *intake.PatientSnapshot    `json:"patientData"`
	AnalysisResult *diagnosis.DiagnosisResult `json:"analysisResult"`
}

// Create handles POST /api/records. Writes are atomic: a record without
// both patient and analysis is refused outright.
func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientData == nil || req.AnalysisResult == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patientData and analysisResult are both required")
	}

	rec := &SavedRecord{
		ID:       req.RecordID,
		Date:     time.Now().UTC(),
		Patient:  req.PatientData,
		Analysis: req.AnalysisResult,
		Owner:    req.UserEmail,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := h.store.Save(c.Request().Context(), rec); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Record saved to EMR Vault",
		"recordId": rec.ID,
	})
}

// List handles GET /api/records. Optional query parameters (text,
// severity, minAge, maxAge) apply the vault filter server-side for the
// dashboard, EMR and global-search views.
func (h *Handler) List(c echo.Context) error {
	records, err := h.store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	q := Query{
		Text:     c.QueryParam("text"),
		Severity: c.QueryParam("severity"),
	}
	var parseErr error
	if q.MinAge, parseErr = ageParam(c, "minAge"); parseErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, parseErr.Error())
	}
	if q.MaxAge, parseErr = ageParam(c, "maxAge"); parseErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, parseErr.Error())
	}
	return c.JSON(http.StatusOK, Filter(records, q))
}

func ageParam(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

func (h *Handler) Get(c echo.Context) error {
	rec, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Sync handles GET /api/records/sync, reporting local-vault divergence so
// an operator can decide when to re-sync after an outage.
func (h *Handler) Sync(c echo.Context) error {
	state, err := h.store.Sync(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}
