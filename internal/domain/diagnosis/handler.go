package diagnosis

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alcortex/alcortex/internal/domain/intake"
)

// Handler exposes the diagnostic endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/analyze", h.Analyze)
	api.GET("/health", h.Health)
}

type analyzeRequest struct {
	Patient  *intake.PatientSnapshot `json:"patient"`
	Language string                  `json:"language"`
	ImageURI string                  `json:"imageUri"`
}

type contractErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Analyze handles POST /api/analyze.
func (h *Handler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Patient == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing patient data")
	}
	if req.Language == "" {
		req.Language = "English"
	}
	req.Patient.Normalize(time.Now())

	result, err := h.svc.Analyze(c.Request().Context(), req.Patient, req.Language, req.ImageURI)
	if err != nil {
		var cerr *ContractError
		if errors.As(err, &cerr) {
			status := cerr.HTTPStatus()
			if cerr.Kind == KindProviderTransient {
				c.Response().Header().Set("Retry-After", "5")
			}
			return c.JSON(status, contractErrorBody{Error: cerr.Detail, Kind: string(cerr.Kind)})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// Health handles GET /api/health. Informational only.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "OK",
		"engine":    "Alcortex AI v1 Active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
