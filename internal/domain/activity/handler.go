package activity

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/activity", h.Log)
}

type logRequest struct {
	Email  string `json:"email"`
	Action string `json:"action"`
}

// Log handles POST /api/activity. It always acks; the audit trail must
// never block the clinical path.
func (h *Handler) Log(c echo.Context) error {
	var req logRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.service.Log(c.Request().Context(), req.Email, req.Action)
	return c.JSON(http.StatusOK, map[string]string{"status": "Logged"})
}
