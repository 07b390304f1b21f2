package intake

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the wizard state machine over HTTP for headless intake
// clients.
type Handler struct {
	machine *Machine
}

func NewHandler(machine *Machine) *Handler {
	return &Handler{machine: machine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/intake", h.State)
	api.PUT("/intake/draft", h.SetDraft)
	api.POST("/intake/next", h.Next)
	api.POST("/intake/back", h.Back)
	api.POST("/intake/reset", h.Reset)
	api.POST("/intake/submit", h.Submit)
}

type stateResponse struct {
	Step         Step             `json:"step"`
	Draft        *PatientSnapshot `json:"draft"`
	LastRecordID string           `json:"lastRecordId,omitempty"`
}

func (h *Handler) state() *stateResponse {
	return &stateResponse{
		Step:         h.machine.Step(),
		Draft:        h.machine.Draft(),
		LastRecordID: h.machine.LastRecordID(),
	}
}

// State handles GET /api/intake.
func (h *Handler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state())
}

// SetDraft handles PUT /api/intake/draft. The body replaces the draft
// wholesale; persistence happens on the debounced autosave, not here.
func (h *Handler) SetDraft(c echo.Context) error {
	var draft PatientSnapshot
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.machine.SetDraft(&draft)
	return c.JSON(http.StatusOK, h.state())
}

func (h *Handler) Next(c echo.Context) error {
	if _, err := h.machine.Next(); err != nil {
		return stepError(err)
	}
	return c.JSON(http.StatusOK, h.state())
}

func (h *Handler) Back(c echo.Context) error {
	if _, err := h.machine.Back(); err != nil {
		return stepError(err)
	}
	return c.JSON(http.StatusOK, h.state())
}

func (h *Handler) Reset(c echo.Context) error {
	h.machine.Reset()
	return c.JSON(http.StatusOK, h.state())
}

type submitRequest struct {
	Language string `json:"language"`
	ImageURI string `json:"imageUri"`
}

// Submit handles POST /api/intake/submit: the guarded freeze → analyze →
// persist round trip. Failures leave the wizard on the labs step.
func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Language == "" {
		req.Language = "English"
	}

	recordID, err := h.machine.Submit(c.Request().Context(), req.Language, req.ImageURI)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"recordId": recordID,
		"step":     h.machine.Step(),
	})
}

func stepError(err error) error {
	switch {
	case errors.Is(err, ErrSessionComplete), errors.Is(err, ErrResultRequiresSubmit):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// submitError translates a failed round trip. Downstream failures that
// carry their own HTTP mapping (the diagnostic contract errors) keep it;
// everything else falls into the generic buckets.
func submitError(err error) error {
	switch {
	case errors.Is(err, ErrSubmitInFlight), errors.Is(err, ErrNotOnLabs),
		errors.Is(err, ErrSessionReset):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	var mapped interface {
		error
		HTTPStatus() int
	}
	if errors.As(err, &mapped) {
		return echo.NewHTTPError(mapped.HTTPStatus(), mapped.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
