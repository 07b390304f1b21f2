package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

func postRegister(t *testing.T, remote Repository, body string) *httptest.ResponseRecorder {
	t.Helper()
	local := NewLocalRegistry(kvstore.NewMemoryStore())
	svc := NewService(remote, local, time.Second, zerolog.Nop())

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Register(t *testing.T) {
	remote := newFakeRegistry()
	rec := postRegister(t, remote,
		`{"email": "dr.sinta@alcortex.id", "name": "Sinta", "professionId": "GP-102", "language": "Indonesian"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register = %d: %s", rec.Code, rec.Body.String())
	}
	u, ok := remote.users["dr.sinta@alcortex.id"]
	if !ok {
		t.Fatal("user not persisted")
	}
	if u.ProfessionID != "GP-102" || u.Language != "Indonesian" {
		t.Fatalf("persisted user = %+v", u)
	}
}

func TestHandler_RegisterBadEmail(t *testing.T) {
	rec := postRegister(t, newFakeRegistry(), `{"name": "No Email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("register without email = %d, want 400", rec.Code)
	}
}
