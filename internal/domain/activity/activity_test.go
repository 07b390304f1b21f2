package activity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

type fakeLog struct {
	entries []*Entry
	down    bool
}

func (l *fakeLog) Append(_ context.Context, e *Entry) error {
	if l.down {
		return errors.New("connection refused")
	}
	l.entries = append(l.entries, e)
	return nil
}

func (l *fakeLog) List(_ context.Context) ([]*Entry, error) {
	return l.entries, nil
}

func newTestService(remote Repository) (*Service, *LocalLog) {
	local := NewLocalLog(kvstore.NewMemoryStore())
	return NewService(remote, local, time.Second, zerolog.Nop()), local
}

func TestService_LogStampsTime(t *testing.T) {
	remote := &fakeLog{}
	svc, _ := newTestService(remote)

	svc.Log(context.Background(), "dr.sinta@alcortex.id", "LOGIN")
	if len(remote.entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(remote.entries))
	}
	e := remote.entries[0]
	if e.Email != "dr.sinta@alcortex.id" || e.Action != "LOGIN" || e.At.IsZero() {
		t.Fatalf("entry = %+v", e)
	}
}

func TestService_LogAbsorbsFailures(t *testing.T) {
	remote := &fakeLog{down: true}
	svc, local := newTestService(remote)
	ctx := context.Background()

	// Must not panic or error even with the remote down.
	svc.Log(ctx, "dr.sinta@alcortex.id", "SAVE_RECORD")

	entries, err := local.List(ctx)
	if err != nil {
		t.Fatalf("local List: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "SAVE_RECORD" {
		t.Fatalf("local entries = %v", entries)
	}
}

func TestLocalLog_NewestFirst(t *testing.T) {
	local := NewLocalLog(kvstore.NewMemoryStore())
	ctx := context.Background()

	for _, action := range []string{"first", "second"} {
		if err := local.Append(ctx, &Entry{Action: action, At: time.Now().UTC()}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	entries, err := local.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "second" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestHandler_AlwaysAcks(t *testing.T) {
	svc, _ := newTestService(&fakeLog{down: true})

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/activity",
		strings.NewReader(`{"email": "dr.sinta@alcortex.id", "action": "LOGIN"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/activity = %d, want 200 even on failure", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Logged") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
