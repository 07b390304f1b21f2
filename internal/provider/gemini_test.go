package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(srv.URL, "test-key", "test-model", 5*time.Second, zerolog.Nop())
}

func TestGenerate_ExtractsCandidateText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"mainDiagnosis\""},{"text":":\"Flu\"}"}]}}]}`))
	})

	got, err := c.Generate(context.Background(), Request{Prompt: "diagnose"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"mainDiagnosis":"Flu"}` {
		t.Errorf("got %s", got)
	}
}

func TestGenerate_NoKeyIsAuthError(t *testing.T) {
	c := NewGeminiClient("http://localhost:0", "", "m", time.Second, zerolog.Nop())
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != CodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestGenerate_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  Code
		retryable bool
	}{
		{401, CodeAuth, false},
		{403, CodeAuth, false},
		{429, CodeRateLimited, true},
		{500, CodeServerError, true},
		{503, CodeServerError, true},
		{400, CodeInvalidRequest, false},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"detail from provider"}}`))
		})
		_, err := c.Generate(context.Background(), Request{Prompt: "x"})
		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: expected *Error, got %v", tt.status, err)
		}
		if perr.Code != tt.wantCode {
			t.Errorf("status %d: got code %s, want %s", tt.status, perr.Code, tt.wantCode)
		}
		if perr.Retryable() != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, perr.Retryable(), tt.retryable)
		}
	}
}

func TestGenerate_ErrorDetailSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	})
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Message != "API key not valid" {
		t.Errorf("expected provider detail, got %q", perr.Message)
	}
}

func TestGenerate_ContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.Generate(ctx, Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
}

func TestClassifyStatus(t *testing.T) {
	if ClassifyStatus(408) != CodeTimeout {
		t.Error("408 should classify as timeout")
	}
	if ClassifyStatus(502) != CodeServerError {
		t.Error("502 should classify as server error")
	}
}
