// Package provider contains the vendor-facing client used for diagnostic
// synthesis. The Client interface is the contract: any backend able to
// return the structured JSON reply satisfies it. Failures carry a
// structured Code so callers classify outcomes without inspecting
// message text.
package provider

import (
	"context"
	"fmt"
)

// Code identifies a provider failure class.
type Code string

const (
	// CodeAuth means the provider rejected the configured credentials.
	CodeAuth Code = "auth"
	// CodeRateLimited means the provider throttled the request.
	CodeRateLimited Code = "rate_limited"
	// CodeTimeout means the call exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeServerError means the provider failed internally (5xx).
	CodeServerError Code = "server_error"
	// CodeUnavailable means the provider could not be reached at all.
	CodeUnavailable Code = "unavailable"
	// CodeInvalidRequest means the provider rejected the request payload.
	CodeInvalidRequest Code = "invalid_request"
)

// Error is a classified provider failure.
type Error struct {
	Code    Code
	Status  int    // HTTP status when applicable, else 0
	Message string // provider-supplied detail, surfaced verbatim for support
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Code, e.Message)
}

// Retryable reports whether a later identical attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeTimeout, CodeServerError, CodeUnavailable:
		return true
	}
	return false
}

// Request is one structured-output generation call.
type Request struct {
	Prompt   string
	ImageURI string // optional data: URI with base64 payload
	Schema   map[string]interface{}
}

// Client generates a structured JSON reply for a request. The returned bytes
// are the raw model output; validation belongs to the caller's contract.
type Client interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// ClassifyStatus maps an HTTP status from the provider to a Code.
func ClassifyStatus(status int) Code {
	switch {
	case status == 401 || status == 403:
		return CodeAuth
	case status == 429:
		return CodeRateLimited
	case status == 408:
		return CodeTimeout
	case status >= 500:
		return CodeServerError
	default:
		return CodeInvalidRequest
	}
}
