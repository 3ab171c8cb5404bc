// Package httpx provides the JSON error envelope shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shades-uz/api/internal/platform/requestctx"
)

// Error is the API error envelope. It serialises flat:
// {"error": code, "message": ..., "status": ..., <details...>}.
type Error struct {
	Code    string
	Message string
	Status  int

	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error; a zero status becomes 500.
func NewError(code, message string, status int) Error {
	e := Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
	if e.Status == 0 {
		e.Status = http.StatusInternalServerError
	}
	return e
}

// WithRequestID overrides the request id picked up from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = sanitize(id, 80)
	return e
}

// WithTraceID overrides the trace id picked up from context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = sanitize(id, 64)
	return e
}

// WithDetails merges extra JSON fields into the envelope. The map is
// copied so the caller may reuse it.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders err as the JSON envelope. Request and trace ids fall
// back to the values carried on ctx by the middleware chain.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID := firstNonEmpty(err.RequestID, sanitize(middleware.GetReqID(ctx), 80)); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := firstNonEmpty(err.TraceID, sanitize(requestctx.TraceID(ctx), 64)); traceID != "" {
		payload["trace_id"] = traceID
	}
	for key, value := range err.Details {
		payload[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sanitize keeps header-derived values single-line and bounded.
func sanitize(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
