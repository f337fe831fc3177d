// Package transport sends agent requests to the remote structured-AI API.
//
// A Transport knows nothing about schemas or retries: it posts one JSON
// payload to a named endpoint and hands back the JSON reply. Three wire
// formats are provided:
//   - HTTP: POST {BaseURL}/{endpoint}
//   - WebSocket: one request/response frame pair per call
//   - GRPC: one unary call per request with structpb payloads
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport performs a single request against the API.
type Transport interface {
	Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)

// Call implements Transport.
func (f Func) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	return f(ctx, endpoint, payload)
}

// Credentials are attached to every request when set.
type Credentials struct {
	// APIKey is sent as X-API-Key.
	APIKey string

	// BearerToken is sent as "Authorization: Bearer <token>".
	BearerToken string
}

// Header names used on every transport.
const (
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// DefaultTimeout bounds a single call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// headers returns the auth and tracing headers for one call.
func (c Credentials) headers() map[string]string {
	h := map[string]string{
		HeaderRequestID: uuid.New().String(),
	}
	if c.APIKey != "" {
		h[HeaderAPIKey] = c.APIKey
	}
	if c.BearerToken != "" {
		h[HeaderAuthorization] = "Bearer " + c.BearerToken
	}
	return h
}

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: api returned status %d: %s", e.Endpoint, e.Code, truncate(e.Body, 200))
}

// toJSONMap normalizes an arbitrary payload into plain JSON values.
func toJSONMap(payload any) (map[string]any, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return m, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// truncate cuts s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
