package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	// URL is the gateway socket, e.g. wss://api.example.com/ws.
	URL string

	Credentials Credentials

	// Timeout bounds one call including the dial. Default: 60s.
	Timeout time.Duration

	// Dialer overrides the default dialer.
	Dialer *websocket.Dialer

	Logger *zap.Logger
}

// Frame is the envelope exchanged on the socket.
type Frame struct {
	ID       string          `json:"id"`
	Endpoint string          `json:"endpoint,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// WebSocket sends each request as a single frame on a fresh connection and
// waits for the matching reply frame.
type WebSocket struct {
	url     string
	creds   Credentials
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(cfg WebSocketConfig) (*WebSocket, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebSocket{
		url:     cfg.URL,
		creds:   cfg.Credentials,
		timeout: timeout,
		dialer:  dialer,
		logger:  loggerOrNop(cfg.Logger).Named("transport.websocket"),
	}, nil
}

// Call implements Transport.
func (t *WebSocket) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	header := http.Header{}
	hs := t.creds.headers()
	for k, v := range hs {
		header.Set(k, v)
	}
	requestID := hs[HeaderRequestID]

	conn, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if resp != nil {
			return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: err.Error()}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON(Frame{ID: requestID, Endpoint: endpoint, Body: body}); err != nil {
		return nil, fmt.Errorf("websocket write: %w", err)
	}

	for {
		var reply Frame
		if err := conn.ReadJSON(&reply); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("websocket read: %w", ctx.Err())
			}
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if reply.ID != "" && reply.ID != requestID {
			t.logger.Debug("skipping unrelated frame", zap.String("id", reply.ID))
			continue
		}
		if reply.Error != "" {
			return nil, fmt.Errorf("%s: %w", endpoint, errors.New(reply.Error))
		}
		if !json.Valid(reply.Body) {
			return nil, fmt.Errorf("%s: response is not valid JSON", endpoint)
		}

		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return reply.Body, nil
	}
}
