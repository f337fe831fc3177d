package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. https://api.example.com/v1.
	BaseURL string

	Credentials Credentials

	// Timeout bounds one call. Default: 60s.
	Timeout time.Duration

	// Client overrides the HTTP client (tests, proxies).
	Client *http.Client

	Logger *zap.Logger
}

// HTTP posts JSON payloads to {BaseURL}/{endpoint}.
type HTTP struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		creds:      cfg.Credentials,
		httpClient: client,
		logger:     loggerOrNop(cfg.Logger).Named("transport.http"),
	}, nil
}

// Call implements Transport.
func (t *HTTP) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := t.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.creds.headers() {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	t.logger.Debug("call completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(respBody)}
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%s: response is not valid JSON", endpoint)
	}
	return json.RawMessage(respBody), nil
}
