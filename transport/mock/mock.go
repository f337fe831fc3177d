// Package mock provides a scripted Transport for tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Call records one request seen by the mock.
type Call struct {
	Endpoint string
	Payload  map[string]any
}

// Transport is a test double implementing transport.Transport.
// Payloads are normalized to plain JSON maps before being recorded.
type Transport struct {
	// CallFn answers each request. When nil, Responses are served by endpoint.
	CallFn func(ctx context.Context, endpoint string, payload map[string]any) (any, error)

	// Responses maps an endpoint to a fixed reply.
	Responses map[string]any

	mu    sync.Mutex
	calls []Call
}

// Call implements transport.Transport.
func (t *Transport) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.calls = append(t.calls, Call{Endpoint: endpoint, Payload: m})
	t.mu.Unlock()

	var reply any
	switch {
	case t.CallFn != nil:
		reply, err = t.CallFn(ctx, endpoint, m)
		if err != nil {
			return nil, err
		}
	case t.Responses != nil:
		r, ok := t.Responses[endpoint]
		if !ok {
			return nil, errors.New("mock: no response for " + endpoint)
		}
		reply = r
	default:
		reply = map[string]any{"response": "mock"}
	}

	if raw, ok := reply.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(reply)
}

// Calls returns a copy of the recorded requests.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// CallsTo returns the recorded requests for one endpoint.
func (t *Transport) CallsTo(endpoint string) []Call {
	var out []Call
	for _, c := range t.Calls() {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}
