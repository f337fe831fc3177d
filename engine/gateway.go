package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/schema"
	"github.com/becomeliminal/bridge-go-sdk/transport"
)

// ExecutionError is a fatal failure of one agent execution.
type ExecutionError struct {
	AgentType core.AgentType
	Attempt   int
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s agent (attempt %d): %v", core.ErrExecutionFailed, e.AgentType, e.Attempt, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is matches core.ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == core.ErrExecutionFailed
}

// ExecOptions are the per-call execution inputs.
type ExecOptions struct {
	Schema             schema.Schema
	Context            Context
	SignatureAlgorithm core.SignatureAlgorithm
}

// Gateway executes an agent with an expected response schema.
type Gateway struct {
	transport transport.Transport
	logger    *zap.Logger
}

// NewGateway creates a Gateway.
func NewGateway(t transport.Transport, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{transport: t, logger: logger}
}

type execRequest struct {
	Query              string                  `json:"query"`
	Context            Context                 `json:"context"`
	SignatureAlgorithm core.SignatureAlgorithm `json:"signatureAlgorithm,omitempty"`
}

// ExecuteWithSchema calls the agent's endpoint with the schema under
// expectedSchema and selfAwareMode set. An unsupported signature algorithm is
// rejected before any request is sent. Transport and decoding failures are
// returned as *ExecutionError and never retried here.
func (g *Gateway) ExecuteWithSchema(ctx context.Context, agentType core.AgentType, query string, opts ExecOptions) (*core.ExecutionResult, error) {
	if !opts.SignatureAlgorithm.Valid() {
		return nil, &core.AlgorithmError{Value: string(opts.SignatureAlgorithm)}
	}

	reqCtx := opts.Context.Clone()
	reqCtx[KeyExpectedSchema] = opts.Schema
	reqCtx[KeySelfAwareMode] = true

	endpoint := agentType.Endpoint()
	raw, err := g.transport.Call(ctx, endpoint, execRequest{
		Query:              query,
		Context:            reqCtx,
		SignatureAlgorithm: opts.SignatureAlgorithm,
	})
	if err != nil {
		return nil, &ExecutionError{AgentType: agentType, Err: err}
	}

	var result core.ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ExecutionError{AgentType: agentType, Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}

	fields := []zap.Field{
		zap.String("agent_type", string(agentType)),
		zap.String("endpoint", endpoint),
		zap.Int("missing_context", len(result.MissingContext)),
	}
	if result.Signature != nil {
		fields = append(fields, zap.String("signature_algorithm", result.Signature.Algorithm))
	}
	g.logger.Debug("agent executed", fields...)
	return &result, nil
}

// asExecutionError stamps the attempt number onto an execution failure.
func asExecutionError(err error, attempt int) error {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		ee.Attempt = attempt
		return ee
	}
	return err
}
