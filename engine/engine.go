// Package engine runs agents through the plan, execute and analyze loop.
//
// Each run asks the schema generator for a response schema, executes the
// agent against it and inspects the agent's self-reported completeness.
// Incomplete answers are retried with the previous attempt folded into the
// context, up to a bound.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/memory"
	"github.com/becomeliminal/bridge-go-sdk/schema"
	"github.com/becomeliminal/bridge-go-sdk/transport"
)

// Defaults for the retry loop.
const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 4
)

// ErrInvalidRequest is returned for requests that cannot be run.
var ErrInvalidRequest = errors.New("invalid request")

// State is a step of the retry loop.
type State int

const (
	StatePlanning State = iota
	StateExecuting
	StateAnalyzing
	StateDone
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateAnalyzing:
		return "analyzing"
	case StateDone:
		return "done"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reason explains why a run ended without a complete answer.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMaxRetries        Reason = "max_retries_reached"
	ReasonAutoRetryDisabled Reason = "auto_retry_disabled"
)

// Memory is the part of memory.Manager the engine uses.
type Memory interface {
	BuildContext() memory.Context
	AddInteractions(ctx context.Context, inputs ...memory.Input) error
}

// Engine orchestrates planning, execution and retries.
type Engine struct {
	planner            *Planner
	gateway            *Gateway
	memory             Memory
	cache              *SchemaCache
	logger             *zap.Logger
	maxRetries         int
	autoRetry          bool
	signatureAlgorithm core.SignatureAlgorithm
	concurrency        int
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory attaches a memory that is read before and written after each run.
func WithMemory(m Memory) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxRetries bounds the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithAutoRetry toggles retrying incomplete answers.
func WithAutoRetry(enabled bool) Option {
	return func(e *Engine) {
		e.autoRetry = enabled
	}
}

// WithSignatureAlgorithm sets the default signature algorithm for every run.
func WithSignatureAlgorithm(alg core.SignatureAlgorithm) Option {
	return func(e *Engine) {
		e.signatureAlgorithm = alg
	}
}

// WithSchemaCache caches planned schemas.
func WithSchemaCache(c *SchemaCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithConcurrency bounds how many requests RunAll runs at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// New creates an engine that talks to the API through t.
func New(t transport.Transport, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transport is required", core.ErrInvalidConfig)
	}
	e := &Engine{
		logger:      zap.NewNop(),
		maxRetries:  DefaultMaxRetries,
		autoRetry:   true,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must be >= 0, got %d", core.ErrInvalidConfig, e.maxRetries)
	}
	if e.concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be >= 1, got %d", core.ErrInvalidConfig, e.concurrency)
	}
	if !e.signatureAlgorithm.Valid() {
		return nil, &core.AlgorithmError{Value: string(e.signatureAlgorithm)}
	}

	e.planner = NewPlanner(t, e.cache, e.logger.Named("planner"))
	e.gateway = NewGateway(t, e.logger.Named("gateway"))
	return e, nil
}

// Planner returns the engine's schema planner.
func (e *Engine) Planner() *Planner { return e.planner }

// Gateway returns the engine's execution gateway.
func (e *Engine) Gateway() *Gateway { return e.gateway }

// Request is one agent invocation.
type Request struct {
	AgentType core.AgentType
	Query     string
	Context   Context
	Hints     Hints
	// SignatureAlgorithm overrides the engine default when set.
	SignatureAlgorithm core.SignatureAlgorithm
}

// Result is the outcome of a run.
type Result struct {
	Output    *core.ExecutionResult `json:"output"`
	Schema    schema.Schema         `json:"schema"`
	Awareness SelfAwareness         `json:"awareness"`
	// Attempts is the number of plan/execute/analyze cycles run.
	Attempts int  `json:"attempts"`
	Complete bool `json:"complete"`
	// Reason is set when Complete is false.
	Reason Reason `json:"reason,omitempty"`
}

// Run drives the loop until the agent reports a complete answer or retries
// run out. Execution failures abort the run with no partial result.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(string(req.AgentType)) == "" {
		return nil, fmt.Errorf("%w: agent type is required", ErrInvalidRequest)
	}
	alg := req.SignatureAlgorithm
	if alg == core.SignatureDefault {
		alg = e.signatureAlgorithm
	}
	if !alg.Valid() {
		return nil, &core.AlgorithmError{Value: string(alg)}
	}

	log := e.logger.With(zap.String("agent_type", string(req.AgentType)))

	acc := req.Context.Clone()
	if e.memory != nil {
		acc[KeyMemory] = e.memory.BuildContext()
	}

	var (
		state   = StatePlanning
		attempt = 0
		sch     schema.Schema
		out     *core.ExecutionResult
		aw      SelfAwareness
		reason  Reason
	)

	for state != StateDone && state != StateExhausted {
		switch state {
		case StatePlanning:
			sch = e.planner.PlanSchema(ctx, req.AgentType, req.Query, PlanOptions{Context: acc, Hints: req.Hints})
			state = StateExecuting

		case StateExecuting:
			var err error
			out, err = e.gateway.ExecuteWithSchema(ctx, req.AgentType, req.Query, ExecOptions{
				Schema:             sch,
				Context:            acc,
				SignatureAlgorithm: alg,
			})
			if err != nil {
				log.Error("execution failed", zap.Int("attempt", attempt), zap.Error(err))
				return nil, asExecutionError(err, attempt)
			}
			state = StateAnalyzing

		case StateAnalyzing:
			aw = Analyze(out)
			state, reason = decide(aw, attempt, e.maxRetries, e.autoRetry)
			log.Debug("attempt analyzed",
				zap.Int("attempt", attempt),
				zap.Bool("complete", aw.Complete),
				zap.Float64("confidence", aw.Confidence),
				zap.Stringer("next", state))
			if state == StatePlanning {
				acc = nextContext(acc, outcome{
					Attempt:   attempt,
					Schema:    sch,
					Awareness: aw,
					Response:  out.Response,
				})
				attempt++
			}
		}
	}

	res := &Result{
		Output:    out,
		Schema:    sch,
		Awareness: aw,
		Attempts:  attempt + 1,
		Complete:  state == StateDone,
		Reason:    reason,
	}
	if res.Complete {
		log.Info("run complete", zap.Int("attempts", res.Attempts), zap.Float64("confidence", aw.Confidence))
	} else {
		log.Warn("run exhausted",
			zap.Int("attempts", res.Attempts),
			zap.String("reason", string(reason)),
			zap.Strings("missing_context", aw.MissingContext))
	}

	e.remember(ctx, req, res)
	return res, nil
}

// decide is the transition out of Analyzing.
func decide(aw SelfAwareness, attempt, maxRetries int, autoRetry bool) (State, Reason) {
	switch {
	case aw.Complete:
		return StateDone, ReasonNone
	case !autoRetry:
		return StateExhausted, ReasonAutoRetryDisabled
	case attempt >= maxRetries:
		return StateExhausted, ReasonMaxRetries
	default:
		return StatePlanning, ReasonNone
	}
}

// remember records the query and the final answer.
func (e *Engine) remember(ctx context.Context, req Request, res *Result) {
	if e.memory == nil {
		return
	}

	meta := map[string]any{
		"agentType":  string(req.AgentType),
		"attempts":   res.Attempts,
		"complete":   res.Complete,
		"confidence": res.Awareness.Confidence,
	}
	if sig := res.Output.Signature; sig != nil {
		meta["signatureAlgorithm"] = sig.Algorithm
		meta["signatureHash"] = sig.Hash
	}

	err := e.memory.AddInteractions(ctx,
		memory.Input{Role: core.RoleUser, Text: req.Query, Metadata: map[string]any{"agentType": string(req.AgentType)}},
		memory.Input{Role: core.RoleAssistant, Text: res.Output.Response, Metadata: meta},
	)
	if err != nil {
		e.logger.Warn("failed to record run in memory", zap.String("op", "remember"), zap.Error(err))
	}
}
