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

// Planning hint names.
const (
	HintIncludeCode           = "includeCode"
	HintIncludeContinue       = "includeContinue"
	HintIncludeMissingContext = "includeMissingContext"
)

// Hints are flags passed to the schema generator.
type Hints map[string]bool

// DefaultHints asks for every self-awareness field.
func DefaultHints() Hints {
	return Hints{
		HintIncludeCode:           true,
		HintIncludeContinue:       true,
		HintIncludeMissingContext: true,
	}
}

// merged returns the defaults overlaid with h.
func (h Hints) merged() Hints {
	out := DefaultHints()
	for k, v := range h {
		out[k] = v
	}
	return out
}

// PlanOptions are the per-call planning inputs.
type PlanOptions struct {
	Context Context
	Hints   Hints
}

// Planner asks the schema generator for a response schema.
type Planner struct {
	transport transport.Transport
	cache     *SchemaCache
	logger    *zap.Logger
}

// NewPlanner creates a Planner. cache may be nil.
func NewPlanner(t transport.Transport, cache *SchemaCache, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{transport: t, cache: cache, logger: logger}
}

type planRequest struct {
	Query   string      `json:"query"`
	Context planContext `json:"context"`
}

type planContext struct {
	AgentType     core.AgentType `json:"agentType"`
	OriginalQuery string         `json:"originalQuery"`
	Hints         Hints          `json:"hints"`
	Context       Context        `json:"context,omitempty"`
}

type planResponse struct {
	Schema json.RawMessage `json:"schema"`
}

var errNoSchema = errors.New("response carries no usable schema")

// PlanSchema returns the schema the agent should answer with. Any planning
// failure is logged and answered with schema.Default(agentType), so the
// pipeline always proceeds.
func (p *Planner) PlanSchema(ctx context.Context, agentType core.AgentType, query string, opts PlanOptions) schema.Schema {
	hints := opts.Hints.merged()

	var key string
	if p.cache != nil {
		k, err := planKey(agentType, query, hints, opts.Context)
		if err == nil {
			key = k
			if s, ok := p.cache.get(key); ok {
				p.logger.Debug("schema cache hit", zap.String("agent_type", string(agentType)))
				return s
			}
		}
	}

	s, err := p.plan(ctx, agentType, query, hints, opts.Context)
	if err != nil {
		p.logger.Warn("schema planning failed, using default schema",
			zap.String("op", "plan_schema"),
			zap.String("agent_type", string(agentType)),
			zap.Error(err))
		return schema.Default(agentType)
	}

	if key != "" {
		p.cache.set(key, s)
	}
	return s
}

func (p *Planner) plan(ctx context.Context, agentType core.AgentType, query string, hints Hints, callerCtx Context) (schema.Schema, error) {
	req := planRequest{
		Query: fmt.Sprintf("Design the JSON response schema for a %s agent answering: %s", agentType, query),
		Context: planContext{
			AgentType:     agentType,
			OriginalQuery: query,
			Hints:         hints,
			Context:       callerCtx,
		},
	}

	raw, err := p.transport.Call(ctx, core.AgentSchemaGenerator.Endpoint(), req)
	if err != nil {
		return schema.Schema{}, err
	}

	var resp planResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return schema.Schema{}, fmt.Errorf("decode planning response: %w", err)
	}
	if len(resp.Schema) == 0 || string(resp.Schema) == "null" {
		return schema.Schema{}, errNoSchema
	}

	var s schema.Schema
	if err := json.Unmarshal(resp.Schema, &s); err != nil {
		return schema.Schema{}, fmt.Errorf("decode schema: %w", err)
	}
	if !s.Valid() {
		return schema.Schema{}, errNoSchema
	}
	if s.Type == "" {
		s.Type = schema.TypeObject
	}
	return s, nil
}
