package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/schema"
	"github.com/becomeliminal/bridge-go-sdk/transport/mock"
)

var plannedSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"response": map[string]any{"type": "string"},
		"sql":      map[string]any{"type": "string", "description": "The query"},
	},
	"required": []string{"response"},
}

func TestPlanSchema_TransportFailureFallsBack(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	tr := &mock.Transport{CallFn: func(context.Context, string, map[string]any) (any, error) {
		return nil, errors.New("connection refused")
	}}
	p := NewPlanner(tr, nil, zap.New(obs))

	s := p.PlanSchema(context.Background(), core.AgentCodeGenerator, "write a parser", PlanOptions{})

	for _, field := range []string{"response", "includesCode", "code", "continue", "questionForUser", "missingContext"} {
		require.True(t, s.Has(field), field)
	}
	require.Equal(t, 1, logs.FilterMessage("schema planning failed, using default schema").Len())
}

func TestPlanSchema_FallbackPerAgentType(t *testing.T) {
	tr := &mock.Transport{Responses: map[string]any{"schema/generate": map[string]any{"oops": true}}}
	p := NewPlanner(tr, nil, nil)

	email := p.PlanSchema(context.Background(), core.AgentEmail, "invite", PlanOptions{})
	require.True(t, email.Has("subject"))
	require.True(t, email.Has("tone"))

	summary := p.PlanSchema(context.Background(), core.AgentSummary, "tl;dr", PlanOptions{})
	require.True(t, summary.Has("keyPoints"))
}

func TestPlanSchema_InvalidSchemaFallsBack(t *testing.T) {
	tr := &mock.Transport{Responses: map[string]any{
		"schema/generate": map[string]any{"schema": map[string]any{"type": "object", "properties": map[string]any{}}},
	}}
	s := NewPlanner(tr, nil, nil).PlanSchema(context.Background(), core.AgentTerminal, "ls", PlanOptions{})
	require.Equal(t, schema.Base(), s)
}

func TestPlanSchema_UsesPlannedSchema(t *testing.T) {
	tr := &mock.Transport{Responses: map[string]any{"schema/generate": map[string]any{"schema": plannedSchema}}}
	p := NewPlanner(tr, nil, nil)

	s := p.PlanSchema(context.Background(), core.AgentCodeGenerator, "select users", PlanOptions{
		Context: Context{"dialect": "postgres"},
		Hints:   Hints{HintIncludeCode: false},
	})
	require.True(t, s.Has("sql"))
	require.Equal(t, []string{"response"}, s.Required)

	calls := tr.CallsTo("schema/generate")
	require.Len(t, calls, 1)
	ctx := calls[0].Payload["context"].(map[string]any)
	require.Equal(t, "code-generator", ctx["agentType"])
	require.Equal(t, "select users", ctx["originalQuery"])
	require.Equal(t, map[string]any{
		"includeCode":           false,
		"includeContinue":       true,
		"includeMissingContext": true,
	}, ctx["hints"])
	require.Equal(t, map[string]any{"dialect": "postgres"}, ctx["context"])
	require.Contains(t, calls[0].Payload["query"], "select users")
}

func TestPlanSchema_CacheSkipsRepeatedPlanning(t *testing.T) {
	cache, err := NewSchemaCache(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	tr := &mock.Transport{Responses: map[string]any{"schema/generate": map[string]any{"schema": plannedSchema}}}
	p := NewPlanner(tr, cache, nil)
	ctx := context.Background()

	first := p.PlanSchema(ctx, core.AgentCodeGenerator, "q", PlanOptions{})
	second := p.PlanSchema(ctx, core.AgentCodeGenerator, "q", PlanOptions{})
	require.Equal(t, first, second)
	require.Len(t, tr.Calls(), 1)

	p.PlanSchema(ctx, core.AgentCodeGenerator, "another query", PlanOptions{})
	require.Len(t, tr.Calls(), 2)
}

func TestPlanSchema_FallbackIsNotCached(t *testing.T) {
	cache, err := NewSchemaCache(100, 0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	fail := true
	tr := &mock.Transport{CallFn: func(context.Context, string, map[string]any) (any, error) {
		if fail {
			return nil, errors.New("down")
		}
		return map[string]any{"schema": plannedSchema}, nil
	}}
	p := NewPlanner(tr, cache, nil)

	require.False(t, p.PlanSchema(context.Background(), core.AgentGitHub, "q", PlanOptions{}).Has("sql"))
	fail = false
	require.True(t, p.PlanSchema(context.Background(), core.AgentGitHub, "q", PlanOptions{}).Has("sql"))
}
