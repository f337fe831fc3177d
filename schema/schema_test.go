package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

var baseFields = []string{"response", "includesCode", "code", "continue", "questionForUser", "missingContext"}

func TestDefault_GenericAgent(t *testing.T) {
	s := Default(core.AgentCodeGenerator)
	for _, f := range baseFields {
		assert.True(t, s.Has(f), "missing base field %s", f)
	}
	assert.False(t, s.Has("subject"))
	assert.False(t, s.Has("keyPoints"))
	assert.True(t, s.Valid())
}

func TestDefault_UnknownAgentFallsBackToBase(t *testing.T) {
	s := Default(core.AgentType("weather"))
	assert.Len(t, s.Properties, len(baseFields))
}

func TestDefault_EmailAndSummary(t *testing.T) {
	email := Default(core.AgentEmail)
	assert.True(t, email.Has("subject"))
	assert.True(t, email.Has("tone"))
	assert.Contains(t, email.Required, "subject")

	summary := Default(core.AgentSummary)
	require.True(t, summary.Has("keyPoints"))
	assert.Equal(t, TypeArray, summary.Properties["keyPoints"].Type)
	assert.False(t, summary.Has("subject"))
}

func TestWith_DoesNotMutateReceiver(t *testing.T) {
	base := Base()
	extended := base.With(map[string]Property{"extra": Number("n")}, "extra", "response")

	assert.False(t, base.Has("extra"))
	assert.True(t, extended.Has("extra"))
	assert.Equal(t, []string{"response", "extra"}, extended.Required)
}

func TestValid(t *testing.T) {
	assert.False(t, Schema{}.Valid())
	assert.False(t, Object(map[string]Property{"a": String("")}, "b").Valid())
	assert.True(t, Object(map[string]Property{"a": String("")}, "a").Valid())
}

func TestSchema_JSONShape(t *testing.T) {
	b, err := json.Marshal(Object(map[string]Property{
		"tags": Array("labels", String("")),
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"tags":{"type":"array","description":"labels","items":{"type":"string"}}}}`, string(b))
}
