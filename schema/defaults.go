package schema

import "github.com/becomeliminal/bridge-go-sdk/core"

// Base field names every self-aware response carries.
const (
	FieldResponse        = "response"
	FieldIncludesCode    = "includesCode"
	FieldCode            = "code"
	FieldContinue        = "continue"
	FieldQuestionForUser = "questionForUser"
	FieldMissingContext  = "missingContext"
)

// Base returns the fields shared by all agents.
func Base() Schema {
	return Object(map[string]Property{
		FieldResponse:        String("The main response to the query"),
		FieldIncludesCode:    Boolean("Whether the response includes code"),
		FieldCode:            String("Code content, if any"),
		FieldContinue:        Boolean("Whether more work is needed to finish the task"),
		FieldQuestionForUser: Boolean("Whether a question must be answered by the user before continuing"),
		FieldMissingContext:  Array("Context that was missing to fully answer", String("")),
	}, FieldResponse)
}

// Default returns the fallback schema for an agent type. It is used whenever
// planning fails.
func Default(agentType core.AgentType) Schema {
	switch agentType {
	case core.AgentEmail:
		return emailSchema()
	case core.AgentSummary:
		return summarySchema()
	default:
		return Base()
	}
}

func emailSchema() Schema {
	return Base().With(map[string]Property{
		"subject": String("Email subject line"),
		"tone":    StringEnum("Tone of the email", "formal", "neutral", "friendly"),
	}, "subject")
}

func summarySchema() Schema {
	return Base().With(map[string]Property{
		"keyPoints": Array("Key points of the summary", String("")),
	})
}
