package engine

import (
	"github.com/becomeliminal/bridge-go-sdk/schema"
)

// Context keys set by the engine.
const (
	KeyPreviousAttempts = "previousAttempts"
	KeyMissingContext   = "missingContextFromPreviousRun"
	KeyPreviousSchema   = "previousSchema"
	KeyPreviousResponse = "previousResponse"
	KeyMemory           = "memory"
	KeyExpectedSchema   = "expectedSchema"
	KeySelfAwareMode    = "selfAwareMode"
)

// Context is the accumulated context sent with each attempt.
type Context map[string]any

// Clone returns a shallow copy. A nil Context clones to an empty one.
func (c Context) Clone() Context {
	out := make(Context, len(c)+4)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// outcome is what one incomplete attempt leaves behind for the next.
type outcome struct {
	Attempt   int
	Schema    schema.Schema
	Awareness SelfAwareness
	Response  string
}

// nextContext returns prev extended with the previous attempt's outcome.
// prev is not modified.
func nextContext(prev Context, o outcome) Context {
	next := prev.Clone()
	next[KeyPreviousAttempts] = o.Attempt + 1
	next[KeyMissingContext] = append([]string{}, o.Awareness.MissingContext...)
	next[KeyPreviousSchema] = o.Schema
	next[KeyPreviousResponse] = o.Response
	return next
}
