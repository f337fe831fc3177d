package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExecutionResult is the raw response of an agent call.
//
// The self-awareness fields every agent populates in self-aware mode are
// decoded into typed fields. Everything else (code, subject, keyPoints, ...)
// varies by agent type and is kept verbatim in Extra.
type ExecutionResult struct {
	Response        string
	MissingContext  []string
	Continue        bool
	QuestionForUser bool
	Question        string
	IncludesCode    bool
	Code            string
	Signature       *Signature

	// Extra holds agent-specific fields not listed above.
	Extra map[string]any
}

var knownResultKeys = map[string]bool{
	"response":        true,
	"missingContext":  true,
	"continue":        true,
	"questionForUser": true,
	"question":        true,
	"includesCode":    true,
	"code":            true,
	"signature":       true,
}

// Field returns an agent-specific field.
func (r *ExecutionResult) Field(name string) (any, bool) {
	if r == nil || r.Extra == nil {
		return nil, false
	}
	v, ok := r.Extra[name]
	return v, ok
}

// UnmarshalJSON decodes a response leniently. Agents are not consistent about
// flag types, so "true", 1 and non-empty strings all count as set.
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode execution result: %w", err)
	}

	*r = ExecutionResult{}
	for k, v := range raw {
		if knownResultKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}

	r.Response = stringValue(raw["response"])
	r.MissingContext = stringList(raw["missingContext"])
	r.Continue = Truthy(raw["continue"])
	r.IncludesCode = Truthy(raw["includesCode"])
	r.Code = stringValue(raw["code"])
	r.Question = stringValue(raw["question"])

	switch q := raw["questionForUser"].(type) {
	case string:
		q = strings.TrimSpace(q)
		r.QuestionForUser = Truthy(q)
		if r.Question == "" && q != "" && !isBoolWord(q) {
			r.Question = q
		}
	default:
		r.QuestionForUser = Truthy(q)
	}

	if sig, ok := raw["signature"]; ok && sig != nil {
		b, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("re-encode signature: %w", err)
		}
		var s Signature
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode signature: %w", err)
		}
		r.Signature = &s
	}
	return nil
}

// MarshalJSON writes the known fields and Extra back into one flat object.
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["response"] = r.Response
	if len(r.MissingContext) > 0 {
		out["missingContext"] = r.MissingContext
	}
	out["continue"] = r.Continue
	out["questionForUser"] = r.QuestionForUser
	if r.Question != "" {
		out["question"] = r.Question
	}
	if r.IncludesCode || r.Code != "" {
		out["includesCode"] = r.IncludesCode
		out["code"] = r.Code
	}
	if r.Signature != nil {
		out["signature"] = r.Signature
	}
	return json.Marshal(out)
}

// Truthy follows JSON-ish truthiness: false, 0, "", "false", "0", null and
// empty collections are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0" && s != "null"
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func isBoolWord(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "0", "1", "null":
		return true
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, strings.TrimSpace(stringValue(item)))
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
