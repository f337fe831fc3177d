package core

import "strings"

// AgentType identifies a remote agent. The set below is closed; any other
// value is forwarded to the API unchanged as its endpoint path.
type AgentType string

const (
	AgentCodeGenerator   AgentType = "code-generator"
	AgentCodeImprover    AgentType = "code-improver"
	AgentSchemaGenerator AgentType = "schema-generator"
	AgentTerminal        AgentType = "terminal"
	AgentDiffImprover    AgentType = "diff-improver"
	AgentBoxDesigner     AgentType = "box-designer"
	AgentProjectPlanner  AgentType = "project-planner"
	AgentPromptImprover  AgentType = "prompt-improver"
	AgentToolChoice      AgentType = "tool-choice"
	AgentGitHub          AgentType = "github"
	AgentSummary         AgentType = "summary"
	AgentEmail           AgentType = "email"
)

var endpoints = map[AgentType]string{
	AgentCodeGenerator:   "code/generate",
	AgentCodeImprover:    "code/improve",
	AgentSchemaGenerator: "schema/generate",
	AgentTerminal:        "terminal",
	AgentDiffImprover:    "diff/improve",
	AgentBoxDesigner:     "box/design",
	AgentProjectPlanner:  "project/plan",
	AgentPromptImprover:  "prompt/improve",
	AgentToolChoice:      "tool/choice",
	AgentGitHub:          "github",
	AgentSummary:         "summary",
	AgentEmail:           "email",
}

// Endpoint returns the wire path for the agent type.
func (a AgentType) Endpoint() string {
	if path, ok := endpoints[a]; ok {
		return path
	}
	return string(a)
}

// Known reports whether the agent type is part of the fixed table.
func (a AgentType) Known() bool {
	_, ok := endpoints[a]
	return ok
}

// AgentTypes returns every known agent type.
func AgentTypes() []AgentType {
	return []AgentType{
		AgentCodeGenerator, AgentCodeImprover, AgentSchemaGenerator, AgentTerminal,
		AgentDiffImprover, AgentBoxDesigner, AgentProjectPlanner, AgentPromptImprover,
		AgentToolChoice, AgentGitHub, AgentSummary, AgentEmail,
	}
}

// SignatureAlgorithm selects how the API signs its responses.
type SignatureAlgorithm string

const (
	// SignatureDefault leaves the field off the request; the API uses ECDSA.
	SignatureDefault SignatureAlgorithm = ""
	SignatureECDSA   SignatureAlgorithm = "ecdsa"
	SignatureMLDSA65 SignatureAlgorithm = "ml-dsa-65"
	SignatureMLDSA87 SignatureAlgorithm = "ml-dsa-87"
	// SignaturePQ is an alias the server resolves to ml-dsa-87.
	SignaturePQ SignatureAlgorithm = "pq"
)

// ParseSignatureAlgorithm normalizes s and checks it against the accepted values.
func ParseSignatureAlgorithm(s string) (SignatureAlgorithm, error) {
	alg := SignatureAlgorithm(strings.ToLower(strings.TrimSpace(s)))
	if !alg.Valid() {
		return "", &AlgorithmError{Value: s}
	}
	return alg, nil
}

// Valid reports whether the algorithm may be sent to the API.
func (s SignatureAlgorithm) Valid() bool {
	switch s {
	case SignatureDefault, SignatureECDSA, SignatureMLDSA65, SignatureMLDSA87, SignaturePQ:
		return true
	}
	return false
}

// Resolved returns the algorithm the server will actually use.
func (s SignatureAlgorithm) Resolved() SignatureAlgorithm {
	switch s {
	case SignatureDefault:
		return SignatureECDSA
	case SignaturePQ:
		return SignatureMLDSA87
	}
	return s
}

// Signature is the signing descriptor embedded in every API response.
// It is carried as opaque data; this SDK does not verify it.
type Signature struct {
	Hash             string `json:"hash,omitempty"`
	Signature        string `json:"signature,omitempty"`
	PublicKey        string `json:"publicKey,omitempty"`
	Algorithm        string `json:"algorithm,omitempty"`
	Suite            string `json:"suite,omitempty"`
	QuantumResistant bool   `json:"quantumResistant,omitempty"`
	SignedAt         string `json:"signedAt,omitempty"`
}

// Role is the author of a remembered interaction.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
