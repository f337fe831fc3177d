package engine

import (
	"math"
	"strings"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

// Confidence penalties.
const (
	missingContextPenalty = 0.2
	maxPenalizedMissing   = 3
	continuePenalty       = 0.15
	questionPenalty       = 0.15
)

// SelfAwareness is the agent's own account of how complete its answer is.
type SelfAwareness struct {
	Complete       bool     `json:"complete"`
	MissingContext []string `json:"missingContext"`
	NeedsContinue  bool     `json:"needsContinue"`
	HasQuestion    bool     `json:"hasQuestion"`
	Question       *string  `json:"question"`
	Confidence     float64  `json:"confidence"`
}

// Analyze derives a SelfAwareness from an execution result. A result is
// complete when it lists no missing context, does not ask to continue and
// poses no question. Confidence starts at 1 and loses 0.2 per missing item
// (at most three), 0.15 for continue and 0.15 for a question.
func Analyze(r *core.ExecutionResult) SelfAwareness {
	if r == nil {
		r = &core.ExecutionResult{}
	}

	missing := append([]string{}, r.MissingContext...)

	aw := SelfAwareness{
		MissingContext: missing,
		NeedsContinue:  r.Continue,
		HasQuestion:    r.QuestionForUser,
	}
	if aw.HasQuestion && strings.TrimSpace(r.Question) != "" {
		q := r.Question
		aw.Question = &q
	}
	aw.Complete = len(missing) == 0 && !aw.NeedsContinue && !aw.HasQuestion

	score := 1.0
	score -= missingContextPenalty * float64(min(len(missing), maxPenalizedMissing))
	if aw.NeedsContinue {
		score -= continuePenalty
	}
	if aw.HasQuestion {
		score -= questionPenalty
	}
	aw.Confidence = math.Round(clamp(score, 0, 1)*100) / 100
	return aw
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
