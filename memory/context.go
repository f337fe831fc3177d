package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

// RecentWindow is how many active interactions BuildContext returns.
const RecentWindow = 10

// Context is the read-only view of memory handed to agents.
type Context struct {
	TotalCount int                  `json:"totalInteractions"`
	Recent     []ContextInteraction `json:"recentInteractions"`
	Summaries  []ContextSummary     `json:"summaries"`
	Stats      Stats                `json:"stats"`
}

// ContextInteraction is an Interaction without its hash and metadata.
type ContextInteraction struct {
	Role      core.Role `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextSummary is a Summary without its hash.
type ContextSummary struct {
	Text      string    `json:"text"`
	Range     Range     `json:"range"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats describes the size of a Manager.
type Stats struct {
	Active     int `json:"activeInteractions"`
	Summaries  int `json:"summaries"`
	TotalCount int `json:"totalInteractions"`
}

// Empty reports whether the context carries nothing worth sending.
func (c Context) Empty() bool {
	return len(c.Recent) == 0 && len(c.Summaries) == 0
}

// Format renders the context as plain text for prompt injection.
func (c Context) Format() string {
	if c.Empty() {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Memory (%d interactions total, %d active, %d summaries)\n",
		c.Stats.TotalCount, c.Stats.Active, c.Stats.Summaries)

	if len(c.Summaries) > 0 {
		sb.WriteString("\nEarlier conversation:\n")
		for _, s := range c.Summaries {
			label := "summary"
			if s.Range.MetaLevel {
				label = "meta-summary"
			}
			fmt.Fprintf(&sb, "- [%s of %d, %s to %s] %s\n",
				label, s.Range.Count,
				s.Range.Start.Format(time.RFC3339), s.Range.End.Format(time.RFC3339),
				s.Text)
		}
	}

	if len(c.Recent) > 0 {
		sb.WriteString("\nRecent interactions:\n")
		for _, it := range c.Recent {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", it.Role, it.Timestamp.Format(time.RFC3339), it.Text)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
