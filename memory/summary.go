package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

const (
	topicSnippetLen = 60
	maxTopics       = 3
	metaSnippetLen  = 120
)

// summarizeInteractions folds a block of interactions into one Summary.
func (m *Manager) summarizeInteractions(ctx context.Context, items []Interaction) Summary {
	text := ""
	if m.summarizer != nil {
		out, err := m.summarizer.Summarize(ctx, SummaryRequest{
			Kind:  KindTranscript,
			Text:  transcript(items),
			Count: len(items),
		})
		switch {
		case err != nil:
			m.logger.Warn("summarizer failed, using local summary",
				zap.String("op", "summarize_interactions"),
				zap.Int("count", len(items)),
				zap.Error(err))
		case strings.TrimSpace(out) == "":
			m.logger.Warn("summarizer returned empty text, using local summary",
				zap.String("op", "summarize_interactions"))
		default:
			text = strings.TrimSpace(out)
		}
	}
	if text == "" {
		text = fallbackTranscriptSummary(items)
	}

	s := Summary{
		Range: Range{
			Start: items[0].Timestamp,
			End:   items[len(items)-1].Timestamp,
			Count: len(items),
		},
		Text:      text,
		Timestamp: normalizeTime(m.now()),
	}
	s.Hash = s.ComputeHash()
	return s
}

// summarizeSummaries folds a block of summaries into one MetaSummary.
func (m *Manager) summarizeSummaries(ctx context.Context, items []Summary) Summary {
	count := 0
	for _, s := range items {
		count += s.Range.Count
	}

	text := ""
	if m.summarizer != nil {
		parts := make([]string, len(items))
		for i, s := range items {
			parts[i] = fmt.Sprintf("[Summary %d, %d interactions]\n%s", i+1, s.Range.Count, s.Text)
		}
		out, err := m.summarizer.Summarize(ctx, SummaryRequest{
			Kind:  KindMeta,
			Text:  strings.Join(parts, "\n\n"),
			Count: count,
		})
		switch {
		case err != nil:
			m.logger.Warn("summarizer failed, using local meta-summary",
				zap.String("op", "summarize_summaries"),
				zap.Int("summaries", len(items)),
				zap.Error(err))
		case strings.TrimSpace(out) == "":
			m.logger.Warn("summarizer returned empty text, using local meta-summary",
				zap.String("op", "summarize_summaries"))
		default:
			text = strings.TrimSpace(out)
		}
	}
	if text == "" {
		text = fallbackMetaSummary(items, count)
	}

	s := Summary{
		Range: Range{
			Start:     items[0].Range.Start,
			End:       items[len(items)-1].Range.End,
			Count:     count,
			MetaLevel: true,
		},
		Text:      text,
		Timestamp: normalizeTime(m.now()),
	}
	s.Hash = s.ComputeHash()
	return s
}

// fallbackTranscriptSummary builds a deterministic summary: turn counts per
// role plus the opening words of the first few user messages.
func fallbackTranscriptSummary(items []Interaction) string {
	counts := map[core.Role]int{}
	var topics []string
	for _, it := range items {
		counts[it.Role]++
		if it.Role == core.RoleUser && len(topics) < maxTopics {
			if t := snippet(it.Text, topicSnippetLen); t != "" {
				topics = append(topics, t)
			}
		}
	}
	if len(topics) == 0 {
		for _, it := range items {
			if len(topics) == maxTopics {
				break
			}
			if t := snippet(it.Text, topicSnippetLen); t != "" {
				topics = append(topics, t)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Conversation segment of %d interactions (%d user, %d assistant",
		len(items), counts[core.RoleUser], counts[core.RoleAssistant])
	if n := counts[core.RoleSystem]; n > 0 {
		fmt.Fprintf(&sb, ", %d system", n)
	}
	sb.WriteString(")")
	if len(topics) > 0 {
		sb.WriteString(". Topics: ")
		sb.WriteString(strings.Join(topics, "; "))
	}
	return sb.String()
}

func fallbackMetaSummary(items []Summary, count int) string {
	parts := make([]string, 0, len(items))
	for _, s := range items {
		parts = append(parts, snippet(s.Text, metaSnippetLen))
	}
	return fmt.Sprintf("Meta-summary of %d summaries covering %d interactions: %s",
		len(items), count, strings.Join(parts, " | "))
}

// snippet collapses whitespace and truncates s to maxLen runes.
func snippet(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
