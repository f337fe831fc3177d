// Package anthropic summarizes folded memory blocks with Claude.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/memory"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens caps the summary length.
	DefaultMaxTokens = 512
)

const transcriptPrompt = `You compress conversation history for an assistant's long-term memory.
Summarize the transcript in at most five sentences. Keep names, decisions, open questions and facts the user stated about themselves. Reply with the summary only.`

const metaPrompt = `You compress earlier conversation summaries for an assistant's long-term memory.
Merge the summaries into one, at most six sentences, oldest first. Keep decisions and durable facts; drop repetition. Reply with the summary only.`

// MessageCreator is the subset of the Anthropic client used here.
// *anthropic.MessageService satisfies it.
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config configures a Summarizer.
type Config struct {
	Model     string
	MaxTokens int64
	Logger    *zap.Logger
}

// Summarizer implements memory.Summarizer.
type Summarizer struct {
	messages  MessageCreator
	model     string
	maxTokens int64
	logger    *zap.Logger
}

var _ memory.Summarizer = (*Summarizer)(nil)

// New wraps an existing message service.
func New(messages MessageCreator, cfg Config) *Summarizer {
	s := &Summarizer{
		messages:  messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// NewFromAPIKey builds a client for apiKey. An empty key falls back to the
// ANTHROPIC_API_KEY environment variable read by the SDK.
func NewFromAPIKey(apiKey string, cfg Config) *Summarizer {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return New(&client.Messages, cfg)
}

// Summarize asks the model to compress req.Text.
func (s *Summarizer) Summarize(ctx context.Context, req memory.SummaryRequest) (string, error) {
	system := transcriptPrompt
	label := "Transcript"
	if req.Kind == memory.KindMeta {
		system = metaPrompt
		label = "Summaries"
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("%s (%d interactions):\n\n%s", label, req.Count, req.Text))),
		},
	}

	resp, err := s.messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("claude returned no text (stop reason %q)", resp.StopReason)
	}

	s.logger.Debug("summary generated",
		zap.String("kind", string(req.Kind)),
		zap.Int("count", req.Count),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))
	return text, nil
}
