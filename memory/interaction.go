package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

// Input is what callers hand to AddInteraction.
type Input struct {
	Role      core.Role
	Text      string
	Timestamp time.Time // zero means now
	Metadata  map[string]any
}

// Interaction is one remembered turn. It is immutable once created.
type Interaction struct {
	ID        string         `json:"id"`
	Role      core.Role      `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Hash      string         `json:"hash"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Range is the span of interactions a Summary stands for.
type Range struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Count     int       `json:"count"`
	MetaLevel bool      `json:"metaLevel,omitempty"`
}

// Summary is a compressed block of interactions, or of earlier summaries
// when Range.MetaLevel is set.
type Summary struct {
	Range     Range     `json:"range"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
}

func newInteraction(in Input, now time.Time) Interaction {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	it := Interaction{
		ID:        uuid.New().String(),
		Role:      in.Role,
		Text:      in.Text,
		Timestamp: normalizeTime(ts),
		Metadata:  copyMetadata(in.Metadata),
	}
	it.Hash = it.ComputeHash()
	return it
}

// ComputeHash returns the sha256 over role, text, timestamp and metadata.
func (it Interaction) ComputeHash() string {
	return digest(string(it.Role), it.Text, it.Timestamp.Format(time.RFC3339Nano), it.Metadata)
}

// Line renders the interaction as a transcript line.
func (it Interaction) Line() string {
	return fmt.Sprintf("%s: %s", it.Role, it.Text)
}

// ComputeHash returns the sha256 over range, text and timestamp.
func (s Summary) ComputeHash() string {
	return digest(
		s.Range.Start.Format(time.RFC3339Nano),
		s.Range.End.Format(time.RFC3339Nano),
		s.Range.Count,
		s.Range.MetaLevel,
		s.Text,
		s.Timestamp.Format(time.RFC3339Nano),
	)
}

// digest hashes the JSON encoding of parts. encoding/json sorts map keys,
// which keeps metadata hashing stable across a save/load cycle.
func digest(parts ...any) string {
	b, err := json.Marshal(parts)
	if err != nil {
		b = []byte(fmt.Sprint(parts...))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalizeTime drops the monotonic reading and pins UTC so timestamps
// compare equal after a JSON round trip.
func normalizeTime(t time.Time) time.Time {
	return t.Round(0).UTC()
}

func copyMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// transcript joins interactions as "role: text" lines.
func transcript(items []Interaction) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.Line()
	}
	return strings.Join(lines, "\n")
}
