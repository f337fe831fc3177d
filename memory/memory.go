package memory

import (
	"context"
	"time"
)

// Key identifies one persisted memory document: one owner, one calendar day.
type Key struct {
	Owner string
	Day   string // 2006-01-02
}

// DayLayout is the layout of Key.Day.
const DayLayout = "2006-01-02"

// KeyFor returns the key for owner on the day containing t (UTC).
func KeyFor(owner string, t time.Time) Key {
	return Key{Owner: owner, Day: t.UTC().Format(DayLayout)}
}

// State is the persisted form of a Manager.
type State struct {
	Interactions       []Interaction `json:"interactions"`
	Summaries          []Summary     `json:"summaries"`
	TotalCount         int           `json:"totalCount"`
	LastUpdated        time.Time     `json:"lastUpdated"`
	SignatureAlgorithm string        `json:"signatureAlgorithm,omitempty"`
}

// Storage persists Manager state.
// Implementations: inmem.Storage (tests), file.Storage (JSON per owner per
// day), sqlite.Storage (single database).
type Storage interface {
	// Load returns the state stored under key, or (nil, nil) if none exists.
	Load(ctx context.Context, key Key) (*State, error)

	// Save replaces the state stored under key.
	Save(ctx context.Context, key Key, state *State) error
}

// SummaryKind tells a Summarizer what it is compressing.
type SummaryKind string

const (
	// KindTranscript is a block of raw interactions rendered as "role: text" lines.
	KindTranscript SummaryKind = "transcript"

	// KindMeta is a block of earlier summaries.
	KindMeta SummaryKind = "meta"
)

// SummaryRequest is the input to a Summarizer.
type SummaryRequest struct {
	Kind SummaryKind
	Text string
	// Count is the number of interactions the text represents.
	Count int
}

// Summarizer compresses text into a short summary.
// A failing Summarizer never fails the Manager: a local summary is used instead.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, req SummaryRequest) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	return f(ctx, req)
}

// Index keeps archived interactions searchable after they are folded into
// summaries. Implementations: chromem.Index.
type Index interface {
	Add(ctx context.Context, owner string, items []Interaction) error
	Search(ctx context.Context, owner string, query string, limit int) ([]Interaction, error)
}

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing, offline use).
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
