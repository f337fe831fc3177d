// Package chromem keeps folded interactions searchable with chromem-go, a
// pure Go embedded vector database.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/memory"
)

// Index implements memory.Index. Each owner gets its own collection.
type Index struct {
	db          *chromem.DB
	embedder    memory.Embedder
	logger      *zap.Logger
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an in-process index. A non-empty path persists the database
// under that directory (gzip-compressed when compress is set).
func New(embedder memory.Embedder, path string, compress bool, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chromem index: embedder is required")
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", path, err)
		}
	}

	idx := &Index{
		db:          db,
		embedder:    embedder,
		logger:      zap.NewNop(),
		collections: make(map[string]*chromem.Collection),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

func collectionName(owner string) string {
	if owner == "" {
		return "memory_global"
	}
	return "memory_" + owner
}

// collection returns the collection for owner, creating it on first use.
func (i *Index) collection(owner string) (*chromem.Collection, error) {
	i.mu.RLock()
	col, ok := i.collections[owner]
	i.mu.RUnlock()
	if ok {
		return col, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if col, ok := i.collections[owner]; ok {
		return col, nil
	}

	// Embeddings are always supplied, so no embedding func is needed.
	col, err := i.db.GetOrCreateCollection(collectionName(owner), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	i.collections[owner] = col
	return col, nil
}

// Add embeds and stores items under owner.
func (i *Index) Add(ctx context.Context, owner string, items []memory.Interaction) error {
	if len(items) == 0 {
		return nil
	}
	col, err := i.collection(owner)
	if err != nil {
		return err
	}

	for _, it := range items {
		vec, err := i.embedder.Embed(ctx, it.Text)
		if err != nil {
			return fmt.Errorf("embed interaction %s: %w", it.ID, err)
		}
		meta, err := encodeMetadata(it)
		if err != nil {
			return err
		}
		if err := col.AddDocument(ctx, chromem.Document{
			ID:        it.ID,
			Content:   it.Text,
			Embedding: vec,
			Metadata:  meta,
		}); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
	}

	i.logger.Debug("indexed interactions",
		zap.String("owner", owner),
		zap.Int("count", len(items)),
		zap.Int("collection_size", col.Count()))
	return nil
}

// Search returns up to limit interactions most similar to query.
func (i *Index) Search(ctx context.Context, owner string, query string, limit int) ([]memory.Interaction, error) {
	col, err := i.collection(owner)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size.
	n := limit
	if size := col.Count(); size < n {
		n = size
	}
	if n <= 0 {
		return nil, nil
	}

	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]memory.Interaction, 0, len(results))
	for _, r := range results {
		it, err := decodeResult(r)
		if err != nil {
			i.logger.Warn("skipping undecodable index entry", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Count returns how many interactions are indexed for owner.
func (i *Index) Count(owner string) int {
	col, err := i.collection(owner)
	if err != nil {
		return 0
	}
	return col.Count()
}

func encodeMetadata(it memory.Interaction) (map[string]string, error) {
	meta := map[string]string{
		"role":      string(it.Role),
		"timestamp": it.Timestamp.Format(time.RFC3339Nano),
		"hash":      it.Hash,
	}
	if len(it.Metadata) > 0 {
		b, err := json.Marshal(it.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for %s: %w", it.ID, err)
		}
		meta["metadata"] = string(b)
	}
	return meta, nil
}

func decodeResult(r chromem.Result) (memory.Interaction, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Metadata["timestamp"])
	if err != nil {
		return memory.Interaction{}, fmt.Errorf("parse timestamp: %w", err)
	}
	it := memory.Interaction{
		ID:        r.ID,
		Role:      core.Role(r.Metadata["role"]),
		Text:      r.Content,
		Timestamp: ts.UTC(),
		Hash:      r.Metadata["hash"],
	}
	if raw := r.Metadata["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &it.Metadata); err != nil {
			return memory.Interaction{}, fmt.Errorf("parse metadata: %w", err)
		}
	}
	return it, nil
}
