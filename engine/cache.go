package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/schema"
)

// SchemaCache remembers successfully planned schemas so identical planning
// requests skip the round trip. Fallback schemas are never cached.
type SchemaCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewSchemaCache creates a cache holding up to maxEntries schemas for ttl.
// A zero ttl keeps entries until they are evicted.
func NewSchemaCache(maxEntries int64, ttl time.Duration) (*SchemaCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaCache{cache: c, ttl: ttl}, nil
}

func (c *SchemaCache) get(key string) (schema.Schema, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return schema.Schema{}, false
	}
	s, ok := v.(schema.Schema)
	return s, ok
}

func (c *SchemaCache) set(key string, s schema.Schema) {
	if c.ttl > 0 {
		c.cache.SetWithTTL(key, s, 1, c.ttl)
	} else {
		c.cache.Set(key, s, 1)
	}
	// Sets are buffered; wait so the next identical request hits.
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *SchemaCache) Close() {
	c.cache.Close()
}

// planKey hashes everything that shapes a planning request.
func planKey(agentType core.AgentType, query string, hints Hints, ctx Context) (string, error) {
	b, err := json.Marshal(struct {
		AgentType core.AgentType `json:"agentType"`
		Query     string         `json:"query"`
		Hints     Hints          `json:"hints"`
		Context   Context        `json:"context"`
	}{agentType, query, hints, ctx})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
