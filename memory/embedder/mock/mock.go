// Package mock provides a deterministic offline embedder.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector size used by New.
const DefaultDimensions = 256

// Embedder hashes lowercase word tokens into a fixed-size vector (feature
// hashing). Texts sharing words get similar vectors, which is enough for
// recall in tests and offline use.
type Embedder struct {
	dimensions int
}

// New creates an embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates an embedder producing vectors of size dims.
func NewWithDimensions(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed returns the unit-length token hash vector of text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(e.dimensions)] += sign
	}
	if len(tokens) == 0 {
		// chromem-go rejects zero vectors.
		vec[0] = 1
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
