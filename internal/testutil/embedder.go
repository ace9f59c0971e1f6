package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// FakeEmbedder produces small deterministic embeddings derived from the input
// text, so vector tests get stable nearest-neighbor ordering without calling
// a real provider.
type FakeEmbedder struct {
	// Dim is the embedding dimensionality. Zero means 3.
	Dim int

	// Err, when set, is returned by every Embed call.
	Err error

	calls atomic.Int64
}

// Embed returns a unit-length vector seeded by a hash of text.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}

	dim := f.Dim
	if dim == 0 {
		dim = 3
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	var norm float32
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		inv := 1 / float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Calls reports how many times Embed ran.
func (f *FakeEmbedder) Calls() int64 { return f.calls.Load() }
