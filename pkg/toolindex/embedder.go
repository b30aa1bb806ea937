package toolindex

import (
	"context"
	"hash/fnv"
	"strings"
)

// HashEmbedder is a deterministic reference EmbeddingService: it feature-
// hashes a text's tokens into a fixed-width float vector. It is not a
// real semantic embedding, but it's deterministic and network-free, which
// is exactly enough to exercise the retrieval and budgeting logic in
// tests without standing up a real embedding backend.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder builds a HashEmbedder producing vectors of the given
// width.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{Dimensions: dimensions}
}

func (h *HashEmbedder) Healthy(ctx context.Context) bool { return true }

// Embed hashes each whitespace-separated token of text into a bucket of
// the output vector, incrementing that bucket — a standard feature-
// hashing ("hashing trick") embedding.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.Dimensions)
	if h.Dimensions == 0 {
		return vec, nil
	}

	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		bucket := int(hasher.Sum32()) % h.Dimensions
		if bucket < 0 {
			bucket += h.Dimensions
		}
		vec[bucket]++
	}
	return vec, nil
}
