package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultHashDimensions is the vector size of HashEmbedder when none is given
const DefaultHashDimensions = 256

var hashTokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

var hashStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "it": true, "its": true,
	"to": true, "of": true, "and": true, "or": true, "in": true, "on": true, "for": true, "with": true,
	"this": true, "that": true, "my": true, "i": true, "be": true, "so": true, "very": true, "too": true,
}

// HashEmbedder is a deterministic bag-of-words embedder that needs no network.
// Texts sharing most content words land close together; it is meant for offline
// runs and tests, not for semantic paraphrase matching.
type HashEmbedder struct {
	dim int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder returns a HashEmbedder producing vectors of length dim (0 = default)
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Name returns "hash/<dim>"
func (h *HashEmbedder) Name() string {
	return fmt.Sprintf("%s/%d", ProviderHash, h.dim)
}

// Dimensions returns the vector length
func (h *HashEmbedder) Dimensions() int {
	return h.dim
}

// Embed hashes content words and adjacent word pairs into a unit vector.
// Text without content words yields the zero vector, which never matches.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, embedErr(h.Name(), err)
	}

	var words []string
	for _, w := range hashTokenSplit.Split(strings.ToLower(text), -1) {
		if w != "" && !hashStopwords[w] {
			words = append(words, w)
		}
	}

	vec := make([]float32, h.dim)
	for i, w := range words {
		h.add(vec, w, 1.0)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *HashEmbedder) add(vec []float32, token string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(token))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
