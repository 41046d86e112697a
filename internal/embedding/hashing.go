package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultDimension matches the sentence-transformer models the service is
// usually deployed with.
const DefaultDimension = 384

// Character n-gram lengths hashed alongside whole words.
var ngramSizes = []int{3, 4}

// HashingModel is a deterministic feature-hashing model. Each word and each
// character 3- and 4-gram of the word (with boundary markers) is hashed into
// one of dim signed buckets, so inflections and shared stems overlap.
// It needs no network and backs offline runs and tests.
type HashingModel struct {
	dim int
}

// NewHashing returns a hashing model with dim buckets.
func NewHashing(dim int) *HashingModel {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashingModel{dim: dim}
}

// Dimension returns the bucket count.
func (m *HashingModel) Dimension() int { return m.dim }

// Embed hashes the features of each text.
func (m *HashingModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dim)
		for _, tok := range tokenize(text) {
			m.add(v, "w:"+tok)
			padded := []rune("^" + tok + "$")
			for _, n := range ngramSizes {
				for j := 0; j+n <= len(padded); j++ {
					m.add(v, "g:"+string(padded[j:j+n]))
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

func (m *HashingModel) add(v []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	v[sum%uint64(m.dim)] += sign
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
