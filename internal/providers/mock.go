package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider embeds text by hashing its tokens into a fixed number of
// buckets. Texts that share words get similar vectors, which is enough for
// offline runs and tests.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 256
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-hash-%d", m.dimension(req)), Key: "mock"}
	if err := ctx.Err(); err != nil {
		return nil, info, err
	}
	dim := m.dimension(req)
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, hashedVector(input, dim))
	}
	return vectors, info, nil
}

func (m *MockProvider) dimension(req EmbedRequest) int {
	if req.Dimension > 0 {
		return req.Dimension
	}
	return m.dim
}

func hashedVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(input)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[(sum>>1)%uint64(dim)] += sign
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
