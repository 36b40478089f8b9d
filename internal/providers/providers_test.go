package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"doctag/internal/util"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock| openai:key1 |ollama:bge|")
	require.Len(t, refs, 3)
	require.Equal(t, ProviderRef{Raw: "openai:key1", Name: "openai", KeyAlias: "key1"}, refs[1])
	require.Equal(t, "ollama", refs[2].Name)
	require.Empty(t, ParseProviderList(""))
}

func TestClassifyError(t *testing.T) {
	cases := map[error]ErrorType{
		errors.New("insufficient_quota"):                  ErrorQuota,
		errors.New("429 too many requests"):               ErrorRate,
		errors.New("timeout awaiting headers"):            ErrorTransient,
		errors.New("bad request"):                         ErrorPermanent,
		fmt.Errorf("wrapped: %w", util.ErrRateLimited):    ErrorRate,
		fmt.Errorf("wrapped: %w", util.ErrQuotaExhausted): ErrorQuota,
	}
	for err, want := range cases {
		require.Equal(t, want, ClassifyError(err), err.Error())
	}
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestMockProviderSimilarity(t *testing.T) {
	p := NewMockProvider(128)
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"factura iva total pagar",
		"factura iva base imponible",
		"contrato arrendamiento clausula",
	}})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Len(t, vecs, 3)
	require.InDelta(t, 1.0, dot(vecs[0], vecs[0]), 1e-5)
	require.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

type failingProvider struct {
	err   error
	calls int
}

func (f *failingProvider) Embed(context.Context, EmbedRequest) ([][]float32, ProviderInfo, error) {
	f.calls++
	return nil, ProviderInfo{Name: "failing"}, f.err
}

func TestManagerFailoverAndCooldown(t *testing.T) {
	bad := &failingProvider{err: fmt.Errorf("upstream: %w", util.ErrRateLimited)}
	m := NewManagerWith(time.Minute,
		NamedEmbedProvider{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(16)},
		NamedEmbedProvider{Ref: ProviderRef{Raw: "remote", Name: "remote"}, Provider: bad},
	)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, info, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"hola"}})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Equal(t, 1, bad.calls)

	_, _, err = m.Embed(context.Background(), EmbedRequest{Inputs: []string{"hola"}})
	require.NoError(t, err)
	require.Equal(t, 1, bad.calls, "rate limited provider stays parked")

	now = now.Add(2 * time.Minute)
	_, _, err = m.Embed(context.Background(), EmbedRequest{Inputs: []string{"hola"}})
	require.NoError(t, err)
	require.Equal(t, 2, bad.calls)
}

func TestManagerEmpty(t *testing.T) {
	m, err := NewManager("", 16, time.Minute)
	require.NoError(t, err)
	require.Zero(t, m.Count())
	_, _, err = m.Embed(context.Background(), EmbedRequest{Inputs: []string{"x"}})
	require.Error(t, err)

	_, err = NewManager("nope", 16, time.Minute)
	require.Error(t, err)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		out := make([][]float32, len(body.Input))
		for i := range out {
			out[i] = []float32{1, 2, 3}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()
	t.Setenv("DOCTAG_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("DOCTAG_OLLAMA_EMBED_MODEL", "")

	p := NewOllamaEmbeddingProvider("")
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 2})
	require.NoError(t, err)
	require.Equal(t, "bge-m3", info.Model)
	require.Equal(t, [][]float32{{1, 2}, {1, 2}}, vecs)
}

func TestOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, _, err := NewOpenAIProvider("absent").Embed(context.Background(), EmbedRequest{Inputs: []string{"x"}})
	require.ErrorContains(t, err, "key missing")
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	require.Equal(t, []float32{1, 2}, matchDimension(src, 2))
	require.Equal(t, []float32{1, 2, 3, 0, 0}, matchDimension(src, 5))
	require.False(t, math.IsNaN(float64(normalize([]float32{0, 0})[0])))
}
