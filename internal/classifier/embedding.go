package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"doctag/internal/providers"
	"doctag/internal/taxonomy"
)

var ErrLowSimilarity = errors.New("no category prototype is similar enough")

type labelVector struct {
	id     string
	vector []float32
}

// EmbeddingStrategy compares the document embedding with one prototype
// embedding per category, built from the category's name, description and
// keywords on first use.
type EmbeddingStrategy struct {
	tax      *taxonomy.Taxonomy
	cal      Calibrator
	provider providers.EmbeddingProvider
	prepare  func(string) string

	// MinSimilarity rejects documents unlike every prototype.
	MinSimilarity float64
	// MarginScale stretches cosine gaps onto the margin curve's range.
	MarginScale float64

	mu     sync.Mutex
	labels []labelVector
}

func NewEmbeddingStrategy(tax *taxonomy.Taxonomy, cal Calibrator, p providers.EmbeddingProvider, prepare func(string) string) *EmbeddingStrategy {
	if prepare == nil {
		prepare = strings.ToLower
	}
	return &EmbeddingStrategy{
		tax:           tax,
		cal:           cal,
		provider:      p,
		prepare:       prepare,
		MinSimilarity: 0.15,
		MarginScale:   10,
	}
}

func (e *EmbeddingStrategy) Name() string { return StrategyEmbedding }

func (e *EmbeddingStrategy) prototypes(ctx context.Context) ([]labelVector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.labels != nil {
		return e.labels, nil
	}
	def := e.tax.DefaultCategory().ID
	var ids, texts []string
	for _, c := range e.tax.Categories() {
		if c.ID == def {
			continue
		}
		parts := []string{c.Name, c.Description}
		parts = append(parts, c.Keywords.Strong...)
		parts = append(parts, c.Keywords.Medium...)
		parts = append(parts, c.Keywords.Weak...)
		ids = append(ids, c.ID)
		texts = append(texts, e.prepare(strings.Join(parts, " ")))
	}
	vecs, _, err := e.provider.Embed(ctx, providers.EmbedRequest{Operation: "category_prototypes", Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("embed prototypes: %w", err)
	}
	if len(vecs) != len(ids) {
		return nil, fmt.Errorf("embed prototypes: got %d vectors for %d categories", len(vecs), len(ids))
	}
	labels := make([]labelVector, len(ids))
	for i := range ids {
		labels[i] = labelVector{id: ids[i], vector: vecs[i]}
	}
	e.labels = labels
	return labels, nil
}

func (e *EmbeddingStrategy) Classify(ctx context.Context, doc Document) (Outcome, error) {
	labels, err := e.prototypes(ctx)
	if err != nil {
		return Outcome{}, err
	}
	vecs, _, err := e.provider.Embed(ctx, providers.EmbedRequest{Operation: "classify", Inputs: []string{doc.Normalized}})
	if err != nil {
		return Outcome{}, fmt.Errorf("embed document: %w", err)
	}
	if len(vecs) != 1 {
		return Outcome{}, fmt.Errorf("embed document: got %d vectors", len(vecs))
	}

	cands := make([]candidate, 0, len(labels))
	best, second := math.Inf(-1), math.Inf(-1)
	for _, l := range labels {
		sim := cosineSimilarity(vecs[0], l.vector)
		if sim > best {
			second, best = best, sim
		} else if sim > second {
			second = sim
		}
		cands = append(cands, candidate{id: l.id, raw: sim, weight: math.Max(sim, 0)})
	}
	if best < e.MinSimilarity {
		return Outcome{}, fmt.Errorf("%w: best %.3f", ErrLowSimilarity, best)
	}
	margin := 0.0
	if !math.IsInf(second, -1) {
		margin = (best - second) * e.MarginScale
	}
	conf := e.cal.FromMargin(margin)
	ranked := rankTopK(e.tax, cands, conf, 3)
	return Outcome{CategoryID: ranked[0].CategoryID, Confidence: conf, TopK: ranked}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
