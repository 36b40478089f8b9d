package classifier

import (
	"context"
	"sort"

	"doctag/internal/taxonomy"
)

const (
	StrategyKeyword   = "keyword"
	StrategyLinear    = "tfidf_svm"
	StrategyEmbedding = "embedding"
	StrategyShortText = "short_text"
)

// Document is one piece of text prepared for the strategies.
type Document struct {
	// Lowered keeps phrases and punctuation for substring matching.
	Lowered string
	// Normalized is the stop-word-free token stream.
	Normalized string
}

type Score struct {
	CategoryID string  `json:"category_id"`
	Score      float64 `json:"score"`
}

type Outcome struct {
	CategoryID string
	Confidence float64
	TopK       []Score
}

// Strategy turns a prepared document into a category with confidence.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, doc Document) (Outcome, error)
}

// Chain is the set of strategies a service can choose from. Keyword is
// mandatory; Model and Embedding are optional.
type Chain struct {
	Model     Strategy
	Embedding Strategy
	Keyword   Strategy
}

// ResolveStrategy picks the primary strategy for a call: the trained model
// when an artifact is available, then embeddings when configured, then
// keywords.
func ResolveStrategy(artifactAvailable bool, c Chain) Strategy {
	switch {
	case artifactAvailable && c.Model != nil:
		return c.Model
	case c.Embedding != nil:
		return c.Embedding
	default:
		return c.Keyword
	}
}

type candidate struct {
	id     string
	raw    float64
	weight float64
}

// rankTopK orders candidates by raw score, ties by taxonomy order, and
// assigns winnerConf to the first. The remaining confidence mass
// (1 - winnerConf) is shared among the runners-up in proportion to their
// non-negative weights, so the list is descending and sums to at most one.
func rankTopK(tax *taxonomy.Taxonomy, cands []candidate, winnerConf float64, k int) []Score {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].raw != cands[j].raw {
			return cands[i].raw > cands[j].raw
		}
		return tax.Order(cands[i].id) < tax.Order(cands[j].id)
	})
	if len(cands) == 0 {
		return nil
	}
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]Score, 0, k)
	out = append(out, Score{CategoryID: cands[0].id, Score: winnerConf})
	var mass float64
	for _, c := range cands[1:] {
		if c.weight > 0 {
			mass += c.weight
		}
	}
	rest := clip01(1 - winnerConf)
	for _, c := range cands[1:k] {
		share := 0.0
		if mass > 0 && c.weight > 0 {
			share = rest * c.weight / mass
		}
		if share > winnerConf {
			share = winnerConf
		}
		out = append(out, Score{CategoryID: c.id, Score: share})
	}
	return out
}
