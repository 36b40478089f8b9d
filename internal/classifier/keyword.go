package classifier

import (
	"context"
	"strings"

	"doctag/internal/taxonomy"
)

type TierWeights struct {
	Strong float64
	Medium float64
	Weak   float64
}

func DefaultTierWeights() TierWeights {
	return TierWeights{Strong: 3.0, Medium: 1.5, Weak: 0.5}
}

// KeywordStrategy scores each category by the weighted number of its
// keywords present in the lowercased text. It never fails.
type KeywordStrategy struct {
	tax     *taxonomy.Taxonomy
	cal     Calibrator
	weights TierWeights
}

func NewKeywordStrategy(tax *taxonomy.Taxonomy, cal Calibrator, w TierWeights) *KeywordStrategy {
	return &KeywordStrategy{tax: tax, cal: cal, weights: w}
}

func (k *KeywordStrategy) Name() string { return StrategyKeyword }

// Scores returns the raw tally per category in taxonomy order. Categories
// without keywords are omitted.
func (k *KeywordStrategy) Scores(lowered string) []Score {
	out := make([]Score, 0, len(k.tax.IDs()))
	for _, c := range k.tax.Categories() {
		kw := c.Keywords
		if len(kw.Strong)+len(kw.Medium)+len(kw.Weak) == 0 {
			continue
		}
		s := k.weights.Strong*float64(countPresent(lowered, kw.Strong)) +
			k.weights.Medium*float64(countPresent(lowered, kw.Medium)) +
			k.weights.Weak*float64(countPresent(lowered, kw.Weak))
		out = append(out, Score{CategoryID: c.ID, Score: s})
	}
	return out
}

func (k *KeywordStrategy) Classify(_ context.Context, doc Document) (Outcome, error) {
	scores := k.Scores(doc.Lowered)
	best := 0.0
	for _, s := range scores {
		if s.Score > best {
			best = s.Score
		}
	}
	if best == 0 {
		def := k.tax.DefaultCategory().ID
		conf := clip01(k.cal.Thresholds.Low)
		return Outcome{CategoryID: def, Confidence: conf, TopK: []Score{{CategoryID: def, Score: conf}}}, nil
	}
	cands := make([]candidate, 0, len(scores))
	for _, s := range scores {
		cands = append(cands, candidate{id: s.CategoryID, raw: s.Score, weight: s.Score})
	}
	conf := k.cal.FromKeywordScore(best)
	top := rankTopK(k.tax, cands, conf, 3)
	return Outcome{CategoryID: top[0].CategoryID, Confidence: conf, TopK: top}, nil
}

func countPresent(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
