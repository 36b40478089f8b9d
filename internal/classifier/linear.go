package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"doctag/internal/artifact"
	"doctag/internal/taxonomy"
)

var ErrNoFeatures = errors.New("text shares no features with the model vocabulary")

// LinearModelStrategy predicts with a trained artifact and calibrates the
// margin between the two best decision scores.
type LinearModelStrategy struct {
	tax      *taxonomy.Taxonomy
	cal      Calibrator
	artifact *artifact.Artifact
}

func NewLinearModelStrategy(tax *taxonomy.Taxonomy, cal Calibrator, a *artifact.Artifact) *LinearModelStrategy {
	return &LinearModelStrategy{tax: tax, cal: cal, artifact: a}
}

func (l *LinearModelStrategy) Name() string { return StrategyLinear }

func (l *LinearModelStrategy) Classify(ctx context.Context, doc Document) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	m := l.artifact.Model
	if !m.Ready() {
		return Outcome{}, errors.New("artifact model not ready")
	}
	x, err := m.Vectorizer.Transform(doc.Normalized)
	if err != nil {
		return Outcome{}, fmt.Errorf("vectorize: %w", err)
	}
	if len(x.Indices) == 0 {
		return Outcome{}, ErrNoFeatures
	}
	scores, err := m.Classifier.DecisionFunction(x)
	if err != nil {
		return Outcome{}, fmt.Errorf("decision function: %w", err)
	}
	classes := m.Classifier.Classes

	top, second := 0, -1
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[top] {
			second, top = top, i
		} else if second < 0 || scores[i] > scores[second] {
			second = i
		}
	}
	winner := classes[top]
	if !l.tax.Has(winner) {
		return Outcome{}, fmt.Errorf("model predicted %q which is not in the taxonomy", winner)
	}
	margin := 0.0
	if second >= 0 {
		margin = scores[top] - scores[second]
	}
	conf := l.cal.FromMargin(margin)

	cands := make([]candidate, 0, len(classes))
	for i, c := range classes {
		if !l.tax.Has(c) {
			continue
		}
		cands = append(cands, candidate{id: c, raw: scores[i], weight: math.Exp(scores[i] - scores[top])})
	}
	ranked := rankTopK(l.tax, cands, conf, 3)
	return Outcome{CategoryID: ranked[0].CategoryID, Confidence: conf, TopK: ranked}, nil
}
