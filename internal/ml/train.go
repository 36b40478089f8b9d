package ml

import (
	"context"
	"errors"
	"fmt"
)

// Model couples a fitted vectorizer with the classifier trained on its
// output. Callers feed it normalized text.
type Model struct {
	Vectorizer *TfidfVectorizer `json:"vectorizer"`
	Classifier *LinearSVM       `json:"classifier"`
}

func (m *Model) Ready() bool {
	return m != nil && m.Vectorizer != nil && m.Classifier != nil && m.Vectorizer.Fitted() && m.Classifier.Fitted()
}

// Scores returns the decision score per class in label-encoding order.
func (m *Model) Scores(normalized string) ([]float64, error) {
	if !m.Ready() {
		return nil, errors.New("model is not ready")
	}
	x, err := m.Vectorizer.Transform(normalized)
	if err != nil {
		return nil, err
	}
	return m.Classifier.DecisionFunction(x)
}

func (m *Model) Predict(normalized string) (string, error) {
	scores, err := m.Scores(normalized)
	if err != nil {
		return "", err
	}
	return m.Classifier.Classes[argmax(scores)], nil
}

func (m *Model) PredictAll(ctx context.Context, docs []string) ([]string, error) {
	out := make([]string, len(docs))
	for i, d := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p, err := m.Predict(d)
		if err != nil {
			return nil, fmt.Errorf("predict doc %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

type TrainParams struct {
	Vectorizer VectorizerParams `json:"vectorizer"`
	SVM        SVMParams        `json:"svm"`
}

func DefaultTrainParams() TrainParams {
	return TrainParams{Vectorizer: DefaultVectorizerParams(), SVM: DefaultSVMParams()}
}

// Dataset is a column view over labeled, already normalized documents.
type Dataset struct {
	Texts  []string
	Labels []string
}

func (d Dataset) Len() int { return len(d.Texts) }

// Subset returns the rows at idx, in idx order.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{Texts: make([]string, len(idx)), Labels: make([]string, len(idx))}
	for i, j := range idx {
		out.Texts[i] = d.Texts[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

type TrainResult struct {
	Model *Model
	Train Evaluation
	Val   Evaluation
	Test  Evaluation
}

// Train fits the vectorizer and classifier on train and evaluates on every
// non-empty partition.
func Train(ctx context.Context, train, val, test Dataset, p TrainParams) (TrainResult, error) {
	if train.Len() == 0 {
		return TrainResult{}, errors.New("train: empty training set")
	}
	vec := NewTfidfVectorizer(p.Vectorizer)
	if err := vec.Fit(train.Texts); err != nil {
		return TrainResult{}, fmt.Errorf("fit vectorizer: %w", err)
	}
	X, err := vec.TransformAll(train.Texts)
	if err != nil {
		return TrainResult{}, err
	}
	clf := NewLinearSVM(p.SVM)
	if err := clf.Fit(ctx, X, train.Labels, vec.VocabularySize()); err != nil {
		return TrainResult{}, fmt.Errorf("fit classifier: %w", err)
	}
	model := &Model{Vectorizer: vec, Classifier: clf}

	res := TrainResult{Model: model}
	for _, part := range []struct {
		data Dataset
		dst  *Evaluation
	}{{train, &res.Train}, {val, &res.Val}, {test, &res.Test}} {
		if part.data.Len() == 0 {
			continue
		}
		pred, err := model.PredictAll(ctx, part.data.Texts)
		if err != nil {
			return TrainResult{}, err
		}
		*part.dst = Evaluate(part.data.Labels, pred, clf.Classes)
	}
	return res, nil
}
