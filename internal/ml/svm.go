package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

type SVMParams struct {
	C             float64 `json:"c"`
	ClassWeight   string  `json:"class_weight"`
	MaxIter       int     `json:"max_iter"`
	Tolerance     float64 `json:"tolerance"`
	Seed          uint64  `json:"seed"`
	FitIntercept  bool    `json:"fit_intercept"`
	InterceptBias float64 `json:"intercept_scaling"`
}

func DefaultSVMParams() SVMParams {
	return SVMParams{
		C:             1.0,
		ClassWeight:   "balanced",
		MaxIter:       1000,
		Tolerance:     1e-3,
		Seed:          42,
		FitIntercept:  true,
		InterceptBias: 1.0,
	}
}

// LinearSVM is a one-vs-rest linear support vector classifier trained with
// dual coordinate descent on the squared hinge loss.
type LinearSVM struct {
	Params  SVMParams   `json:"params"`
	Classes []string    `json:"classes"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func NewLinearSVM(p SVMParams) *LinearSVM {
	if p.C <= 0 {
		p.C = 1
	}
	if p.MaxIter <= 0 {
		p.MaxIter = 1000
	}
	if p.Tolerance <= 0 {
		p.Tolerance = 1e-3
	}
	if p.InterceptBias <= 0 {
		p.InterceptBias = 1
	}
	return &LinearSVM{Params: p}
}

func (m *LinearSVM) Fitted() bool {
	return len(m.Classes) > 0 && len(m.Weights) == len(m.Classes) && len(m.Bias) == len(m.Classes)
}

// Fit trains one binary problem per class. Labels are encoded in sorted
// order, which becomes the model's label encoding.
func (m *LinearSVM) Fit(ctx context.Context, X []SparseVector, y []string, dim int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("fit svm: %d samples and %d labels", len(X), len(y))
	}
	if dim <= 0 {
		return errors.New("fit svm: feature dimension must be positive")
	}
	counts := make(map[string]int)
	for _, l := range y {
		counts[l]++
	}
	if len(counts) < 2 {
		return fmt.Errorf("fit svm: need at least two classes, got %d", len(counts))
	}
	classes := make([]string, 0, len(counts))
	for l := range counts {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	weight := make(map[string]float64, len(classes))
	for _, c := range classes {
		weight[c] = 1
		if m.Params.ClassWeight == "balanced" {
			weight[c] = float64(len(y)) / (float64(len(classes)) * float64(counts[c]))
		}
	}
	sampleC := make([]float64, len(y))
	for i, l := range y {
		sampleC[i] = m.Params.C * weight[l]
	}

	m.Classes = classes
	m.Weights = make([][]float64, len(classes))
	m.Bias = make([]float64, len(classes))
	for k, c := range classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		signs := make([]float64, len(y))
		for i, l := range y {
			signs[i] = -1
			if l == c {
				signs[i] = 1
			}
		}
		w, b := m.fitBinary(X, signs, sampleC, dim, uint64(k))
		m.Weights[k] = w
		m.Bias[k] = b
	}
	return nil
}

func (m *LinearSVM) fitBinary(X []SparseVector, signs, sampleC []float64, dim int, stream uint64) ([]float64, float64) {
	n := len(X)
	w := make([]float64, dim)
	var b float64
	bias := 0.0
	if m.Params.FitIntercept {
		bias = m.Params.InterceptBias
	}
	alpha := make([]float64, n)
	diag := make([]float64, n)
	qbar := make([]float64, n)
	for i := range X {
		diag[i] = 1 / (2 * sampleC[i])
		qbar[i] = X[i].SquaredNorm() + bias*bias + diag[i]
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(m.Params.Seed, stream))

	for iter := 0; iter < m.Params.MaxIter; iter++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		maxPG, minPG := math.Inf(-1), math.Inf(1)
		for _, i := range order {
			yi := signs[i]
			g := yi*(X[i].Dot(w)+b*bias) - 1 + diag[i]*alpha[i]
			pg := g
			if alpha[i] == 0 && g > 0 {
				pg = 0
			}
			maxPG = math.Max(maxPG, pg)
			minPG = math.Min(minPG, pg)
			if math.Abs(pg) < 1e-12 {
				continue
			}
			old := alpha[i]
			alpha[i] = math.Max(alpha[i]-g/qbar[i], 0)
			d := (alpha[i] - old) * yi
			for j, idx := range X[i].Indices {
				w[idx] += d * X[i].Values[j]
			}
			b += d * bias
		}
		if maxPG-minPG < m.Params.Tolerance {
			break
		}
	}
	return w, b * bias
}

// DecisionFunction returns one score per class in label-encoding order.
func (m *LinearSVM) DecisionFunction(x SparseVector) ([]float64, error) {
	if !m.Fitted() {
		return nil, errors.New("classifier is not fitted")
	}
	out := make([]float64, len(m.Classes))
	for k := range m.Classes {
		if len(x.Indices) > 0 && x.Indices[len(x.Indices)-1] >= len(m.Weights[k]) {
			return nil, fmt.Errorf("feature index %d outside model dimension %d", x.Indices[len(x.Indices)-1], len(m.Weights[k]))
		}
		out[k] = x.Dot(m.Weights[k]) + m.Bias[k]
	}
	return out, nil
}

// Predict returns the class with the highest decision score; ties go to the
// earlier class in the label encoding.
func (m *LinearSVM) Predict(x SparseVector) (string, error) {
	scores, err := m.DecisionFunction(x)
	if err != nil {
		return "", err
	}
	return m.Classes[argmax(scores)], nil
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
