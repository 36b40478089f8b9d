// Package ml contains the text vectorizer, the linear classifier and the
// evaluation helpers used to train and serve document models.
package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

var ErrEmptyVocabulary = errors.New("empty vocabulary after document frequency pruning")

type VectorizerParams struct {
	NgramMin    int     `json:"ngram_min"`
	NgramMax    int     `json:"ngram_max"`
	MaxFeatures int     `json:"max_features"`
	MinDF       int     `json:"min_df"`
	MaxDF       float64 `json:"max_df"`
	SublinearTF bool    `json:"sublinear_tf"`
}

func DefaultVectorizerParams() VectorizerParams {
	return VectorizerParams{
		NgramMin:    1,
		NgramMax:    2,
		MaxFeatures: 5000,
		MinDF:       2,
		MaxDF:       0.8,
		SublinearTF: true,
	}
}

// SparseVector holds the non-zero entries of a feature vector, indices
// ascending.
type SparseVector struct {
	Indices []int
	Values  []float64
}

func (v SparseVector) Dot(dense []float64) float64 {
	var s float64
	for i, idx := range v.Indices {
		s += v.Values[i] * dense[idx]
	}
	return s
}

func (v SparseVector) SquaredNorm() float64 {
	var s float64
	for _, x := range v.Values {
		s += x * x
	}
	return s
}

// TfidfVectorizer maps space-separated token streams to l2-normalized
// TF-IDF vectors over word n-grams. A fitted vectorizer is immutable.
type TfidfVectorizer struct {
	Params     VectorizerParams `json:"params"`
	Vocabulary map[string]int   `json:"vocabulary"`
	IDF        []float64        `json:"idf"`
}

func NewTfidfVectorizer(p VectorizerParams) *TfidfVectorizer {
	if p.NgramMin <= 0 {
		p.NgramMin = 1
	}
	if p.NgramMax < p.NgramMin {
		p.NgramMax = p.NgramMin
	}
	if p.MinDF <= 0 {
		p.MinDF = 1
	}
	if p.MaxDF <= 0 || p.MaxDF > 1 {
		p.MaxDF = 1
	}
	return &TfidfVectorizer{Params: p}
}

func (v *TfidfVectorizer) Fitted() bool {
	return len(v.Vocabulary) > 0 && len(v.IDF) == len(v.Vocabulary)
}

func (v *TfidfVectorizer) VocabularySize() int { return len(v.Vocabulary) }

// Fit learns the vocabulary and inverse document frequencies from docs.
func (v *TfidfVectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return errors.New("fit vectorizer: no documents")
	}
	df := make(map[string]int)
	total := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, g := range v.analyze(d) {
			total[g]++
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			df[g]++
		}
	}

	n := len(docs)
	maxDocs := int(math.Floor(v.Params.MaxDF * float64(n)))
	if v.Params.MaxDF >= 1 {
		maxDocs = n
	}
	kept := make([]string, 0, len(df))
	for term, c := range df {
		if c < v.Params.MinDF || c > maxDocs {
			continue
		}
		kept = append(kept, term)
	}
	if len(kept) == 0 {
		return ErrEmptyVocabulary
	}
	if v.Params.MaxFeatures > 0 && len(kept) > v.Params.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if total[kept[i]] != total[kept[j]] {
				return total[kept[i]] > total[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.Params.MaxFeatures]
	}
	sort.Strings(kept)

	v.Vocabulary = make(map[string]int, len(kept))
	v.IDF = make([]float64, len(kept))
	for i, term := range kept {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
	return nil
}

// Transform vectorizes one document. Terms outside the vocabulary are
// ignored; a document with no known terms yields an empty vector.
func (v *TfidfVectorizer) Transform(doc string) (SparseVector, error) {
	if !v.Fitted() {
		return SparseVector{}, errors.New("vectorizer is not fitted")
	}
	counts := make(map[int]int)
	for _, g := range v.analyze(doc) {
		if idx, ok := v.Vocabulary[g]; ok {
			counts[idx]++
		}
	}
	out := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)
	var norm float64
	for _, idx := range out.Indices {
		tf := float64(counts[idx])
		if v.Params.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.IDF[idx]
		out.Values = append(out.Values, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range out.Values {
			out.Values[i] /= norm
		}
	}
	return out, nil
}

func (v *TfidfVectorizer) TransformAll(docs []string) ([]SparseVector, error) {
	out := make([]SparseVector, len(docs))
	for i, d := range docs {
		x, err := v.Transform(d)
		if err != nil {
			return nil, fmt.Errorf("transform doc %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

// analyze splits on whitespace, drops single-rune tokens and emits the
// configured n-gram range.
func (v *TfidfVectorizer) analyze(doc string) []string {
	fields := strings.Fields(doc)
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	out := make([]string, 0, len(tokens)*(v.Params.NgramMax-v.Params.NgramMin+1))
	for n := v.Params.NgramMin; n <= v.Params.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
