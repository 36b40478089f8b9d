package ml

import "sort"

type ClassReport struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type Evaluation struct {
	Accuracy   float64                `json:"accuracy"`
	F1Macro    float64                `json:"f1_macro"`
	F1Weighted float64                `json:"f1_weighted"`
	Labels     []string               `json:"labels"`
	Confusion  [][]int                `json:"confusion_matrix"`
	PerClass   map[string]ClassReport `json:"per_class"`
	Samples    int                    `json:"samples"`
}

// SplitMetrics is the summary recorded per partition in artifact metadata.
type SplitMetrics struct {
	Accuracy   float64 `json:"accuracy"`
	F1Macro    float64 `json:"f1_macro"`
	F1Weighted float64 `json:"f1_weighted"`
}

func (e Evaluation) Summary() SplitMetrics {
	return SplitMetrics{Accuracy: e.Accuracy, F1Macro: e.F1Macro, F1Weighted: e.F1Weighted}
}

// Evaluate compares predictions to ground truth. labels fixes the row and
// column order of the confusion matrix; labels seen in the data but missing
// from it are appended in sorted order.
func Evaluate(yTrue, yPred []string, labels []string) Evaluation {
	labels = mergeLabels(labels, yTrue, yPred)
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	n := len(yTrue)
	if len(yPred) < n {
		n = len(yPred)
	}
	correct := 0
	for i := 0; i < n; i++ {
		cm[idx[yTrue[i]]][idx[yPred[i]]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	ev := Evaluation{
		Labels:    labels,
		Confusion: cm,
		PerClass:  make(map[string]ClassReport, len(labels)),
		Samples:   n,
	}
	if n == 0 {
		return ev
	}
	ev.Accuracy = float64(correct) / float64(n)

	var macro, weighted float64
	present := 0
	for i, l := range labels {
		tp := cm[i][i]
		var colSum, rowSum int
		for j := range labels {
			colSum += cm[j][i]
			rowSum += cm[i][j]
		}
		r := ClassReport{Support: rowSum}
		if colSum > 0 {
			r.Precision = float64(tp) / float64(colSum)
		}
		if rowSum > 0 {
			r.Recall = float64(tp) / float64(rowSum)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		ev.PerClass[l] = r
		if rowSum > 0 || colSum > 0 {
			macro += r.F1
			present++
		}
		weighted += r.F1 * float64(rowSum)
	}
	if present > 0 {
		ev.F1Macro = macro / float64(present)
	}
	ev.F1Weighted = weighted / float64(n)
	return ev
}

// WeakCategories lists labels with support whose F1 is below threshold,
// weakest first.
func (e Evaluation) WeakCategories(threshold float64) []string {
	out := make([]string, 0)
	for _, l := range e.Labels {
		r := e.PerClass[l]
		if r.Support > 0 && r.F1 < threshold {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return e.PerClass[out[i]].F1 < e.PerClass[out[j]].F1 })
	return out
}

func mergeLabels(labels []string, sets ...[]string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	var extra []string
	for _, s := range sets {
		for _, l := range s {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
