package ledger

import (
	"iter"
	"math"
	"sort"
)

type ConfidenceBuckets struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type PredictionStats struct {
	Total             int               `json:"total_predictions"`
	ByCategory        map[string]int    `json:"by_type"`
	ByClassifier      map[string]int    `json:"by_classifier"`
	ByConfidence      ConfidenceBuckets `json:"by_confidence"`
	AvgConfidence     float64           `json:"avg_confidence"`
	AvgProcessingTime float64           `json:"avg_processing_time_sec"`
	Errors            int               `json:"errors"`
}

// ComputePredictionStats aggregates a prediction log. Confidence buckets
// are low below 0.6, medium below 0.8 and high otherwise.
func ComputePredictionStats(seq iter.Seq2[PredictionEntry, error]) (PredictionStats, error) {
	st := PredictionStats{ByCategory: map[string]int{}, ByClassifier: map[string]int{}}
	var confSum, timeSum float64
	timed := 0
	for e, err := range seq {
		if err != nil {
			return st, err
		}
		if e.IsError() {
			st.Errors++
			continue
		}
		st.Total++
		cat := e.Predicted
		if cat == "" {
			cat = "unknown"
		}
		st.ByCategory[cat]++
		if e.Classifier != "" {
			st.ByClassifier[e.Classifier]++
		}
		switch {
		case e.Confidence < 0.6:
			st.ByConfidence.Low++
		case e.Confidence < 0.8:
			st.ByConfidence.Medium++
		default:
			st.ByConfidence.High++
		}
		confSum += e.Confidence
		if e.ProcessingTimeSec > 0 {
			timeSum += e.ProcessingTimeSec
			timed++
		}
	}
	if st.Total > 0 {
		st.AvgConfidence = round4(confSum / float64(st.Total))
	}
	if timed > 0 {
		st.AvgProcessingTime = round4(timeSum / float64(timed))
	}
	return st, nil
}

type CategoryAccuracy struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type FeedbackStats struct {
	Total       int                         `json:"total_feedback"`
	Correct     int                         `json:"correct_predictions"`
	Incorrect   int                         `json:"incorrect_predictions"`
	Accuracy    float64                     `json:"accuracy"`
	Corrections map[string]int              `json:"corrections_by_type"`
	PerCategory map[string]CategoryAccuracy `json:"per_category"`
}

// TopCorrection is a "predicted -> actual" pair and its count.
type TopCorrection struct {
	Pair  string `json:"pair"`
	Count int    `json:"count"`
}

// ComputeFeedbackStats aggregates feedback. Per-category accuracy is keyed
// by the category the user confirmed.
func ComputeFeedbackStats(seq iter.Seq2[FeedbackEntry, error]) (FeedbackStats, error) {
	st := FeedbackStats{Corrections: map[string]int{}, PerCategory: map[string]CategoryAccuracy{}}
	for e, err := range seq {
		if err != nil {
			return st, err
		}
		st.Total++
		pc := st.PerCategory[e.ActualType]
		pc.Total++
		if e.WasCorrect {
			st.Correct++
			pc.Correct++
		} else {
			st.Incorrect++
			st.Corrections[e.PredictedType+" -> "+e.ActualType]++
		}
		st.PerCategory[e.ActualType] = pc
	}
	if st.Total > 0 {
		st.Accuracy = round4(float64(st.Correct) / float64(st.Total))
	}
	for k, pc := range st.PerCategory {
		pc.Accuracy = round4(float64(pc.Correct) / float64(pc.Total))
		st.PerCategory[k] = pc
	}
	return st, nil
}

// TopCorrections returns the n most frequent corrections, ties by pair.
func (s FeedbackStats) TopCorrections(n int) []TopCorrection {
	out := make([]TopCorrection, 0, len(s.Corrections))
	for k, v := range s.Corrections {
		out = append(out, TopCorrection{Pair: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pair < out[j].Pair
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
