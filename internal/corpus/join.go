package corpus

import (
	"context"
	"iter"
	"path/filepath"
	"strings"

	"doctag/internal/ledger"
	"doctag/internal/taxonomy"
)

// JoinStats reports how feedback entries were matched to source text.
type JoinStats struct {
	Feedback       int `json:"feedback"`
	ByPredictionID int `json:"by_prediction_id"`
	ByFileName     int `json:"by_file_name"`
	Unrecovered    int `json:"unrecovered"`
	InvalidLabel   int `json:"invalid_label"`
}

func (s JoinStats) Recovered() int { return s.ByPredictionID + s.ByFileName }

// JoinFeedback recovers the text behind each feedback entry from the
// prediction log and labels it with the user's category. Entries are
// matched by prediction id first, then by file base name (first logged
// prediction wins). Entries without recoverable text, or whose label is
// not in tax, are dropped and counted.
func JoinFeedback(ctx context.Context, feedback []ledger.FeedbackEntry, predictions iter.Seq2[ledger.PredictionEntry, error], tax *taxonomy.Taxonomy) ([]Example, JoinStats, error) {
	stats := JoinStats{Feedback: len(feedback)}
	if len(feedback) == 0 {
		return nil, stats, nil
	}

	byID := map[string]string{}
	byFile := map[string]string{}
	n := 0
	for p, err := range predictions {
		if err != nil {
			return nil, stats, err
		}
		if n++; n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		if p.IsError() || strings.TrimSpace(p.TextPreview) == "" {
			continue
		}
		if p.PredictionID != "" {
			byID[p.PredictionID] = p.TextPreview
		}
		if _, seen := byFile[p.File]; !seen && p.File != "" {
			byFile[p.File] = p.TextPreview
		}
	}

	out := make([]Example, 0, len(feedback))
	for i, fb := range feedback {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		if tax != nil && !tax.Has(fb.ActualType) {
			stats.InvalidLabel++
			continue
		}
		if text, ok := byID[fb.PredictionID]; ok && fb.PredictionID != "" {
			stats.ByPredictionID++
			out = append(out, Example{Text: text, Label: fb.ActualType, Source: SourceFeedback})
			continue
		}
		if fb.FilePath != "" {
			if text, ok := byFile[filepath.Base(fb.FilePath)]; ok {
				stats.ByFileName++
				out = append(out, Example{Text: text, Label: fb.ActualType, Source: SourceFeedback})
				continue
			}
		}
		stats.Unrecovered++
	}
	return out, stats, nil
}

// Merge appends extra to base without modifying either.
func Merge(base, extra []Example) []Example {
	out := make([]Example, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
