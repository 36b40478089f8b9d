// Package corpus reads and writes labeled training examples and recombines
// them with user feedback.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doctag/internal/ml"
	"doctag/internal/util"
)

const (
	SourceSynthetic = "synthetic"
	SourceFeedback  = "feedback"
	SourceImported  = "imported"
)

type Example struct {
	Text   string `json:"text"`
	Label  string `json:"label"`
	Source string `json:"source,omitempty"`
}

// Load reads a corpus from a .jsonl or .csv file. A missing file is an
// empty corpus. Rows without text or label are skipped.
func Load(ctx context.Context, path string) ([]Example, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	switch util.Ext(path) {
	case ".csv":
		return readCSV(ctx, f)
	case ".jsonl", ".ndjson", "":
		return readJSONL(ctx, f)
	default:
		return nil, fmt.Errorf("%w: corpus %s", util.ErrUnsupportedFormat, filepath.Base(path))
	}
}

func readJSONL(ctx context.Context, r io.Reader) ([]Example, error) {
	var out []Example
	br := bufio.NewReaderSize(r, 64*1024)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, readErr := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var ex Example
			if err := json.Unmarshal(line, &ex); err != nil {
				return nil, fmt.Errorf("corpus line %d: %w", lineNo, err)
			}
			if ex.valid() {
				out = append(out, ex)
			}
		}
		if readErr == io.EOF {
			return out, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("read corpus: %w", readErr)
		}
	}
}

func readCSV(ctx context.Context, r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	textIdx, okText := col["text"]
	labelIdx, okLabel := col["label"]
	if !okText || !okLabel {
		return nil, errors.New("corpus csv needs text and label columns")
	}
	sourceIdx, hasSource := col["source"]

	var out []Example
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus row: %w", err)
		}
		ex := Example{Text: field(rec, textIdx), Label: field(rec, labelIdx)}
		if hasSource {
			ex.Source = field(rec, sourceIdx)
		}
		if ex.valid() {
			out = append(out, ex)
		}
	}
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func (e Example) valid() bool {
	return strings.TrimSpace(e.Text) != "" && strings.TrimSpace(e.Label) != ""
}

// Save replaces path atomically with the examples, as JSONL or CSV by
// extension.
func Save(path string, examples []Example) error {
	switch util.Ext(path) {
	case ".csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"text", "label", "source"})
		for _, ex := range examples {
			_ = w.Write([]string{ex.Text, ex.Label, ex.Source})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("encode corpus csv: %w", err)
		}
		return util.WriteTextAtomic(path, buf.String())
	case ".jsonl", ".ndjson", "":
		return util.WriteJSONLinesAtomic(path, examples)
	default:
		return fmt.Errorf("%w: corpus %s", util.ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Dataset converts examples into training input, passing each text through
// prepare when it is not nil.
func Dataset(examples []Example, prepare func(string) string) ml.Dataset {
	d := ml.Dataset{Texts: make([]string, len(examples)), Labels: make([]string, len(examples))}
	for i, ex := range examples {
		text := ex.Text
		if prepare != nil {
			text = prepare(text)
		}
		d.Texts[i] = text
		d.Labels[i] = ex.Label
	}
	return d
}

// Labels returns each example's label in order.
func Labels(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Label
	}
	return out
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Distribution counts examples per label, most frequent first.
func Distribution(examples []Example) []LabelCount {
	counts := map[string]int{}
	for _, ex := range examples {
		counts[ex.Label]++
	}
	out := make([]LabelCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, LabelCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Select returns the examples at idx.
func Select(examples []Example, idx []int) []Example {
	out := make([]Example, len(idx))
	for i, j := range idx {
		out[i] = examples[j]
	}
	return out
}
