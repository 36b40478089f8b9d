package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doctag/internal/ledger"
	"doctag/internal/taxonomy"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadFormats(t *testing.T) {
	rows := []Example{
		{Text: "Factura nº 1, \"IVA\" incluido\nTotal", Label: "factura", Source: SourceSynthetic},
		{Text: "Recibo de cuota", Label: "recibo"},
	}
	for _, name := range []string{"train.jsonl", "train.csv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "datasets", name)
			require.NoError(t, Save(path, rows))
			got, err := Load(context.Background(), path)
			require.NoError(t, err)
			require.Equal(t, rows, got)
		})
	}
}

func TestLoadMissingAndInvalid(t *testing.T) {
	got, err := Load(context.Background(), filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	require.Empty(t, got)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("body,category\nx,y\n"), 0o644))
	_, err = Load(context.Background(), csvPath)
	require.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(dir, "corpus.xlsx"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.xlsx"), []byte("x"), 0o644))
	_, err = Load(context.Background(), filepath.Join(dir, "corpus.xlsx"))
	require.Error(t, err)

	skip := filepath.Join(dir, "skip.csv")
	require.NoError(t, os.WriteFile(skip, []byte("label,text\nfactura,\n,texto\nrecibo,recibo de luz\n"), 0o644))
	got, err = Load(context.Background(), skip)
	require.NoError(t, err)
	require.Equal(t, []Example{{Text: "recibo de luz", Label: "recibo"}}, got)
}

func TestDistributionAndDataset(t *testing.T) {
	rows := []Example{{Text: "A", Label: "b"}, {Text: "B", Label: "a"}, {Text: "C", Label: "b"}}
	require.Equal(t, []LabelCount{{Label: "b", Count: 2}, {Label: "a", Count: 1}}, Distribution(rows))

	d := Dataset(rows, func(s string) string { return s + "!" })
	require.Equal(t, []string{"A!", "B!", "C!"}, d.Texts)
	require.Equal(t, []string{"b", "a", "b"}, d.Labels)
	require.Equal(t, []Example{rows[2], rows[0]}, Select(rows, []int{2, 0}))
}

func writePredictions(t *testing.T, l *ledger.Ledger, rows ...ledger.PredictionEntry) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, l.RecordPrediction(context.Background(), r))
	}
}

func TestJoinFeedback(t *testing.T) {
	dir := t.TempDir()
	l := ledger.Open(filepath.Join(dir, "p.jsonl"), filepath.Join(dir, "f.jsonl"), nil)
	now := time.Now().UTC()
	writePredictions(t, l,
		ledger.PredictionEntry{PredictionID: "id-1", Timestamp: now, Type: ledger.TypePrediction, File: "doc.pdf", TextPreview: "first doc text"},
		ledger.PredictionEntry{PredictionID: "id-2", Timestamp: now, Type: ledger.TypePrediction, File: "doc.pdf", TextPreview: "second doc text"},
		ledger.PredictionEntry{Timestamp: now, Type: ledger.TypePrediction, File: "legacy.pdf", TextPreview: "legacy text"},
		ledger.PredictionEntry{Timestamp: now, Type: ledger.TypeError, File: "broken.pdf"},
	)
	feedback := []ledger.FeedbackEntry{
		{PredictionID: "id-2", FilePath: "/u/doc.pdf", ActualType: "recibo"},
		{FilePath: "/other/dir/doc.pdf", ActualType: "factura"},
		{FilePath: "legacy.pdf", ActualType: "contrato"},
		{FilePath: "broken.pdf", ActualType: "factura"},
		{FilePath: "missing.pdf", ActualType: "factura"},
		{PredictionID: "id-1", ActualType: "not-a-category"},
	}

	got, stats, err := JoinFeedback(context.Background(), feedback, l.Predictions(context.Background(), time.Time{}), taxonomy.Default())
	require.NoError(t, err)
	require.Equal(t, []Example{
		{Text: "second doc text", Label: "recibo", Source: SourceFeedback},
		{Text: "first doc text", Label: "factura", Source: SourceFeedback},
		{Text: "legacy text", Label: "contrato", Source: SourceFeedback},
	}, got)
	require.Equal(t, JoinStats{Feedback: 6, ByPredictionID: 1, ByFileName: 2, Unrecovered: 2, InvalidLabel: 1}, stats)
	require.Equal(t, 3, stats.Recovered())
}

func TestJoinFeedbackCancelled(t *testing.T) {
	dir := t.TempDir()
	l := ledger.Open(filepath.Join(dir, "p.jsonl"), filepath.Join(dir, "f.jsonl"), nil)
	writePredictions(t, l, ledger.PredictionEntry{Timestamp: time.Now(), Type: ledger.TypePrediction, File: "a.pdf", TextPreview: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := JoinFeedback(ctx, []ledger.FeedbackEntry{{FilePath: "a.pdf", ActualType: "factura"}}, l.Predictions(ctx, time.Time{}), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMergeNeverShrinks(t *testing.T) {
	base := []Example{{Text: "a", Label: "x"}}
	extra := []Example{{Text: "b", Label: "y"}, {Text: "c", Label: "x"}}
	merged := Merge(base, extra)
	require.Len(t, merged, 3)
	require.Len(t, base, 1)
	require.Equal(t, base[0], merged[0])
	require.Len(t, Merge(base, nil), 1)
}
