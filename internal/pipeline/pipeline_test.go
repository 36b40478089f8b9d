package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"doctag/internal/classifier"
	"doctag/internal/extract"
	"doctag/internal/ledger"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"

	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu          sync.Mutex
	predictions []ledger.PredictionEntry
	fail        bool
}

func (m *memorySink) RecordPrediction(_ context.Context, e ledger.PredictionEntry) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, e)
	return nil
}

func (m *memorySink) RecordFeedback(context.Context, ledger.FeedbackEntry) error { return nil }

var fixedNow = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func newPipeline(sink ledger.Sink) *Pipeline {
	tax := taxonomy.Default()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := classifier.NewService(tax, textnorm.New(tax, tax.Language()), classifier.WithLogger(quiet))
	return New(svc, sink,
		WithLogger(quiet),
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string { return "pred-1" }))
}

func TestAnalyzeLogsPrediction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Factura_Marzo.TXT")
	text := "FACTURA Nº 2025/001\nFecha: 12/03/2025\nBase imponible: 1.000,00 €\nIVA (21%): 210,00 €\nTotal a pagar: 1.210,00 €"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	sink := &memorySink{}
	p := newPipeline(sink)

	a, err := p.Analyze(context.Background(), path, "ana")
	require.NoError(t, err)
	require.Equal(t, "pred-1", a.PredictionID)
	require.Equal(t, "Factura_Marzo.TXT", a.File)
	require.Equal(t, "factura", a.Result.CategoryID)
	require.Equal(t, "/ana/Documentos/Facturas", a.Result.FolderSuggestion)
	require.Equal(t, extract.FormatText, a.Format)
	require.GreaterOrEqual(t, a.ProcessingTimeSec, 0.0)

	require.Len(t, sink.predictions, 1)
	e := sink.predictions[0]
	require.Equal(t, ledger.TypePrediction, e.Type)
	require.Equal(t, "pred-1", e.PredictionID)
	require.Equal(t, fixedNow, e.Timestamp)
	require.Equal(t, ".txt", e.FileExtension)
	require.Equal(t, "factura", e.Predicted)
	require.Equal(t, "ana", e.Username)
	require.Equal(t, classifier.StrategyKeyword, e.Classifier)
	require.Contains(t, e.TextPreview, "FACTURA")
}

func TestAnalyzeEmptyDocumentIsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))
	sink := &memorySink{}

	a, err := newPipeline(sink).Analyze(context.Background(), path, "")
	require.NoError(t, err)
	require.Equal(t, taxonomy.Unknown, a.Result.CategoryID)
	require.Zero(t, a.Result.Confidence)
	require.Equal(t, "/Documentos/Otros", a.Result.FolderSuggestion)
	require.Len(t, sink.predictions, 1)
	require.Equal(t, emptyPreview, sink.predictions[0].TextPreview)
}

func TestAnalyzeExtractionFailureLogsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))
	sink := &memorySink{}

	_, err := newPipeline(sink).Analyze(context.Background(), path, "luis")
	require.ErrorIs(t, err, ErrExtraction)
	require.ErrorIs(t, err, extract.ErrOCRUnavailable)

	require.Len(t, sink.predictions, 1)
	e := sink.predictions[0]
	require.True(t, e.IsError())
	require.Equal(t, "ocr_unavailable", e.ErrorType)
	require.Equal(t, "scan.png", e.File)
	require.Equal(t, "luis", e.Username)
	require.NotEmpty(t, e.ErrorMessage)
}

func TestAnalyzeMissingFile(t *testing.T) {
	sink := &memorySink{}
	_, err := newPipeline(sink).Analyze(context.Background(), "/does/not/exist.pdf", "")
	require.ErrorIs(t, err, extract.ErrFileNotFound)
	require.Len(t, sink.predictions, 1)
	require.Equal(t, "file_not_found", sink.predictions[0].ErrorType)
}

func TestAnalyzeTextSurvivesSinkFailure(t *testing.T) {
	p := newPipeline(&memorySink{fail: true})
	a := p.AnalyzeText(context.Background(), "", "NÓMINA del mes de marzo. Salario base, IRPF y seguridad social. Líquido a percibir.", "")
	require.Equal(t, "nomina", a.Result.CategoryID)
	require.Equal(t, "inline.txt", a.File)
	require.Equal(t, "pred-1", a.PredictionID)
}
