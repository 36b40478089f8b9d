// Package pipeline runs one uploaded document through extraction,
// classification and the prediction ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"doctag/internal/classifier"
	"doctag/internal/extract"
	"doctag/internal/ledger"
	"doctag/internal/textnorm"
	"doctag/internal/util"

	"github.com/google/uuid"
)

const emptyPreview = "[empty document]"

var ErrExtraction = errors.New("extraction failed")

// Analysis is what a caller gets back for one document.
type Analysis struct {
	PredictionID      string            `json:"prediction_id"`
	File              string            `json:"file"`
	Result            classifier.Result `json:"result"`
	Format            string            `json:"format,omitempty"`
	Pages             int               `json:"pages,omitempty"`
	ProcessingTimeSec float64           `json:"processing_time_sec"`
}

type Pipeline struct {
	svc   *classifier.Service
	sink  ledger.Sink
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithIDs(newID func() string) Option { return func(p *Pipeline) { p.newID = newID } }

func New(svc *classifier.Service, sink ledger.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		svc:   svc,
		sink:  sink,
		log:   slog.Default(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Service() *classifier.Service { return p.svc }

// Analyze extracts, classifies and logs the file at path. An empty
// document is a prediction of the unknown category. Any other extraction
// failure is logged as an error entry and returned wrapped in
// ErrExtraction.
func (p *Pipeline) Analyze(ctx context.Context, path, username string) (Analysis, error) {
	started := time.Now()
	ex := extract.Extract(ctx, path)
	if !ex.Success && !isEmptyDocument(ex) {
		entry := ledger.NewError(path, username, ex.ErrorType(), ex.Err(), p.now())
		p.record(ctx, entry)
		p.log.Warn("document extraction failed", "file", path, "error_type", entry.ErrorType, "err", ex.Err())
		return Analysis{File: entry.File, Format: ex.Format}, fmt.Errorf("%w: %w", ErrExtraction, ex.Err())
	}

	a := p.classify(ctx, path, ex.Text, username, started)
	a.Format = ex.Format
	a.Pages = ex.Pages
	return a, nil
}

// AnalyzeText classifies text that arrived without a file. name labels the
// ledger entry.
func (p *Pipeline) AnalyzeText(ctx context.Context, name, text, username string) Analysis {
	if name == "" {
		name = "inline.txt"
	}
	return p.classify(ctx, name, util.SanitizeText(text), username, time.Now())
}

func (p *Pipeline) classify(ctx context.Context, path, raw, username string, started time.Time) Analysis {
	text := textnorm.Clean(raw)
	res := p.svc.Classify(ctx, text, username)
	elapsed := roundSeconds(time.Since(started))

	entry := ledger.NewPrediction(p.newID(), path, p.now())
	entry.Predicted = res.CategoryID
	entry.Confidence = res.Confidence
	entry.Username = username
	entry.SuggestedFolder = res.FolderSuggestion
	entry.ProcessingTimeSec = elapsed
	entry.Classifier = res.Strategy
	entry.ModelName = res.ModelName
	if text == "" {
		entry.TextPreview = emptyPreview
	} else {
		entry.SetPreview(text)
	}
	p.record(ctx, entry)

	p.log.Info("document classified",
		"prediction_id", entry.PredictionID,
		"file", entry.File,
		"category", res.CategoryID,
		"confidence", res.Confidence,
		"strategy", res.Strategy,
		"seconds", elapsed)
	return Analysis{
		PredictionID:      entry.PredictionID,
		File:              entry.File,
		Result:            res,
		ProcessingTimeSec: elapsed,
	}
}

// record never fails the request: a prediction that could not be logged is
// still returned to the caller.
func (p *Pipeline) record(ctx context.Context, e ledger.PredictionEntry) {
	if p.sink == nil {
		return
	}
	if err := p.sink.RecordPrediction(ctx, e); err != nil {
		p.log.Error("prediction not logged", "prediction_id", e.PredictionID, "file", e.File, "err", err)
	}
}

func isEmptyDocument(r extract.Result) bool {
	return errors.Is(r.Err(), util.ErrNoExtractableText) && !errors.Is(r.Err(), extract.ErrOCRUnavailable)
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e4) / 1e4
}
