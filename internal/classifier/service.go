// Package classifier turns extracted document text into a category, a
// calibrated confidence and a folder suggestion.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"doctag/internal/artifact"
	"doctag/internal/providers"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"
)

const DefaultMinTextLength = 10

type Result struct {
	CategoryID       string  `json:"category_id"`
	Confidence       float64 `json:"confidence"`
	ConfidenceLevel  Level   `json:"confidence_level"`
	FolderSuggestion string  `json:"folder_suggestion"`
	TopK             []Score `json:"top_k"`
	TextLength       int     `json:"text_length"`
	Strategy         string  `json:"strategy"`
	ModelName        string  `json:"model_name,omitempty"`
	Fallback         bool    `json:"fallback,omitempty"`
}

type snapshot struct {
	artifact *artifact.Artifact
	model    Strategy
	loadedAt time.Time
}

// Service is safe for concurrent use. The active artifact lives in an
// immutable snapshot that Swap replaces atomically; in-flight calls keep
// the snapshot they started with.
type Service struct {
	tax        *taxonomy.Taxonomy
	norm       *textnorm.Normalizer
	cal        Calibrator
	keyword    *KeywordStrategy
	embedder   providers.EmbeddingProvider
	embedding  Strategy
	log        *slog.Logger
	minTextLen int
	initial    *artifact.Artifact

	active atomic.Pointer[snapshot]
}

type Option func(*Service)

func WithCalibrator(c Calibrator) Option { return func(s *Service) { s.cal = c } }

func WithEmbedder(p providers.EmbeddingProvider) Option {
	return func(s *Service) { s.embedder = p }
}

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithMinTextLength(n int) Option { return func(s *Service) { s.minTextLen = n } }

// WithArtifact starts the service with a loaded artifact.
func WithArtifact(a *artifact.Artifact) Option { return func(s *Service) { s.initial = a } }

func NewService(tax *taxonomy.Taxonomy, norm *textnorm.Normalizer, opts ...Option) *Service {
	s := &Service{
		tax:        tax,
		norm:       norm,
		cal:        DefaultCalibrator(tax.Thresholds()),
		log:        slog.Default(),
		minTextLen: DefaultMinTextLength,
	}
	for _, o := range opts {
		o(s)
	}
	s.keyword = NewKeywordStrategy(tax, s.cal, DefaultTierWeights())
	if s.embedder != nil {
		s.embedding = NewEmbeddingStrategy(tax, s.cal, s.embedder, norm.Normalize)
	}
	if s.initial != nil {
		s.active.Store(s.newSnapshot(s.initial))
	}
	return s
}

func (s *Service) newSnapshot(a *artifact.Artifact) *snapshot {
	return &snapshot{artifact: a, model: NewLinearModelStrategy(s.tax, s.cal, a), loadedAt: time.Now().UTC()}
}

func (s *Service) Taxonomy() *taxonomy.Taxonomy { return s.tax }

func (s *Service) Calibrator() Calibrator { return s.cal }

// Classify never fails: missing models and strategy errors degrade to the
// keyword scorer, and text shorter than the minimum returns the unknown
// category with zero confidence.
func (s *Service) Classify(ctx context.Context, text, username string) Result {
	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length < s.minTextLen {
		return Result{
			CategoryID:       taxonomy.Unknown,
			Confidence:       0,
			ConfidenceLevel:  LevelLow,
			FolderSuggestion: s.tax.FolderFor(taxonomy.Unknown, username),
			TopK:             []Score{},
			TextLength:       length,
			Strategy:         StrategyShortText,
		}
	}

	doc := Document{Lowered: s.norm.Lower(text), Normalized: s.norm.Normalize(text)}
	snap := s.active.Load()
	chain := Chain{Embedding: s.embedding, Keyword: s.keyword}
	if snap != nil {
		chain.Model = snap.model
	}
	primary := ResolveStrategy(snap != nil, chain)

	used := primary
	out, err := primary.Classify(ctx, doc)
	fallback := false
	if err == nil {
		if verr := s.tax.Validate(out.CategoryID); verr != nil {
			err = verr
		}
	}
	if err != nil {
		s.log.Warn("classification strategy failed, using keywords",
			"strategy", primary.Name(), "err", err)
		used = s.keyword
		fallback = true
		out, _ = s.keyword.Classify(ctx, doc)
	}

	res := Result{
		CategoryID:       out.CategoryID,
		Confidence:       clip01(out.Confidence),
		FolderSuggestion: s.tax.FolderFor(out.CategoryID, username),
		TopK:             out.TopK,
		TextLength:       length,
		Strategy:         used.Name(),
		Fallback:         fallback,
	}
	res.ConfidenceLevel = s.cal.Level(res.Confidence)
	if used == chain.Model && snap != nil {
		res.ModelName = snap.artifact.Metadata.Name
	}
	return res
}

// Swap installs a as the active artifact and returns the previous one. A
// nil artifact leaves the service on its fallback strategies.
func (s *Service) Swap(a *artifact.Artifact) *artifact.Artifact {
	var next *snapshot
	if a != nil {
		next = s.newSnapshot(a)
	}
	prev := s.active.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.artifact
}

func (s *Service) Active() *artifact.Artifact {
	if snap := s.active.Load(); snap != nil {
		return snap.artifact
	}
	return nil
}

// ReloadFrom loads the store's active artifact and swaps it in. On failure
// the current snapshot keeps serving.
func (s *Service) ReloadFrom(store *artifact.Store) (*artifact.Artifact, error) {
	a, err := store.LoadActive()
	if err != nil {
		if errors.Is(err, artifact.ErrNoActive) {
			return nil, err
		}
		return nil, fmt.Errorf("reload artifact: %w", err)
	}
	s.Swap(a)
	s.log.Info("model artifact activated", "name", a.Metadata.Name, "vocabulary", a.Metadata.VocabularySize)
	return a, nil
}

type ModelInfo struct {
	Strategy         string            `json:"strategy"`
	ModelName        string            `json:"model_name,omitempty"`
	ModelType        string            `json:"model_type,omitempty"`
	TrainedAt        *time.Time        `json:"trained_at,omitempty"`
	LoadedAt         *time.Time        `json:"loaded_at,omitempty"`
	Classes          []string          `json:"classes,omitempty"`
	VocabularySize   int               `json:"vocabulary_size,omitempty"`
	Metrics          *artifact.Metrics `json:"metrics,omitempty"`
	EmbeddingEnabled bool              `json:"embedding_enabled"`
}

func (s *Service) Info() ModelInfo {
	snap := s.active.Load()
	chain := Chain{Embedding: s.embedding, Keyword: s.keyword}
	if snap != nil {
		chain.Model = snap.model
	}
	info := ModelInfo{
		Strategy:         ResolveStrategy(snap != nil, chain).Name(),
		EmbeddingEnabled: s.embedding != nil,
	}
	if snap == nil {
		return info
	}
	md := snap.artifact.Metadata
	trained, loaded := md.TrainedAt, snap.loadedAt
	metrics := md.Metrics
	info.ModelName = md.Name
	info.ModelType = md.ModelType
	info.TrainedAt = &trained
	info.LoadedAt = &loaded
	info.Classes = md.Classes
	info.VocabularySize = md.VocabularySize
	info.Metrics = &metrics
	return info
}
