package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/config"
	"doctag/internal/ledger"
	"doctag/internal/logging"
	"doctag/internal/pipeline"
	"doctag/internal/retrain"
	"doctag/internal/storage"
	"doctag/internal/util"

	"github.com/google/uuid"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

const maxUploadBytes = 32 << 20

// WorkflowClient is the part of the Temporal client the API needs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow any, args ...any) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...any) (converter.EncodedValue, error)
}

// Pinger reports whether the relational mirror is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunHistory mirrors finished retrain reports and lists recent runs.
type RunHistory interface {
	Upsert(ctx context.Context, rep retrain.Report) error
	ListRecent(ctx context.Context, limit int) ([]storage.RetrainRun, error)
}

// MirrorStats answers feedback reads and aggregate queries from the
// relational mirror.
type MirrorStats interface {
	Feedback(ctx context.Context, since time.Time) iter.Seq2[ledger.FeedbackEntry, error]
	FeedbackStats(ctx context.Context, since time.Time) (ledger.FeedbackStats, error)
	CategoryCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

var (
	_ RunHistory  = (*storage.RetrainRunRepo)(nil)
	_ MirrorStats = (*storage.LedgerRepo)(nil)
)

// Deps are the collaborators a Server is built from. Sink defaults to
// Ledger; Temporal, Database, Runs and Mirror may be nil.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Ledger   *ledger.Ledger
	Sink     ledger.Sink
	Store    *artifact.Store
	Retrain  *retrain.Orchestrator
	Temporal WorkflowClient
	Database Pinger
	Runs     RunHistory
	Mirror   MirrorStats
	Logger   *slog.Logger
	Now      func() time.Time
}

type Server struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	ledger   *ledger.Ledger
	sink     ledger.Sink
	store    *artifact.Store
	retrain  *retrain.Orchestrator
	temporal WorkflowClient
	db       Pinger
	runs     RunHistory
	mirror   MirrorStats
	log      *slog.Logger
	now      func() time.Time
}

func NewServer(cfg config.Config, d Deps) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: d.Pipeline,
		ledger:   d.Ledger,
		sink:     d.Sink,
		store:    d.Store,
		retrain:  d.Retrain,
		temporal: d.Temporal,
		db:       d.Database,
		runs:     d.Runs,
		mirror:   d.Mirror,
		log:      d.Logger,
		now:      d.Now,
	}
	if s.sink == nil && d.Ledger != nil {
		s.sink = d.Ledger
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/categories", s.handleCategories)
	mux.HandleFunc("/v1/classify", s.handleClassify)
	mux.HandleFunc("/v1/feedback", s.handleFeedback)
	mux.HandleFunc("/v1/feedback/stats", s.handleFeedbackStats)
	mux.HandleFunc("/v1/feedback/export", s.handleFeedbackExport)
	mux.HandleFunc("/v1/predictions/stats", s.handlePredictionStats)
	mux.HandleFunc("/v1/predictions/categories", s.handlePredictionCategories)
	mux.HandleFunc("/v1/model", s.handleModel)
	mux.HandleFunc("/v1/model/", s.handleModelScoped)
	mux.HandleFunc("/v1/retrain", s.handleRetrain)
	mux.HandleFunc("/v1/retrain/", s.handleRetrainScoped)
	return withRequestID(s.log, withCORS(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true, "model": s.pipeline.Service().Info().Strategy}
	switch {
	case s.db == nil:
		out["database"] = "disabled"
	case s.db.Ping(r.Context()) != nil:
		out["database"] = "unavailable"
	default:
		out["database"] = "ok"
	}
	out["temporal"] = s.temporal != nil
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	tax := s.pipeline.Service().Taxonomy()
	writeJSON(w, http.StatusOK, map[string]any{
		"language":   tax.Language(),
		"default":    tax.DefaultCategory().ID,
		"categories": tax.Categories(),
		"thresholds": tax.Thresholds(),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		s.handleClassifyUpload(w, r)
		return
	}
	var req struct {
		Text     string `json:"text"`
		Filename string `json:"filename"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.AnalyzeText(r.Context(), req.Filename, req.Text, req.Username))
}

func (s *Server) handleClassifyUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := firstFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	path, err := saveUploadedFile(s.cfg.UploadDir, fh)
	if err != nil {
		if errors.Is(err, errUploadName) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	a, err := s.pipeline.Analyze(r.Context(), path, r.FormValue("username"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUnsupportedFormat):
			writeErr(w, http.StatusBadRequest, err)
		case errors.Is(err, pipeline.ErrExtraction):
			writeErr(w, http.StatusUnprocessableEntity, err)
		default:
			writeErr(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		PredictionID      string  `json:"prediction_id"`
		FileReference     string  `json:"file_reference"`
		PredictedCategory string  `json:"predicted_category"`
		ActualCategory    string  `json:"actual_category"`
		Confidence        float64 `json:"confidence"`
		Username          string  `json:"username"`
		Comment           string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	tax := s.pipeline.Service().Taxonomy()
	if err := tax.Validate(req.PredictedCategory); req.PredictedCategory != "" && err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if !tax.Has(req.ActualCategory) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("actual_category %q is not a category", req.ActualCategory))
		return
	}
	entry, err := ledger.FeedbackEntry{
		PredictionID:  req.PredictionID,
		FilePath:      req.FileReference,
		PredictedType: req.PredictedCategory,
		ActualType:    req.ActualCategory,
		Confidence:    req.Confidence,
		Username:      req.Username,
		Comment:       req.Comment,
	}.Prepare(s.now())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.sink.RecordFeedback(r.Context(), entry); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	logging.FromContext(r.Context()).Info("feedback recorded", "prediction_id", entry.PredictionID, "predicted", entry.PredictedType, "actual", entry.ActualType, "was_correct", entry.WasCorrect)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "recorded", "was_correct": entry.WasCorrect, "timestamp": entry.Timestamp})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	since, err := s.windowFrom(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	source := "ledger"
	var st ledger.FeedbackStats
	if s.mirror != nil {
		source = "postgres"
		st, err = s.mirror.FeedbackStats(r.Context(), since)
	} else {
		st, err = s.ledger.FeedbackStats(r.Context(), since)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "source": source, "stats": st, "top_corrections": st.TopCorrections(5)})
}

func (s *Server) handlePredictionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	since, err := s.windowFrom(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	st, err := s.ledger.PredictionStats(r.Context(), since)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "stats": st})
}

// handlePredictionCategories counts successful predictions per category,
// from the mirror when one is configured.
func (s *Server) handlePredictionCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	since, err := s.windowFrom(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if s.mirror != nil {
		counts, err := s.mirror.CategoryCounts(r.Context(), since)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"since": since, "source": "postgres", "counts": counts})
		return
	}
	st, err := s.ledger.PredictionStats(r.Context(), since)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "source": "ledger", "counts": st.ByCategory})
}

// windowFrom reads ?days=N. Absent means the retrain window; 0 means all
// time.
func (s *Server) windowFrom(r *http.Request) (time.Time, error) {
	days := s.cfg.Retrain.WindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("days must be a non-negative integer")
		}
		days = n
	}
	if days == 0 {
		return time.Time{}, nil
	}
	return ledger.WindowStart(s.now(), days), nil
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	versions, err := s.store.List()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	active, err := s.store.Active()
	if err != nil && !errors.Is(err, artifact.ErrNoActive) {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serving":  s.pipeline.Service().Info(),
		"active":   active,
		"versions": versions,
	})
}

func (s *Server) handleModelScoped(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/model/"), "/")
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	svc := s.pipeline.Service()
	switch action {
	case "reload":
		a, err := svc.ReloadFrom(s.store)
		if err != nil {
			writeErr(w, modelErrStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "model_name": a.Metadata.Name})
	case "promote":
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		a, err := s.store.Promote(req.Name)
		if err != nil {
			writeErr(w, modelErrStatus(err), err)
			return
		}
		prev := svc.Swap(a)
		from := ""
		if prev != nil {
			from = prev.Metadata.Name
		}
		logging.FromContext(r.Context()).Info("model artifact promoted", "name", a.Metadata.Name, "previous", from)
		writeJSON(w, http.StatusOK, map[string]any{"status": "promoted", "model_name": a.Metadata.Name, "previous": from})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func modelErrStatus(err error) int {
	switch {
	case errors.Is(err, artifact.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrNoActive):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var errUploadName = errors.New("upload needs a file name")

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(fh.Filename)
	if strings.TrimSpace(name) == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", errUploadName, fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	// Each upload gets its own directory so the ledger keeps the original
	// file name.
	dir := filepath.Join(dstDir, uuid.NewString())
	if err := util.EnsureDir(dir); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func firstFile(m map[string][]*multipart.FileHeader, preferred string) (*multipart.FileHeader, bool) {
	if v := m[preferred]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID echoes or assigns X-Request-ID and logs one line per
// request.
func withRequestID(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		reqLog := l.With("request_id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), reqLog)))
		reqLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds())
	})
}
