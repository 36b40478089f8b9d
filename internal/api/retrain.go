package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"doctag/internal/logging"
	"doctag/internal/retrain"
	"doctag/internal/workflows"

	"go.temporal.io/api/serviceerror"
)

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Force       bool   `json:"force"`
		RequestedBy string `json:"requested_by"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}

	if s.temporal == nil {
		rep := s.retrain.Run(r.Context(), req.Force)
		if errors.Is(rep.Err(), retrain.ErrRetrainInProgress) {
			writeErr(w, http.StatusConflict, rep.Err())
			return
		}
		if s.runs != nil {
			if err := s.runs.Upsert(r.Context(), rep); err != nil {
				logging.FromContext(r.Context()).Warn("retrain run not mirrored", "run_id", rep.RunID, "err", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": rep})
		return
	}

	runID := s.retrain.NewRunID()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), workflows.RetrainStartOptions(s.cfg.TemporalTaskQueue),
		workflows.RetrainWorkflow, workflows.RetrainInput{
			RunID:       runID,
			Force:       req.Force,
			RequestedBy: req.RequestedBy,
		})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			writeErr(w, http.StatusConflict, fmt.Errorf("retrain already running: %w", err))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	logging.FromContext(r.Context()).Info("retrain workflow started", "run_id", runID, "workflow_run_id", we.GetRunID(), "force", req.Force)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"retrain_run_id": runID,
		"workflow_id":    we.GetID(),
		"run_id":         we.GetRunID(),
	})
}

// handleRetrainScoped serves /v1/retrain/check, /v1/retrain/runs and
// /v1/retrain/{id}. An id
// of the form run_YYYYMMDD_HHMMSS reads the written report; anything else
// is a Temporal run id ("latest" for the most recent) and is queried live.
func (s *Server) handleRetrainScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/retrain/"), "/")
	switch {
	case id == "":
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	case id == "check":
		d, err := s.retrain.Check(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case id == "runs":
		s.handleRetrainRuns(w, r)
	case strings.HasPrefix(id, "run_"):
		rep, err := s.retrain.ReadReport(id)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeErr(w, http.StatusNotFound, err)
				return
			}
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	default:
		if s.temporal == nil {
			writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("temporal is not configured"))
			return
		}
		runID := id
		if runID == "latest" {
			runID = ""
		}
		resp, err := s.temporal.QueryWorkflow(r.Context(), workflows.RetrainWorkflowID, runID, workflows.QueryGetRetrainStatus)
		if err != nil {
			var nf *serviceerror.NotFound
			if errors.As(err, &nf) {
				writeErr(w, http.StatusNotFound, err)
				return
			}
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		var status workflows.RetrainStatus
		if err := resp.Get(&status); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// handleRetrainRuns lists mirrored runs, newest first.
func (s *Server) handleRetrainRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("retrain run history needs postgres"))
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

var exportHeader = []string{"timestamp", "prediction_id", "file_path", "predicted_type", "actual_type", "confidence", "was_correct", "username", "comment"}

// handleFeedbackExport streams the feedback ledger as CSV or JSONL.
func (s *Server) handleFeedbackExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "jsonl" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("format must be csv or jsonl"))
		return
	}
	since, err := s.windowFrom(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	name := fmt.Sprintf("feedback_%s.%s", s.now().UTC().Format("20060102"), format)
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	var cw *csv.Writer
	enc := json.NewEncoder(w)
	if format == "csv" {
		cw = csv.NewWriter(w)
		_ = cw.Write(exportHeader)
	}
	rows := s.ledger.Feedback(r.Context(), since)
	if s.mirror != nil {
		rows = s.mirror.Feedback(r.Context(), since)
	}
	n := 0
	for e, err := range rows {
		if err != nil {
			// The status line is already sent.
			logging.FromContext(r.Context()).Error("feedback export aborted", "rows", n, "err", err)
			break
		}
		if cw != nil {
			_ = cw.Write([]string{
				e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
				e.PredictionID,
				e.FilePath,
				e.PredictedType,
				e.ActualType,
				strconv.FormatFloat(e.Confidence, 'f', 4, 64),
				strconv.FormatBool(e.WasCorrect),
				e.Username,
				e.Comment,
			})
		} else {
			_ = enc.Encode(e)
		}
		n++
	}
	if cw != nil {
		cw.Flush()
	}
}
