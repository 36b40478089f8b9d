package workflows

import (
	"time"

	"doctag/internal/retrain"
)

type RetrainInput struct {
	RunID       string `json:"run_id,omitempty"`
	Force       bool   `json:"force,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// RetrainStatus is both the query answer and the workflow result.
type RetrainStatus struct {
	RunID       string               `json:"run_id"`
	State       retrain.State        `json:"state"`
	Reason      string               `json:"reason,omitempty"`
	Forced      bool                 `json:"forced,omitempty"`
	RequestedBy string               `json:"requested_by,omitempty"`
	CurrentStep string               `json:"current_step"`
	Steps       map[string]string    `json:"steps"`
	Decision    *retrain.Decision    `json:"decision,omitempty"`
	Prepared    *retrain.Prepared    `json:"prepared,omitempty"`
	Published   *retrain.Published   `json:"published,omitempty"`
	ReportPath  string               `json:"report_path,omitempty"`
	Transitions []retrain.Transition `json:"transitions"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at,omitempty"`
}

func (s *RetrainStatus) enter(state retrain.State, at time.Time) {
	s.State = state
	s.Transitions = append(s.Transitions, retrain.Transition{State: state, At: at.UTC()})
}

// Report converts the status into the report format the orchestrator
// writes for in-process runs.
func (s RetrainStatus) Report() retrain.Report {
	rep := retrain.Report{
		RunID:       s.RunID,
		State:       s.State,
		Reason:      s.Reason,
		Forced:      s.Forced,
		Decision:    s.Decision,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Transitions: s.Transitions,
	}
	if p := s.Prepared; p != nil {
		rep.Join = p.Join
		rep.OriginalCorpusSize = p.OriginalCorpusSize
		rep.CorpusSize = p.CorpusSize
		rep.FeedbackExamples = p.FeedbackExamples
	}
	if p := s.Published; p != nil {
		m := p.Metrics
		rep.ArtifactName = p.ArtifactName
		rep.Metrics = &m
		rep.WeakCategories = p.WeakCategories
		rep.TrainSize = p.TrainSize
		rep.ValSize = p.ValSize
		rep.TestSize = p.TestSize
	}
	return rep
}

type ClassifyFolderInput struct {
	BatchID       string `json:"batch_id"`
	InputDir      string `json:"input_dir"`
	Username      string `json:"username,omitempty"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// ClassifyFolderProgress counts documents that reached a final status in
// Done; Failed is the subset of Done that could not be classified.
type ClassifyFolderProgress struct {
	BatchID     string            `json:"batch_id"`
	Total       int               `json:"total"`
	Done        int               `json:"done"`
	Failed      int               `json:"failed"`
	PerDocument map[string]string `json:"per_document_status"`
	ByCategory  map[string]int    `json:"by_category"`
}
