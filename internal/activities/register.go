package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.EvaluateFeedbackActivity)
	w.RegisterActivity(a.PrepareCorpusActivity)
	w.RegisterActivity(a.TrainModelActivity)
	w.RegisterActivity(a.WriteRetrainReportActivity)
	w.RegisterActivity(a.ListDocumentsActivity)
	w.RegisterActivity(a.ClassifyDocumentActivity)
	w.RegisterActivity(a.WriteBatchSummaryActivity)
}
