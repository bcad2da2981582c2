package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.AnalyzeExperimentActivity)
	w.RegisterActivity(a.RecommendPlanActivity)
	w.RegisterActivity(a.UpdateRunStageActivity)
	w.RegisterActivity(a.SaveApprovedPlanActivity)
	w.RegisterActivity(a.UpdateRunProgressActivity)
	w.RegisterActivity(a.ExecutePlanEntryActivity)
	w.RegisterActivity(a.SynthesizeActivity)
	w.RegisterActivity(a.MarkRunErrorActivity)
}
