package domain

// InsightsJobRequest submits one async report job.
type InsightsJobRequest struct {
	AccountID   string
	Params      map[string]string
	AccessToken string
}

// InsightsJob identifies a submitted async report job.
type InsightsJob struct {
	JobID     string `json:"report_run_id"`
	ResultURL string `json:"result_url"`
}

// JobResult is the completed-job descriptor. Files lists per-file result
// URLs; an empty list means the job's own result URL holds the rows inline.
type JobResult struct {
	Files []string `json:"files"`
}

// ResultPage is one page of a paginated result set. Next is empty on the
// last page.
type ResultPage struct {
	Data []map[string]any `json:"data"`
	Next string           `json:"next,omitempty"`
}
