package domain

import "context"

// interface for the tenant-scoped analytical store
type InsightStore interface {
	// UpsertDaily writes rows idempotently under the key derived from uc.
	// Safe with an empty row list and safe to repeat with identical input.
	UpsertDaily(ctx context.Context, rows []InsightRow, uc UpsertContext) error
}

// interface for the third-party async reporting API
type ReportClient interface {
	StartInsightsJob(ctx context.Context, req InsightsJobRequest) (*InsightsJob, error)
	// PollJob blocks until the job completes or fails; errors come back
	// already classified.
	PollJob(ctx context.Context, jobID, accessToken string) (*JobResult, error)
	FetchResultPage(ctx context.Context, url, accessToken string) (*ResultPage, error)
}
