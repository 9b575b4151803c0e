package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// implements domain.ReportClient against the async reporting API
type ReportClient struct {
	client       *http.Client
	baseURL      string
	logger       *logger.Logger
	metrics      *metrics.Metrics
	rateLimiter  *rate.Limiter
	pollInterval time.Duration
	pollTimeout  time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// creates a new report client
func NewReportClient(baseURL string, timeout, pollInterval, pollTimeout time.Duration, ratePerSecond int, logger *logger.Logger, metrics *metrics.Metrics) *ReportClient {
	return &ReportClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
		metrics:      metrics,
		rateLimiter:  rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		now:          time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// StartInsightsJob submits one async report job for an account.
func (c *ReportClient) StartInsightsJob(ctx context.Context, req domain.InsightsJobRequest) (*domain.InsightsJob, error) {
	start := time.Now()

	form := url.Values{}
	for k, v := range req.Params {
		form.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/%s/insights", c.baseURL, url.PathEscape(req.AccountID))
	body, err := c.do(ctx, "start_job", http.MethodPost, endpoint, req.AccessToken, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var job domain.InsightsJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.metrics.RecordReportAPIFailure("start_job", "json_parse")
		return nil, fmt.Errorf("failed to parse job response: %w", err)
	}
	if job.ResultURL == "" {
		job.ResultURL = fmt.Sprintf("%s/%s/insights_results", c.baseURL, url.PathEscape(job.JobID))
	}

	c.metrics.RecordReportAPICall("start_job", "success", time.Since(start))

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"account_id": req.AccountID,
		"job_id":     job.JobID,
		"duration":   time.Since(start),
	}).Info("Submitted insights job")

	return &job, nil
}

type jobStatusResponse struct {
	Status            string   `json:"async_status"`
	PercentCompletion int      `json:"async_percent_completion"`
	Files             []string `json:"files"`
}

// PollJob waits for job completion with a bounded poll loop. The interval
// and the overall deadline are fixed at construction; the sleep and clock
// are injectable so tests never wait on real time.
func (c *ReportClient) PollJob(ctx context.Context, jobID, accessToken string) (*domain.JobResult, error) {
	deadline := c.now().Add(c.pollTimeout)
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(jobID))

	for {
		body, err := c.do(ctx, "poll_job", http.MethodGet, endpoint, accessToken, nil)
		if err != nil {
			return nil, err
		}

		var status jobStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			c.metrics.RecordReportAPIFailure("poll_job", "json_parse")
			return nil, fmt.Errorf("failed to parse job status: %w", err)
		}

		switch status.Status {
		case "Job Completed":
			return &domain.JobResult{Files: status.Files}, nil
		case "Job Failed", "Job Skipped":
			return nil, domain.ClassifyUpstream(fmt.Errorf("job %s: %s", jobID, status.Status))
		}

		if !c.now().Before(deadline) {
			return nil, domain.ClassifyUpstream(fmt.Errorf("insights job timed out: job %s at %d%%", jobID, status.PercentCompletion))
		}

		c.logger.WithContext(ctx).WithFields(map[string]any{
			"job_id":   jobID,
			"status":   status.Status,
			"progress": status.PercentCompletion,
		}).Debug("Job not ready")

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

type resultPageResponse struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchResultPage reads one page of a paginated result set.
func (c *ReportClient) FetchResultPage(ctx context.Context, pageURL, accessToken string) (*domain.ResultPage, error) {
	body, err := c.do(ctx, "fetch_page", http.MethodGet, pageURL, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var page resultPageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		c.metrics.RecordReportAPIFailure("fetch_page", "json_parse")
		return nil, fmt.Errorf("failed to parse result page: %w", err)
	}

	return &domain.ResultPage{Data: page.Data, Next: page.Paging.Next}, nil
}

// do issues one rate-limited request and classifies upstream failures so
// callers only ever see tagged errors.
func (c *ReportClient) do(ctx context.Context, operation, method, endpoint, accessToken string, reqBody io.Reader) ([]byte, error) {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordReportAPIFailure(operation, "rate_limit")
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		c.metrics.RecordReportAPIFailure(operation, "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordReportAPIFailure(operation, "network_error")
		return nil, domain.ClassifyUpstream(fmt.Errorf("%s request: %w", operation, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordReportAPIFailure(operation, "read_body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordReportAPICall(operation, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		// The upstream error message decides transient vs fatal.
		return nil, domain.ClassifyUpstream(fmt.Errorf("%s returned status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	c.metrics.RecordReportAPICall(operation, "success", duration)
	return body, nil
}
