package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// SleepFunc is injected so tests can observe backoff delays without
// real wall-clock waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type BackfillService struct {
	client      domain.ReportClient
	store       domain.InsightStore
	logger      *logger.Logger
	metrics     *metrics.Metrics
	tenantID    string
	accountID   string
	accessToken string
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
}

func NewBackfillService(
	client domain.ReportClient,
	store domain.InsightStore,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	tenantID, accountID, accessToken string,
	maxAttempts int,
	baseDelay time.Duration,
) *BackfillService {
	return &BackfillService{
		client:      client,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		tenantID:    tenantID,
		accountID:   accountID,
		accessToken: accessToken,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepWithContext,
	}
}

// SetSleep overrides the backoff sleep. Tests only.
func (s *BackfillService) SetSleep(fn SleepFunc) { s.sleep = fn }

// RunMatrix drives every (combination, chunk) unit sequentially, fail-fast.
// Chunks already written are not rolled back; each chunk's write is
// independently idempotent, so a restarted run simply redoes the rest.
func (s *BackfillService) RunMatrix(ctx context.Context, combos []domain.MatrixCombination, chunks []domain.ChunkRange) error {
	for _, combo := range combos {
		for _, chunk := range chunks {
			if err := s.RunMonthlyChunk(ctx, combo, chunk); err != nil {
				return fmt.Errorf("chunk %s/%s %s..%s: %w",
					combo.Level, combo.BreakdownKey,
					chunk.Since.Format("2006-01-02"), chunk.Until.Format("2006-01-02"), err)
			}
		}
	}
	return nil
}

// RunMonthlyChunk executes one (combination, month-chunk) unit end-to-end,
// retrying transient upstream failures with exponential backoff.
func (s *BackfillService) RunMonthlyChunk(ctx context.Context, combo domain.MatrixCombination, chunk domain.ChunkRange) error {
	start := time.Now()
	s.metrics.IncChunksInFlight()
	defer s.metrics.DecChunksInFlight()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"level":         string(combo.Level),
		"breakdown_key": combo.BreakdownKey,
		"action_time":   string(combo.ActionReportTime),
		"attr_window":   string(combo.AttributionWindow),
		"since":         chunk.Since.Format("2006-01-02"),
		"until":         chunk.Until.Format("2006-01-02"),
	})

	var err error
	delay := s.baseDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runChunkOnce(ctx, combo, chunk)
		if err == nil {
			s.metrics.RecordChunk("success", string(combo.Level), time.Since(start))
			return nil
		}
		if domain.ClassOf(err) != domain.ClassTransient || attempt == s.maxAttempts {
			break
		}

		log.WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"backoff": delay.String(),
		}).Warn("Transient chunk failure, backing off")
		s.metrics.RecordChunkRetry(string(combo.Level))

		if serr := s.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
		delay *= 2
	}

	s.metrics.RecordChunk("failed", string(combo.Level), time.Since(start))
	log.WithError(err).Error("Chunk failed")
	return err
}

func (s *BackfillService) runChunkOnce(ctx context.Context, combo domain.MatrixCombination, chunk domain.ChunkRange) error {
	log := s.logger.WithContext(ctx)

	job, err := s.client.StartInsightsJob(ctx, domain.InsightsJobRequest{
		AccountID:   s.accountID,
		Params:      s.buildParams(combo, chunk),
		AccessToken: s.accessToken,
	})
	if err != nil {
		return fmt.Errorf("start insights job: %w", err)
	}

	result, err := s.client.PollJob(ctx, job.JobID, s.accessToken)
	if err != nil {
		return fmt.Errorf("poll job %s: %w", job.JobID, err)
	}

	// A job with no file list serves its rows inline from the job's own
	// result URL.
	urls := result.Files
	if len(urls) == 0 {
		urls = []string{job.ResultURL}
	}

	var rows []domain.InsightRow
	for _, url := range urls {
		for url != "" {
			page, err := s.client.FetchResultPage(ctx, url, s.accessToken)
			if err != nil {
				return fmt.Errorf("fetch result page: %w", err)
			}
			for _, raw := range page.Data {
				row := NormalizeInsightRow(raw, combo)
				if row == nil {
					s.metrics.RecordRowDropped(string(combo.Level), "missing_entity_id")
					continue
				}
				rows = append(rows, *row)
			}
			url = page.Next
		}
	}
	s.metrics.RecordRowsNormalized(string(combo.Level), len(rows))

	// Sparse combinations legitimately produce nothing.
	if len(rows) == 0 {
		log.WithFields(map[string]any{
			"level":         string(combo.Level),
			"breakdown_key": combo.BreakdownKey,
			"since":         chunk.Since.Format("2006-01-02"),
		}).Info("No rows for chunk")
		return nil
	}

	err = s.store.UpsertDaily(ctx, rows, domain.UpsertContext{
		TenantID:          s.tenantID,
		AccountID:         s.accountID,
		Level:             combo.Level,
		ActionReportTime:  combo.ActionReportTime,
		AttributionWindow: combo.AttributionWindow,
		BreakdownsKey:     combo.Breakdowns,
		BreakdownKeys:     breakdownNames(combo.Breakdowns),
	})
	if err != nil {
		return fmt.Errorf("upsert %d rows: %w", len(rows), err)
	}

	log.WithFields(map[string]any{
		"level": string(combo.Level),
		"rows":  len(rows),
	}).Debug("Chunk upserted")
	return nil
}

// buildParams renders the reporting API request for one unit of work. The
// field list depends on level: account-level reports have no entity-name
// columns below the account.
func (s *BackfillService) buildParams(combo domain.MatrixCombination, chunk domain.ChunkRange) map[string]string {
	fields := []string{
		"date_start", "date_stop", "account_id", "account_name",
		"spend", "impressions", "clicks", "inline_link_clicks", "unique_clicks",
		"reach", "frequency", "ctr", "cpc", "cpm",
		"actions", "action_values", "objective", "effective_status",
	}
	switch combo.Level {
	case domain.LevelCampaign:
		fields = append(fields, "campaign_id", "campaign_name")
	case domain.LevelAdset:
		fields = append(fields, "campaign_id", "campaign_name", "adset_id", "adset_name")
	case domain.LevelAd:
		fields = append(fields, "campaign_id", "campaign_name", "adset_id", "adset_name", "ad_id", "ad_name")
	}

	params := map[string]string{
		"level":                      string(combo.Level),
		"fields":                     strings.Join(fields, ","),
		"time_increment":             "1",
		"time_range_since":           chunk.Since.Format("2006-01-02"),
		"time_range_until":           chunk.Until.Format("2006-01-02"),
		"action_report_time":         string(combo.ActionReportTime),
		"action_attribution_windows": string(combo.AttributionWindow),
	}
	if combo.Breakdowns != "" {
		params["breakdowns"] = combo.Breakdowns
	}
	return params
}

func breakdownNames(breakdowns string) []string {
	if breakdowns == "" {
		return nil
	}
	return strings.Split(breakdowns, ",")
}
