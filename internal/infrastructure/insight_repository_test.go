package infrastructure

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// One instance per test binary: the prometheus default registry rejects
// duplicate collector registration.
var testMetrics = metrics.New()

var testLogger = logger.New("error")

type execCall struct {
	sql  string
	args []any
}

// fakeExecutor records statements and fails according to errs, one entry
// consumed per call (nil = success).
type fakeExecutor struct {
	calls []execCall
	errs  []error
}

func (f *fakeExecutor) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func testUpsertContext() domain.UpsertContext {
	return domain.UpsertContext{
		TenantID:          "tenant-1",
		AccountID:         "act_1",
		Level:             domain.LevelCampaign,
		ActionReportTime:  domain.ActionReportTimeImpression,
		AttributionWindow: domain.AttributionWindow7dClick,
	}
}

func sampleRows(n int) []domain.InsightRow {
	rows := make([]domain.InsightRow, n)
	for i := range rows {
		rows[i] = domain.InsightRow{
			EntityID:   "c_1",
			AccountID:  "act_1",
			CampaignID: "c_1",
			Spend:      12.5,
		}
	}
	return rows
}

func TestUpsertDailyEmptyIsNoop(t *testing.T) {
	db := &fakeExecutor{}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	if err := repo.UpsertDaily(context.Background(), nil, testUpsertContext()); err != nil {
		t.Fatalf("UpsertDaily(nil): %v", err)
	}
	if len(db.calls) != 0 {
		t.Fatalf("exec calls = %d; want 0", len(db.calls))
	}
}

func TestUpsertDailyExtendedShape(t *testing.T) {
	db := &fakeExecutor{}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	if err := repo.UpsertDaily(context.Background(), sampleRows(2), testUpsertContext()); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("exec calls = %d; want 1", len(db.calls))
	}

	sql := db.calls[0].sql
	if !strings.HasPrefix(sql, "INSERT INTO ad_insights_daily") {
		t.Fatalf("unexpected statement: %s", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (tenant_id, date, level, entity_id, action_report_time, attribution_window, breakdowns_hash) DO UPDATE SET") {
		t.Fatalf("extended idempotency key missing: %s", sql)
	}
	if len(db.calls[0].args) != 2*len(extendedColumns) {
		t.Fatalf("args = %d; want %d", len(db.calls[0].args), 2*len(extendedColumns))
	}
}

func TestUpsertDailySchemaCacheFallback(t *testing.T) {
	db := &fakeExecutor{
		errs: []error{errors.New(`could not find the 'breakdowns_hash' column in the schema cache`)},
	}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	if err := repo.UpsertDaily(context.Background(), sampleRows(1), testUpsertContext()); err != nil {
		t.Fatalf("UpsertDaily with fallback: %v", err)
	}

	if len(db.calls) != 2 {
		t.Fatalf("exec calls = %d; want extended attempt + legacy retry", len(db.calls))
	}
	if !strings.HasPrefix(db.calls[0].sql, "INSERT INTO ad_insights_daily") {
		t.Fatalf("first statement not extended: %s", db.calls[0].sql)
	}
	if !strings.HasPrefix(db.calls[1].sql, "INSERT INTO ad_insights ") {
		t.Fatalf("fallback statement not legacy: %s", db.calls[1].sql)
	}
	if !strings.Contains(db.calls[1].sql, "ON CONFLICT (tenant_id, date, account_id, campaign_id, adset_id, ad_id) DO UPDATE SET") {
		t.Fatalf("legacy idempotency key missing: %s", db.calls[1].sql)
	}

	// Detection is permanent: the next write goes straight to legacy.
	if err := repo.UpsertDaily(context.Background(), sampleRows(1), testUpsertContext()); err != nil {
		t.Fatalf("second UpsertDaily: %v", err)
	}
	if len(db.calls) != 3 {
		t.Fatalf("exec calls = %d; want 3", len(db.calls))
	}
	if !strings.HasPrefix(db.calls[2].sql, "INSERT INTO ad_insights ") {
		t.Fatalf("schema mode not sticky, got: %s", db.calls[2].sql)
	}
}

func TestUpsertDailyUndefinedColumnFallback(t *testing.T) {
	db := &fakeExecutor{
		errs: []error{&pgconn.PgError{Code: "42703", Message: "column \"breakdowns_hash\" does not exist"}},
	}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	if err := repo.UpsertDaily(context.Background(), sampleRows(1), testUpsertContext()); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}
	if len(db.calls) != 2 || !strings.HasPrefix(db.calls[1].sql, "INSERT INTO ad_insights ") {
		t.Fatalf("undefined column did not trigger legacy fallback: %d calls", len(db.calls))
	}
}

func TestUpsertDailyOtherErrorsPropagate(t *testing.T) {
	db := &fakeExecutor{
		errs: []error{errors.New("connection refused")},
	}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	err := repo.UpsertDaily(context.Background(), sampleRows(1), testUpsertContext())
	if err == nil {
		t.Fatal("write error swallowed")
	}
	if len(db.calls) != 1 {
		t.Fatalf("exec calls = %d; want 1 (no fallback)", len(db.calls))
	}

	// A transient infrastructure failure must not flip the schema mode.
	if err := repo.UpsertDaily(context.Background(), sampleRows(1), testUpsertContext()); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if !strings.HasPrefix(db.calls[1].sql, "INSERT INTO ad_insights_daily") {
		t.Fatalf("mode changed after non-schema error: %s", db.calls[1].sql)
	}
}

func TestUpsertDailyBatches(t *testing.T) {
	db := &fakeExecutor{}
	repo := NewInsightRepositoryWithExecutor(db, 2, testLogger, testMetrics)

	if err := repo.UpsertDaily(context.Background(), sampleRows(5), testUpsertContext()); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}
	if len(db.calls) != 3 {
		t.Fatalf("exec calls = %d; want 3 batches of <=2", len(db.calls))
	}
	if got := len(db.calls[2].args) / len(extendedColumns); got != 1 {
		t.Fatalf("last batch rows = %d; want 1", got)
	}
}

func TestLegacySentinelSubstitution(t *testing.T) {
	db := &fakeExecutor{
		errs: []error{errors.New("schema cache is stale")},
	}
	repo := NewInsightRepositoryWithExecutor(db, 500, testLogger, testMetrics)

	uc := testUpsertContext()
	uc.Level = domain.LevelAccount
	row := domain.InsightRow{EntityID: "act_1", AccountID: "act_1"}

	if err := repo.UpsertDaily(context.Background(), []domain.InsightRow{row}, uc); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}

	args := db.calls[1].args
	// Column order: tenant_id, date, account_id, campaign_id, adset_id, ad_id, ...
	if args[2] != "act_1" {
		t.Fatalf("account_id arg = %v", args[2])
	}
	if args[3] != sentinelCampaign || args[4] != sentinelAdset || args[5] != sentinelAd {
		t.Fatalf("sentinels not substituted: %v %v %v", args[3], args[4], args[5])
	}
}

func TestUpsertStatementPlaceholders(t *testing.T) {
	t.Parallel()

	sql := upsertStatement("t", []string{"a", "b", "c"}, []string{"a"}, 2)
	if !strings.Contains(sql, "($1, $2, $3), ($4, $5, $6)") {
		t.Fatalf("placeholders wrong: %s", sql)
	}
	if !strings.Contains(sql, "b = EXCLUDED.b, c = EXCLUDED.c") {
		t.Fatalf("update clause wrong: %s", sql)
	}
	if strings.Contains(sql, "a = EXCLUDED.a") {
		t.Fatalf("key column must not be updated: %s", sql)
	}
}
