package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// Sentinel identifiers the legacy schema stores for hierarchy levels that do
// not apply to a row. Part of the legacy idempotency key, so they must never
// change without a migration.
const (
	sentinelAccount  = "__account__"
	sentinelCampaign = "__campaign__"
	sentinelAdset    = "__adset__"
	sentinelAd       = "__ad__"
)

type schemaMode int32

const (
	schemaUnknown schemaMode = iota
	schemaExtended
	schemaLegacy
)

func (m schemaMode) String() string {
	switch m {
	case schemaExtended:
		return "extended"
	case schemaLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// pgExecutor is the slice of pgxpool.Pool the repository needs. Tests
// substitute a recording fake.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsightRepository implements domain.InsightStore over Postgres. It detects
// which of two physical schemas the destination has: it first tries the
// extended per-breakdown shape and falls back to the legacy shape, once and
// permanently, when the extended write fails on a missing column.
type InsightRepository struct {
	db        pgExecutor
	logger    *logger.Logger
	metrics   *metrics.Metrics
	batchSize int
	mode      atomic.Int32
}

// NewInsightRepository connects a pool-backed repository.
func NewInsightRepository(ctx context.Context, dsn string, batchSize int, logger *logger.Logger, metrics *metrics.Metrics) (*InsightRepository, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	repo := NewInsightRepositoryWithExecutor(pool, batchSize, logger, metrics)
	return repo, pool.Close, nil
}

// NewInsightRepositoryWithExecutor builds a repository over any executor.
func NewInsightRepositoryWithExecutor(db pgExecutor, batchSize int, logger *logger.Logger, metrics *metrics.Metrics) *InsightRepository {
	if batchSize < 1 {
		batchSize = 500
	}
	return &InsightRepository{
		db:        db,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// UpsertDaily writes rows in fixed-size batches. Each batch is an idempotent
// upsert: re-sending already-written rows overwrites them with identical
// values. An empty row list is a no-op.
func (r *InsightRepository) UpsertDaily(ctx context.Context, rows []domain.InsightRow, uc domain.UpsertContext) error {
	if len(rows) == 0 {
		return nil
	}

	for start := 0; start < len(rows); start += r.batchSize {
		end := start + r.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := r.upsertBatch(ctx, rows[start:end], uc); err != nil {
			return err
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"rows":   len(rows),
		"level":  string(uc.Level),
		"schema": schemaMode(r.mode.Load()).String(),
	}).Info("Upserted insight rows")
	return nil
}

func (r *InsightRepository) upsertBatch(ctx context.Context, batch []domain.InsightRow, uc domain.UpsertContext) error {
	if schemaMode(r.mode.Load()) == schemaLegacy {
		return r.writeLegacy(ctx, batch, uc)
	}

	err := r.writeExtended(ctx, batch, uc)
	if err == nil {
		r.mode.CompareAndSwap(int32(schemaUnknown), int32(schemaExtended))
		return nil
	}
	if !isSchemaMismatch(err) {
		return err
	}

	// Destination still has the legacy table layout. Detection is
	// authoritative for the rest of the process; a concurrent first write
	// may take this path twice, which is harmless because the legacy write
	// is idempotent too.
	r.mode.Store(int32(schemaLegacy))
	r.metrics.RecordSchemaFallback()
	r.logger.WithContext(ctx).WithError(err).Warn("Extended schema write failed, falling back to legacy schema")

	return r.writeLegacy(ctx, batch, uc)
}

// isSchemaMismatch recognizes the one write failure that means "wrong
// physical schema": an undefined column, or the server reporting a stale
// schema cache.
func isSchemaMismatch(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42703" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "schema cache")
}

var extendedColumns = []string{
	"tenant_id", "date", "level", "entity_id",
	"action_report_time", "attribution_window", "breakdowns_hash", "breakdowns",
	"account_id", "campaign_id", "adset_id", "ad_id",
	"account_name", "campaign_name", "adset_name", "ad_name",
	"spend", "impressions", "clicks", "inline_link_clicks", "unique_clicks",
	"reach", "frequency", "ctr", "cpc", "cpm",
	"purchases", "purchase_value", "adds_to_cart", "initiated_checkout",
	"leads", "lead_value", "registrations", "landing_page_views",
	"video_views", "post_engagement", "link_click_actions",
	"campaign_budget", "adset_budget", "objective", "effective_status",
	"updated_at",
}

var extendedKeyColumns = []string{
	"tenant_id", "date", "level", "entity_id",
	"action_report_time", "attribution_window", "breakdowns_hash",
}

func (r *InsightRepository) writeExtended(ctx context.Context, batch []domain.InsightRow, uc domain.UpsertContext) error {
	now := time.Now().UTC()
	args := make([]any, 0, len(batch)*len(extendedColumns))
	for _, row := range batch {
		breakdownsJSON, err := json.Marshal(row.Breakdowns)
		if err != nil {
			return fmt.Errorf("marshal breakdowns: %w", err)
		}
		args = append(args,
			uc.TenantID, row.DateStart, string(uc.Level), row.EntityID,
			string(uc.ActionReportTime), string(uc.AttributionWindow), domain.HashBreakdowns(row.Breakdowns), breakdownsJSON,
			row.AccountID, row.CampaignID, row.AdsetID, row.AdID,
			row.AccountName, row.CampaignName, row.AdsetName, row.AdName,
			row.Spend, row.Impressions, row.Clicks, row.InlineLinkClicks, row.UniqueClicks,
			row.Reach, row.Frequency, row.CTR, row.CPC, row.CPM,
			row.Purchases, row.PurchaseValue, row.AddsToCart, row.InitiatedCheckout,
			row.Leads, row.LeadValue, row.Registrations, row.LandingPageViews,
			row.VideoViews, row.PostEngagement, row.LinkClickActions,
			row.CampaignBudget, row.AdsetBudget, row.Objective, row.EffectiveStatus,
			now,
		)
	}

	sql := upsertStatement("ad_insights_daily", extendedColumns, extendedKeyColumns, len(batch))
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		r.metrics.RecordUpsertBatch("extended", "failed", 0)
		return fmt.Errorf("extended upsert: %w", err)
	}
	r.metrics.RecordUpsertBatch("extended", "success", len(batch))
	return nil
}

var legacyColumns = []string{
	"tenant_id", "date", "account_id", "campaign_id", "adset_id", "ad_id",
	"level", "spend", "impressions", "clicks", "reach", "frequency",
	"purchases", "revenue", "leads", "adds_to_cart",
	"objective", "effective_status", "updated_at",
}

var legacyKeyColumns = []string{
	"tenant_id", "date", "account_id", "campaign_id", "adset_id", "ad_id",
}

func (r *InsightRepository) writeLegacy(ctx context.Context, batch []domain.InsightRow, uc domain.UpsertContext) error {
	now := time.Now().UTC()
	args := make([]any, 0, len(batch)*len(legacyColumns))
	for _, row := range batch {
		accountID := row.AccountID
		if accountID == "" {
			accountID = uc.AccountID
		}
		args = append(args,
			uc.TenantID, row.DateStart,
			orSentinel(accountID, sentinelAccount),
			orSentinel(row.CampaignID, sentinelCampaign),
			orSentinel(row.AdsetID, sentinelAdset),
			orSentinel(row.AdID, sentinelAd),
			string(uc.Level), row.Spend, row.Impressions, row.Clicks, row.Reach, row.Frequency,
			row.Purchases, row.PurchaseValue, row.Leads, row.AddsToCart,
			row.Objective, row.EffectiveStatus, now,
		)
	}

	sql := upsertStatement("ad_insights", legacyColumns, legacyKeyColumns, len(batch))
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		r.metrics.RecordUpsertBatch("legacy", "failed", 0)
		return fmt.Errorf("legacy upsert: %w", err)
	}
	r.metrics.RecordUpsertBatch("legacy", "success", len(batch))
	return nil
}

// orSentinel substitutes the legacy placeholder when an identifier does not
// apply at the row's level.
func orSentinel(id, sentinel string) string {
	if id == "" {
		return sentinel
	}
	return id
}

// upsertStatement renders a multi-row INSERT ... ON CONFLICT DO UPDATE with
// positional placeholders. Non-key columns are overwritten from EXCLUDED so
// re-sending a batch is a no-op rewrite.
func upsertStatement(table string, columns, keyColumns []string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	arg := 1
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", arg)
			arg++
		}
		sb.WriteByte(')')
	}

	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(strings.Join(keyColumns, ", "))
	sb.WriteString(") DO UPDATE SET ")

	keys := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = true
	}
	first := true
	for _, col := range columns {
		if keys[col] {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(col)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(col)
	}

	return sb.String()
}
