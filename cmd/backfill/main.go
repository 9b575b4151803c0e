package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"adsync/internal/delivery"
	"adsync/internal/domain"
	"adsync/internal/infrastructure"
	"adsync/internal/usecase"
	"adsync/pkg/config"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

type cliFlags struct {
	tenant      string
	account     string
	since       string
	until       string
	chunkSize   int
	concurrency int
	preset      string
	levels      string
	breakdowns  string
	actionTimes string
	attrWindows string
	statusAddr  string
}

func main() {
	var f cliFlags
	flag.StringVar(&f.tenant, "tenant", os.Getenv("TENANT_ID"), "Tenant identifier (required). Env: TENANT_ID")
	flag.StringVar(&f.account, "account", os.Getenv("ACCOUNT_ID"), "Ad account identifier (required). Env: ACCOUNT_ID")
	flag.StringVar(&f.since, "since", "", "Backfill start date, YYYY-MM-DD (required)")
	flag.StringVar(&f.until, "until", "", "Backfill end date, YYYY-MM-DD (required)")
	flag.IntVar(&f.chunkSize, "chunk-size", 1, "Months per API window")
	flag.IntVar(&f.concurrency, "concurrency", 2, "Chunks processed in parallel")
	flag.StringVar(&f.preset, "preset", "full", "Dimension preset: full, lean, accounts")
	flag.StringVar(&f.levels, "levels", "", "Comma-separated level override (account,campaign,adset,ad)")
	flag.StringVar(&f.breakdowns, "breakdowns", "", "Comma-separated breakdown key override")
	flag.StringVar(&f.actionTimes, "action-times", "", "Comma-separated action report time override")
	flag.StringVar(&f.attrWindows, "attr-windows", "", "Comma-separated attribution window override")
	flag.StringVar(&f.statusAddr, "status-addr", os.Getenv("STATUS_ADDR"), "Serve /health, /status and /metrics on this address, e.g. :6060. Env: STATUS_ADDR")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	if err := run(f, cfg, log); err != nil {
		log.WithError(err).Error("Backfill failed")
		os.Exit(1)
	}
}

func run(f cliFlags, cfg *config.Config, log *logger.Logger) error {
	if f.tenant == "" || f.account == "" {
		return fmt.Errorf("both --tenant and --account are required")
	}
	since, err := parseDate(f.since, "--since")
	if err != nil {
		return err
	}
	until, err := parseDate(f.until, "--until")
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	ctx := context.WithValue(context.Background(), logger.RunIDKey, runID)

	overrides, err := buildOverrides(f)
	if err != nil {
		return err
	}
	runnerCfg := usecase.ResolveRunnerConfig(overrides)
	combos := usecase.BuildMatrixCombinations(runnerCfg)

	chunks, err := usecase.MonthChunks(since, until, f.chunkSize)
	if err != nil {
		return err
	}

	m := metrics.New()

	client := infrastructure.NewReportClient(
		cfg.External.InsightsAPIURL,
		cfg.Backfill.RequestTimeout,
		cfg.Backfill.PollInterval,
		cfg.Backfill.PollTimeout,
		cfg.Backfill.RateLimitPerSecond,
		log, m,
	)

	store, closeStore, err := infrastructure.NewInsightRepository(ctx, cfg.Storage.DSN, cfg.Storage.BatchSize, log, m)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer closeStore()

	svc := usecase.NewBackfillService(
		client, store, log, m,
		f.tenant, f.account, cfg.External.AccessToken,
		cfg.Backfill.MaxAttempts, cfg.Backfill.RetryBaseDelay,
	)

	items := usecase.BuildWorkItems(combos, chunks)
	progress := usecase.NewProgress(len(items))

	if f.statusAddr != "" {
		delivery.NewStatusServer(runID, progress, log).Serve(f.statusAddr)
	}

	log.WithContext(ctx).WithFields(map[string]any{
		"tenant":       f.tenant,
		"account":      f.account,
		"since":        since.Format("2006-01-02"),
		"until":        until.Format("2006-01-02"),
		"combinations": len(combos),
		"chunks":       len(chunks),
		"units":        len(items),
		"concurrency":  f.concurrency,
		"preset":       f.preset,
	}).Info("Starting insights backfill")

	start := time.Now()
	runErr := usecase.RunScheduled(ctx, svc, items, f.concurrency, progress, log)

	summary := log.WithContext(ctx).WithFields(map[string]any{
		"completed": progress.Completed(),
		"failed":    progress.Failed(),
		"total":     progress.Total(),
		"duration":  time.Since(start).String(),
	})
	if runErr != nil {
		summary.WithError(runErr).Error("Backfill finished with errors")
		return runErr
	}
	summary.Info("Backfill completed")
	return nil
}

func buildOverrides(f cliFlags) (domain.ConfigOverrides, error) {
	overrides, ok := usecase.Presets[f.preset]
	if !ok {
		return domain.ConfigOverrides{}, fmt.Errorf("unknown preset %q", f.preset)
	}

	// Explicit per-dimension flags win over the preset.
	if v := splitList(f.levels); len(v) > 0 {
		overrides.Levels = v
	}
	if v := splitList(f.breakdowns); len(v) > 0 {
		overrides.BreakdownKeys = v
	}
	if v := splitList(f.actionTimes); len(v) > 0 {
		overrides.ActionReportTimes = v
	}
	if v := splitList(f.attrWindows); len(v) > 0 {
		overrides.AttributionWindows = v
	}
	return overrides, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDate(s, flagName string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", flagName)
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q, want YYYY-MM-DD", flagName, s)
	}
	return t, nil
}
