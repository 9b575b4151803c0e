package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"adsync/internal/domain"
	"adsync/pkg/logger"
)

// WorkItem is one flattened (combination, month-chunk) unit.
type WorkItem struct {
	Combo domain.MatrixCombination
	Chunk domain.ChunkRange
}

// BuildWorkItems flattens the matrix into dispatch order: combinations
// outermost, chunks inner, matching the sequential driver.
func BuildWorkItems(combos []domain.MatrixCombination, chunks []domain.ChunkRange) []WorkItem {
	items := make([]WorkItem, 0, len(combos)*len(chunks))
	for _, combo := range combos {
		for _, chunk := range chunks {
			items = append(items, WorkItem{Combo: combo, Chunk: chunk})
		}
	}
	return items
}

// Progress exposes the running completed/total counters for the status
// endpoint. Reads are cheap and safe from any goroutine.
type Progress struct {
	total     int64
	completed atomic.Int64
	failed    atomic.Int64
	started   time.Time
}

func NewProgress(total int) *Progress {
	return &Progress{total: int64(total), started: time.Now()}
}

func (p *Progress) Total() int64 { return p.total }

func (p *Progress) Completed() int64 { return p.completed.Load() }

func (p *Progress) Failed() int64 { return p.failed.Load() }

func (p *Progress) Started() time.Time { return p.started }

// RunScheduled runs all work items with at most limit in flight, reporting
// completed/total after each unit. Dispatch follows list order; completion
// order is unconstrained. The first unretried failure cancels the rest.
func RunScheduled(ctx context.Context, svc *BackfillService, items []WorkItem, limit int, prog *Progress, log *logger.Logger) error {
	if limit < 1 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := svc.RunMonthlyChunk(ctx, item.Combo, item.Chunk)
			if err != nil {
				prog.failed.Add(1)
				return err
			}
			done := prog.completed.Add(1)
			log.WithContext(ctx).WithFields(map[string]any{
				"completed":     done,
				"total":         prog.total,
				"level":         string(item.Combo.Level),
				"breakdown_key": item.Combo.BreakdownKey,
				"since":         item.Chunk.Since.Format("2006-01-02"),
			}).Info("Chunk completed")
			return nil
		})
	}

	return g.Wait()
}
