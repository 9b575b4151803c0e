package usecase

import (
	"fmt"
	"time"

	"adsync/internal/domain"
)

// MonthChunks splits [since, until] into calendar-month-aligned chunks of at
// most chunkSize months each. The chunks cover the span exactly: the first
// starts at since, the last ends at until, no gaps, no overlaps. The final
// chunk is short when until falls mid-month.
func MonthChunks(since, until time.Time, chunkSize int) ([]domain.ChunkRange, error) {
	since = midnightUTC(since)
	until = midnightUTC(until)

	if until.Before(since) {
		return nil, fmt.Errorf("%w: since=%s until=%s",
			domain.ErrInvalidRange, since.Format("2006-01-02"), until.Format("2006-01-02"))
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1 month, got %d", chunkSize)
	}

	var chunks []domain.ChunkRange
	cursor := since
	for !cursor.After(until) {
		// Anchor month arithmetic to the first of the month so late days of
		// the month cannot overflow into the wrong one.
		monthStart := firstDayOfMonth(cursor)
		windowEnd := lastDayOfMonth(monthStart.AddDate(0, chunkSize-1, 0))
		chunkUntil := windowEnd
		if until.Before(chunkUntil) {
			chunkUntil = until
		}
		chunks = append(chunks, domain.ChunkRange{Since: cursor, Until: chunkUntil})
		cursor = monthStart.AddDate(0, chunkSize, 0)
	}

	return chunks, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(t time.Time) time.Time {
	return firstDayOfMonth(t).AddDate(0, 1, -1)
}
