package sink

import (
	"context"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Batcher buffers rows and hands them to Flush in groups of Size.
type Batcher struct {
	Size  int
	Flush func(ctx context.Context, rows []schema.Row) error

	rows    []schema.Row
	flushed int
}

// Add buffers row and flushes when the batch is full.
func (b *Batcher) Add(ctx context.Context, row schema.Row) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.Size {
		return b.Drain(ctx)
	}
	return nil
}

// Drain flushes whatever is buffered.
func (b *Batcher) Drain(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := b.Flush(ctx, b.rows); err != nil {
		return err
	}
	b.flushed += len(b.rows)
	b.rows = b.rows[:0]
	return nil
}

// Flushed returns the number of rows written so far.
func (b *Batcher) Flushed() int { return b.flushed }

// Pending returns the number of buffered rows.
func (b *Batcher) Pending() int { return len(b.rows) }
