// Package pagination walks a search result set in fixed-size windows.
package pagination

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/retry"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// PageCursor tracks the position of a windowed run.
type PageCursor struct {
	StartAt    int
	PageSize   int
	TotalCount int
}

// Page returns the 1-based number of the window starting at StartAt.
func (c PageCursor) Page() int {
	return c.StartAt/c.PageSize + 1
}

// LastPage returns ceil(TotalCount / PageSize).
func (c PageCursor) LastPage() int {
	return (c.TotalCount + c.PageSize - 1) / c.PageSize
}

// Done reports whether every window has been visited.
func (c PageCursor) Done() bool {
	return c.StartAt >= c.TotalCount
}

// Advance moves to the next window without passing TotalCount.
func (c *PageCursor) Advance() {
	c.StartAt += c.PageSize
	if c.StartAt > c.TotalCount {
		c.StartAt = c.TotalCount
	}
}

// PageHandler consumes the records of one window. It runs inside the
// page's retry scope: a transient error re-fetches the page, anything else
// ends the run.
type PageHandler func(ctx context.Context, cursor PageCursor, records []schema.RawRecord) error

// PageObserver is notified after each handled page.
type PageObserver interface {
	OnPage(cursor PageCursor, records int)
}

// Controller drives search calls window by window.
type Controller struct {
	client   core.SearchClient
	policy   *retry.Policy
	logger   *zap.Logger
	observer PageObserver
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for page progress.
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithPageObserver sets the per page observer.
func WithPageObserver(o PageObserver) Option { return func(c *Controller) { c.observer = o } }

// NewController creates a controller. A nil policy never retries.
func NewController(client core.SearchClient, policy *retry.Policy, opts ...Option) *Controller {
	if policy == nil {
		policy = retry.New(0, 0)
	}
	c := &Controller{
		client: client,
		policy: policy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run counts the records matching query and hands them to onPage window by
// window, in increasing StartAt order. It returns the number of pages.
func (c *Controller) Run(ctx context.Context, query string, pageSize int, onPage PageHandler) (int, error) {
	if pageSize <= 0 {
		return 0, errors.Newf(errors.ErrorTypeConfig, "page size must be positive, got %d", pageSize)
	}

	total, err := retry.Value(ctx, c.policy, func(ctx context.Context) (int, error) {
		return c.client.TotalCount(ctx, query)
	})
	if err != nil {
		return 0, err
	}

	cursor := PageCursor{PageSize: pageSize, TotalCount: total}
	c.logger.Info("starting paginated search",
		zap.Int("total_count", total),
		zap.Int("page_size", pageSize),
		zap.Int("last_page", cursor.LastPage()))

	pages := 0
	for ; !cursor.Done(); cursor.Advance() {
		c.logger.Debug("fetching page",
			zap.Int("page", cursor.Page()),
			zap.Int("last_page", cursor.LastPage()),
			zap.Int("start_at", cursor.StartAt))

		current := cursor
		var fetched int
		err := c.policy.Do(ctx, func(ctx context.Context) error {
			records, err := c.client.SearchIssues(ctx, query, core.SearchOptions{StartAt: current.StartAt, MaxResults: current.PageSize})
			if err != nil {
				return err
			}
			fetched = len(records)
			return onPage(ctx, current, records)
		})
		if err != nil {
			return pages, errors.Wrap(err, errors.TypeOf(err), "page failed").
				WithDetail("page", current.Page()).
				WithDetail("start_at", current.StartAt)
		}

		pages++
		if c.observer != nil {
			c.observer.OnPage(current, fetched)
		}
	}

	return pages, nil
}

// RunBounded issues a single search for at most maxResults records and
// hands the result to onPage once. No count call is made.
func (c *Controller) RunBounded(ctx context.Context, query string, maxResults int, onPage PageHandler) error {
	if maxResults <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "max results must be positive, got %d", maxResults)
	}

	cursor := PageCursor{PageSize: maxResults}
	var fetched int
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		records, err := c.client.SearchIssues(ctx, query, core.SearchOptions{MaxResults: maxResults})
		if err != nil {
			return err
		}
		if len(records) > maxResults {
			records = records[:maxResults]
		}
		fetched = len(records)
		cursor.TotalCount = fetched
		return onPage(ctx, cursor, records)
	})
	if err != nil {
		return err
	}

	if c.observer != nil {
		c.observer.OnPage(cursor, fetched)
	}
	return nil
}
