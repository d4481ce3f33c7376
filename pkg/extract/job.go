// Package extract orchestrates an extraction in one of three modes: guess
// a schema from a sample, preview a capped number of rows, or run the full
// windowed extraction into a sink.
package extract

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/pagination"
	"github.com/ajitpratap0/jira-extract/pkg/retry"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Mode selects what Execute does.
type Mode string

const (
	ModeGuess   Mode = "guess"
	ModePreview Mode = "preview"
	ModeRun     Mode = "run"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGuess, ModePreview, ModeRun:
		return m, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", s)
	}
}

// Report summarizes an execution.
type Report struct {
	Mode     Mode
	Rows     int
	Pages    int
	Columns  []schema.ColumnSpec // guess mode only
	Duration time.Duration
	// ConfigDiff is merged into the job configuration by callers that
	// persist it. Runs are not resumable, so it is always empty.
	ConfigDiff map[string]interface{}
}

// Observer is told about every finished execution.
type Observer interface {
	OnJobDone(report *Report, err error)
}

// Options are the values a job is built from.
type Options struct {
	// Identity is the user whose credential is checked before any search.
	Identity string
	Query    string
	Columns  []schema.ColumnSpec
	Policy   *retry.Policy
	Sink     core.RecordSink
}

// Job runs one extraction against a search client.
type Job struct {
	client   core.SearchClient
	identity string
	query    string
	attrs    *schema.AttributeMap
	sink     core.RecordSink
	policy   *retry.Policy

	logger       *zap.Logger
	tracer       trace.Tracer
	pageObserver pagination.PageObserver
	observer     Observer
}

// Option customizes a Job.
type Option func(*Job)

// WithLogger sets the job logger.
func WithLogger(l *zap.Logger) Option { return func(j *Job) { j.logger = l } }

// WithTracer sets the tracer for job and page spans.
func WithTracer(t trace.Tracer) Option { return func(j *Job) { j.tracer = t } }

// WithPageObserver is passed on to the pagination controller.
func WithPageObserver(o pagination.PageObserver) Option {
	return func(j *Job) { j.pageObserver = o }
}

// WithObserver sets the execution observer.
func WithObserver(o Observer) Option { return func(j *Job) { j.observer = o } }

// NewJob validates opts. Columns and Sink may be omitted for a job that
// only guesses.
func NewJob(client core.SearchClient, opts Options, options ...Option) (*Job, error) {
	if client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "search client is required")
	}
	if opts.Query == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "query is required")
	}

	j := &Job{
		client:   client,
		identity: opts.Identity,
		query:    opts.Query,
		sink:     opts.Sink,
		policy:   opts.Policy,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/ajitpratap0/jira-extract/pkg/extract"),
	}
	if j.policy == nil {
		j.policy = retry.New(retry.DefaultLimit, retry.DefaultInitialWait)
	}
	if len(opts.Columns) > 0 {
		attrs, err := schema.NewAttributeMap(opts.Columns)
		if err != nil {
			return nil, err
		}
		j.attrs = attrs
	}
	for _, o := range options {
		o(j)
	}
	return j, nil
}

// Columns returns the validated column list, nil for a guess-only job.
func (j *Job) Columns() []schema.ColumnSpec {
	if j.attrs == nil {
		return nil
	}
	return j.attrs.Columns()
}

// Execute runs the job in mode.
func (j *Job) Execute(ctx context.Context, mode Mode) (*Report, error) {
	ctx, span := j.tracer.Start(ctx, "extract."+string(mode),
		trace.WithAttributes(attribute.String("extract.mode", string(mode))))
	defer span.End()

	start := time.Now()
	report := &Report{Mode: mode, ConfigDiff: map[string]interface{}{}}

	var err error
	switch mode {
	case ModeGuess:
		err = j.guess(ctx, report)
	case ModePreview:
		err = j.preview(ctx, report)
	case ModeRun:
		err = j.run(ctx, report)
	default:
		err = errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", mode)
	}
	report.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("extract.rows", report.Rows), attribute.Int("extract.pages", report.Pages))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.TypeOf(err)))
		j.logger.Error("extraction failed",
			zap.String("mode", string(mode)),
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Int("rows", report.Rows),
			zap.Error(err))
	} else {
		j.logger.Info("extraction finished",
			zap.String("mode", string(mode)),
			zap.Int("rows", report.Rows),
			zap.Int("pages", report.Pages),
			zap.Duration("duration", report.Duration))
	}
	if j.observer != nil {
		j.observer.OnJobDone(report, err)
	}
	return report, err
}

// Guess is Execute(ctx, ModeGuess).
func (j *Job) Guess(ctx context.Context) (*Report, error) { return j.Execute(ctx, ModeGuess) }

// Preview is Execute(ctx, ModePreview).
func (j *Job) Preview(ctx context.Context) (*Report, error) { return j.Execute(ctx, ModePreview) }

// Run is Execute(ctx, ModeRun).
func (j *Job) Run(ctx context.Context) (*Report, error) { return j.Execute(ctx, ModeRun) }

func (j *Job) controller() *pagination.Controller {
	opts := []pagination.Option{pagination.WithLogger(j.logger)}
	if j.pageObserver != nil {
		opts = append(opts, pagination.WithPageObserver(j.pageObserver))
	}
	return pagination.NewController(j.client, j.policy, opts...)
}

func (j *Job) authenticate(ctx context.Context) error {
	if err := j.client.CheckCredential(ctx, j.identity); err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeInternal {
			return errors.Wrap(err, errors.ErrorTypeAuthentication, "credential check failed")
		}
		return err
	}
	return nil
}

func (j *Job) requireSink() error {
	if j.attrs == nil {
		return errors.New(errors.ErrorTypeConfig, "columns are required")
	}
	if j.sink == nil {
		return errors.New(errors.ErrorTypeConfig, "sink is required")
	}
	return nil
}

func (j *Job) guess(ctx context.Context, report *Report) error {
	if err := j.authenticate(ctx); err != nil {
		return err
	}

	var sample []schema.RawRecord
	err := j.controller().RunBounded(ctx, j.query, core.GuessRecordsCount,
		func(_ context.Context, _ pagination.PageCursor, recs []schema.RawRecord) error {
			sample = recs
			return nil
		})
	if err != nil {
		return err
	}

	report.Pages = 1
	report.Columns = schema.GuessColumns(sample)
	j.logger.Debug("guessed columns", zap.Int("sample", len(sample)), zap.Int("columns", len(report.Columns)))
	return nil
}

func (j *Job) preview(ctx context.Context, report *Report) error {
	if err := j.requireSink(); err != nil {
		return err
	}
	if err := j.authenticate(ctx); err != nil {
		return err
	}

	j.logger.Debug("preview fetches a capped number of records", zap.Int("max_results", core.PreviewRecordsCount))
	err := j.controller().RunBounded(ctx, j.query, core.PreviewRecordsCount, j.emitPage(report))
	if err != nil {
		return err
	}
	report.Pages = 1
	return j.finish(ctx)
}

func (j *Job) run(ctx context.Context, report *Report) error {
	if err := j.requireSink(); err != nil {
		return err
	}
	if err := j.authenticate(ctx); err != nil {
		return err
	}

	pages, err := j.controller().Run(ctx, j.query, core.PageSize, j.emitPage(report))
	report.Pages = pages
	if err != nil {
		return err
	}
	return j.finish(ctx)
}

// emitPage casts a whole page before appending any row of it, so a page
// that fails to cast leaves the sink untouched and a retried page is
// never half-delivered.
func (j *Job) emitPage(report *Report) pagination.PageHandler {
	return func(ctx context.Context, cursor pagination.PageCursor, recs []schema.RawRecord) error {
		ctx, span := j.tracer.Start(ctx, "extract.page",
			trace.WithAttributes(
				attribute.Int("page.start_at", cursor.StartAt),
				attribute.Int("page.records", len(recs))))
		defer span.End()

		rows := make([]schema.Row, 0, len(recs))
		for i, rec := range recs {
			row, err := j.attrs.BuildRow(rec)
			if err != nil {
				if e, ok := err.(*errors.Error); ok {
					e.WithDetail("record", cursor.StartAt+i)
				}
				span.RecordError(err)
				return err
			}
			rows = append(rows, row)
		}

		for _, row := range rows {
			if err := j.sink.Append(ctx, row); err != nil {
				span.RecordError(err)
				return errors.Wrap(err, errors.ErrorTypeSink, "append row")
			}
			report.Rows++
		}
		return nil
	}
}

func (j *Job) finish(ctx context.Context) error {
	if err := j.sink.Finish(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "finish sink")
	}
	return nil
}
