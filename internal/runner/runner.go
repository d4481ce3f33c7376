// Package runner assembles an extraction from a job configuration: the
// Jira client, the retry policy, the sink and the observers.
package runner

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/clients"
	"github.com/ajitpratap0/jira-extract/pkg/config"
	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/extract"
	"github.com/ajitpratap0/jira-extract/pkg/jira"
	"github.com/ajitpratap0/jira-extract/pkg/logger"
	"github.com/ajitpratap0/jira-extract/pkg/observability"
	"github.com/ajitpratap0/jira-extract/pkg/retry"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
	"github.com/ajitpratap0/jira-extract/pkg/sink/stdout"
)

// Runner executes one job configuration.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *observability.Recorder
	monitor  *observability.ResourceMonitor
	client   core.SearchClient
	out      io.Writer
	sleep    retry.SleepFunc
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecorder exports metrics through r.
func WithRecorder(r *observability.Recorder) Option { return func(x *Runner) { x.recorder = r } }

// WithSearchClient replaces the Jira client.
func WithSearchClient(c core.SearchClient) Option { return func(x *Runner) { x.client = c } }

// WithOutput sets where previews without a sink are printed.
func WithOutput(w io.Writer) Option { return func(x *Runner) { x.out = w } }

// WithSleep replaces the retry backoff sleep.
func WithSleep(s retry.SleepFunc) Option { return func(x *Runner) { x.sleep = s } }

// New creates a runner for cfg.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		cfg:     cfg,
		logger:  log,
		monitor: observability.NewResourceMonitor(),
		out:     os.Stdout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Execute validates the configuration for mode and runs the job.
func (r *Runner) Execute(ctx context.Context, mode extract.Mode) (report *extract.Report, err error) {
	if err := r.cfg.Validate(mode); err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, logger.JobIDKey, uuid.NewString())
	ctx = context.WithValue(ctx, logger.ModeKey, string(mode))
	if name := r.sinkName(mode); name != "" {
		ctx = context.WithValue(ctx, logger.SinkKey, name)
	}
	log := logger.WithContext(ctx, r.logger)

	client := r.client
	if client == nil {
		var opts []clients.Option
		if r.recorder != nil {
			opts = append(opts, clients.WithRequestObserver(r.recorder))
		}
		jc, err := jira.NewClient(r.cfg.Jira(), log, opts...)
		if err != nil {
			return nil, err
		}
		defer jc.Close()
		client = jc
	}

	observers := retry.Observers{retry.LogObserver{Logger: log, Op: "jira"}}
	if r.recorder != nil {
		observers = append(observers, r.recorder)
	}
	policyOpts := []retry.Option{retry.WithObserver(observers)}
	if r.sleep != nil {
		policyOpts = append(policyOpts, retry.WithSleep(r.sleep))
	}

	var out sink.Sink
	if mode != extract.ModeGuess {
		out, err = r.openSink(ctx, mode, log)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := out.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, errors.ErrorTypeSink, "failed to close sink")
			}
		}()
	}

	jobOpts := []extract.Option{extract.WithLogger(log)}
	if r.recorder != nil {
		jobOpts = append(jobOpts, extract.WithPageObserver(r.recorder), extract.WithObserver(r.recorder))
	}
	opts := extract.Options{
		Identity: r.cfg.Username,
		Query:    r.cfg.JQL,
		Policy:   r.cfg.RetryPolicy(policyOpts...),
	}
	if mode != extract.ModeGuess {
		opts.Columns = r.cfg.Columns
		opts.Sink = out
	}
	job, err := extract.NewJob(client, opts, jobOpts...)
	if err != nil {
		return nil, err
	}

	report, err = job.Execute(ctx, mode)

	usage := r.monitor.Snapshot()
	if r.recorder != nil {
		r.recorder.SetResources(usage)
	}
	log.Debug("resource usage", usage.Fields()...)
	return report, err
}

// sinkName is the sink mode writes to, empty for guess.
func (r *Runner) sinkName(mode extract.Mode) string {
	switch {
	case mode == extract.ModeGuess:
		return ""
	case r.cfg.Sink.Type != "":
		return r.cfg.Sink.Type
	default:
		return "stdout"
	}
}

// openSink creates the configured sink. A preview without a sink prints a
// table to the runner's output.
func (r *Runner) openSink(ctx context.Context, mode extract.Mode, log *zap.Logger) (sink.Sink, error) {
	if mode == extract.ModePreview && r.cfg.Sink.Type == "" {
		return stdout.NewWriter(r.out, r.cfg.Columns), nil
	}
	return sink.New(ctx, r.cfg.Sink, r.cfg.Columns, log)
}
