package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/jira-extract/internal/runner"
	"github.com/ajitpratap0/jira-extract/pkg/config"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/extract"
	"github.com/ajitpratap0/jira-extract/pkg/logger"
	"github.com/ajitpratap0/jira-extract/pkg/observability"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"

	// Register every sink and uploader
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/all"
)

var version = "0.1.0"

// cli holds what the persistent flags resolve to.
type cli struct {
	configPath  string
	envFile     string
	logLevel    string
	metricsAddr string
	write       bool

	viper *viper.Viper
	out   io.Writer
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error kind to a process exit status.
func exitCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeConfig:
		return 2
	case errors.ErrorTypeAuthentication:
		return 3
	case errors.ErrorTypeData:
		return 4
	case errors.ErrorTypeSink:
		return 5
	default:
		return 1
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{viper: config.NewViper(), out: out}

	root := &cobra.Command{
		Use:           "jira-extract",
		Short:         "Extract Jira issues into files, databases and queues",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `jira-extract runs a JQL search page by page, casts every issue to a
configured column list and delivers the rows to a sink.

Example:
  jira-extract guess --config job.yaml --write
  jira-extract preview --config job.yaml
  jira-extract run --config job.yaml --metrics-addr :9090`,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "config.yaml", "Path to the job configuration YAML file")
	flags.StringVar(&c.envFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	flags.StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	_ = c.viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.viper.BindPFlag("observability.metrics_addr", flags.Lookup("metrics-addr"))

	root.AddCommand(
		c.modeCmd(extract.ModeRun, "run", "Extract every matching issue into the sink"),
		c.modeCmd(extract.ModePreview, "preview", "Deliver the first 15 issues, to stdout when no sink is set"),
		c.guessCmd(),
		c.sinksCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jira-extract v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (c *cli) sinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sinks",
		Short: "List available sinks",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Available sinks:")
			for _, name := range sink.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
			}
		},
	}
}

func (c *cli) modeCmd(mode extract.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.execute(cmd.Context(), mode)
			if err != nil {
				return err
			}
			if mode == extract.ModeRun {
				fmt.Fprintf(cmd.ErrOrStderr(), "extracted %d rows in %d pages (%s)\n",
					report.Rows, report.Pages, report.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

func (c *cli) guessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guess",
		Short: "Sample 10 issues and print a column list for them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.execute(cmd.Context(), extract.ModeGuess)
			if err != nil {
				return err
			}
			if c.write {
				if err := config.MergeColumns(c.configPath, report.Columns); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d columns to %s\n", len(report.Columns), c.configPath)
				return nil
			}
			return printColumns(cmd.OutOrStdout(), report.Columns)
		},
	}
	cmd.Flags().BoolVar(&c.write, "write", false, "Merge the guessed columns into the configuration file")
	return cmd
}

func printColumns(w io.Writer, columns []schema.ColumnSpec) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}{"columns": columns}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to print columns")
	}
	return enc.Close()
}

// execute loads the configuration and runs one job with logging, metrics
// and tracing set up around it.
func (c *cli) execute(ctx context.Context, mode extract.Mode) (*extract.Report, error) {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load env file")
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Overlay(c.viper)

	if err := logger.Init(cfg.Log); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Get().With(zap.String("component", "jira-extract-cli"))

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.Tracing, version, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	recorder := observability.NewRecorder()
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv, err := observability.StartServer(addr, recorder, log)
		if err != nil {
			return nil, err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	log.Info("starting job",
		zap.String("mode", string(mode)),
		zap.String("config", c.configPath),
		zap.String("uri", cfg.URI),
		zap.String("sink", cfg.Sink.Type))

	r := runner.New(cfg, log, runner.WithRecorder(recorder), runner.WithOutput(c.out))
	return r.Execute(ctx, mode)
}
