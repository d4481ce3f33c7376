// Package sink provides the record sinks typed rows are delivered to, and
// the registry they are created from by name.
package sink

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Sink is a core.RecordSink owning resources. Close is safe to call after
// Finish and after a failed run.
type Sink interface {
	core.RecordSink
	Close() error
}

// UploadConfig pushes a finished output file to object storage.
type UploadConfig struct {
	Provider        string `yaml:"provider"` // s3 or gcs
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	CredentialsFile string `yaml:"credentials_file"`
	// KeepLocal keeps the local file after a successful upload.
	KeepLocal bool `yaml:"keep_local"`
}

// Config selects and configures a sink.
type Config struct {
	Type        string            `yaml:"type"`
	Path        string            `yaml:"path"`
	Compression string            `yaml:"compression"`
	BatchSize   int               `yaml:"batch_size"`
	DSN         string            `yaml:"dsn"`
	Table       string            `yaml:"table"`
	Options     map[string]string `yaml:"options"`
	Upload      *UploadConfig     `yaml:"upload"`
}

// DefaultBatchSize is used by batching sinks when BatchSize is unset.
const DefaultBatchSize = 500

// Batch returns BatchSize or DefaultBatchSize.
func (c Config) Batch() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// Option returns Options[key] or def.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// BoolOption parses Options[key] as a bool, def when missing or invalid.
func (c Config) BoolOption(key string, def bool) bool {
	b, err := strconv.ParseBool(c.Option(key, ""))
	if err != nil {
		return def
	}
	return b
}

// Require returns a config error naming the first empty value.
func Require(sinkType string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return errors.Newf(errors.ErrorTypeConfig, "%s sink: %s is required", sinkType, pairs[i])
		}
	}
	return nil
}

// Params are handed to every factory.
type Params struct {
	Config  Config
	Columns []schema.ColumnSpec
	Logger  *zap.Logger
}

// Factory creates a sink.
type Factory func(ctx context.Context, p Params) (Sink, error)

// SinkError classifies err as a sink failure.
func SinkError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.ErrorTypeSink, msg)
}
