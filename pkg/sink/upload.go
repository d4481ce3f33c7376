package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Object describes an upload.
type Object struct {
	Key         string
	ContentType string
	Metadata    map[string]string
}

// Uploader stores a finished file in object storage.
type Uploader interface {
	Upload(ctx context.Context, obj Object, body io.Reader) error
}

// UploaderFactory creates an uploader.
type UploaderFactory func(ctx context.Context, cfg UploadConfig, logger *zap.Logger) (Uploader, error)

// uploadingSink uploads the inner sink's file once it is finished.
type uploadingSink struct {
	Sink
	path     string
	cfg      UploadConfig
	uploader Uploader
	logger   *zap.Logger
}

func (u *uploadingSink) Finish(ctx context.Context) error {
	if err := u.Sink.Finish(ctx); err != nil {
		return err
	}

	f, err := os.Open(u.path)
	if err != nil {
		return SinkError(err, "failed to open output for upload")
	}
	defer f.Close()

	key := u.cfg.Key
	if key == "" {
		key = filepath.Base(u.path)
	}
	obj := Object{
		Key:         key,
		ContentType: ContentType(u.path),
		Metadata:    map[string]string{"source": "jira-extract"},
	}
	if err := u.uploader.Upload(ctx, obj, f); err != nil {
		return SinkError(err, "upload failed")
	}
	u.logger.Info("output uploaded",
		zap.String("provider", u.cfg.Provider),
		zap.String("bucket", u.cfg.Bucket),
		zap.String("key", key))

	if !u.cfg.KeepLocal {
		f.Close()
		if err := os.Remove(u.path); err != nil {
			u.logger.Warn("failed to remove local output", zap.Error(err))
		}
	}
	return nil
}

// ContentType guesses a MIME type from the output file name.
func ContentType(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".gz", ".zst", ".lz4", ".sz", ".s2", ".deflate":
		ext = filepath.Ext(path[:len(path)-len(ext)])
	}
	switch ext {
	case ".csv":
		return "text/csv"
	case ".json", ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".arrow":
		return "application/vnd.apache.arrow.file"
	case ".avro":
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}
