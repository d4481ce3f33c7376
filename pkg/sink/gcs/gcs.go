// Package gcs uploads finished output files to Google Cloud Storage.
package gcs

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.RegisterUploader("gcs", New)
}

// Uploader writes objects into one bucket.
type Uploader struct {
	bucket *storage.BucketHandle
	logger *zap.Logger
}

// New creates a GCS uploader. Without a credentials file the application
// default credentials are used.
func New(ctx context.Context, cfg sink.UploadConfig, logger *zap.Logger) (sink.Uploader, error) {
	if err := sink.Require("gcs upload", "bucket", cfg.Bucket); err != nil {
		return nil, err
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return &Uploader{bucket: client.Bucket(cfg.Bucket), logger: logger}, nil
}

// Upload implements sink.Uploader.
func (u *Uploader) Upload(ctx context.Context, obj sink.Object, body io.Reader) error {
	w := u.bucket.Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = map[string]string{"created": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range obj.Metadata {
		w.Metadata[k] = v
	}

	n, err := io.Copy(w, body)
	if err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to write to GCS")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close GCS writer")
	}
	u.logger.Debug("object stored", zap.String("object", obj.Key), zap.Int64("bytes", n))
	return nil
}
