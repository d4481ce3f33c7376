// Package s3 uploads finished output files to Amazon S3.
package s3

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.RegisterUploader("s3", New)
}

// PartSize is the multipart chunk size.
const PartSize = 16 * 1024 * 1024

// API is the part of the upload manager the uploader uses.
type API interface {
	Upload(ctx context.Context, input *awss3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Uploader puts objects into one bucket.
type Uploader struct {
	api    API
	bucket string
	logger *zap.Logger
}

// New creates an S3 uploader using the default credential chain.
func New(ctx context.Context, cfg sink.UploadConfig, logger *zap.Logger) (sink.Uploader, error) {
	if err := sink.Require("s3 upload", "bucket", cfg.Bucket); err != nil {
		return nil, err
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, awsconfig.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := awss3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = PartSize
		u.Concurrency = 4
	})
	return NewWithAPI(uploader, cfg.Bucket, logger), nil
}

// NewWithAPI creates an uploader over api.
func NewWithAPI(api API, bucket string, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{api: api, bucket: bucket, logger: logger}
}

// Upload implements sink.Uploader.
func (u *Uploader) Upload(ctx context.Context, obj sink.Object, body io.Reader) error {
	meta := map[string]string{"created": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range obj.Metadata {
		meta[k] = v
	}
	out, err := u.api.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(obj.Key),
		Body:        body,
		ContentType: aws.String(obj.ContentType),
		Metadata:    meta,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3")
	}
	u.logger.Debug("object stored", zap.String("location", out.Location))
	return nil
}
