package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

type fakeAPI struct {
	input *awss3.PutObjectInput
	body  string
	err   error
}

func (f *fakeAPI) Upload(_ context.Context, in *awss3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &manager.UploadOutput{Location: "s3://bucket/" + aws.ToString(in.Key)}, nil
}

func TestUpload(t *testing.T) {
	api := &fakeAPI{}
	u := NewWithAPI(api, "exports", nil)

	err := u.Upload(context.Background(), sink.Object{
		Key:         "jira/issues.csv",
		ContentType: "text/csv",
		Metadata:    map[string]string{"source": "jira-extract"},
	}, strings.NewReader("key\nPROJ-1\n"))
	require.NoError(t, err)

	assert.Equal(t, "exports", aws.ToString(api.input.Bucket))
	assert.Equal(t, "jira/issues.csv", aws.ToString(api.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(api.input.ContentType))
	assert.Equal(t, "jira-extract", api.input.Metadata["source"])
	assert.NotEmpty(t, api.input.Metadata["created"])
	assert.Equal(t, "key\nPROJ-1\n", api.body)
}

func TestUploadError(t *testing.T) {
	u := NewWithAPI(&fakeAPI{err: io.ErrUnexpectedEOF}, "exports", nil)
	err := u.Upload(context.Background(), sink.Object{Key: "k"}, strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), sink.UploadConfig{Provider: "s3"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
