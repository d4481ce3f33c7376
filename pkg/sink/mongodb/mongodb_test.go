package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func TestDocument(t *testing.T) {
	created := time.Unix(1700000000, 0).UTC()
	doc := Document([]schema.ColumnSpec{
		{Name: "key", Type: schema.TypeString},
		{Name: "created", Type: schema.TypeTimestamp},
		{Name: "votes", Type: schema.TypeLong},
	}, schema.NewRow("PROJ-1", created, nil))

	assert.Equal(t, bson.D{
		{Key: "key", Value: "PROJ-1"},
		{Key: "created", Value: created},
		{Key: "votes", Value: nil},
	}, doc)

	_, err := bson.Marshal(doc)
	require.NoError(t, err)
}

func TestNewRequiresDatabaseAndCollection(t *testing.T) {
	_, err := New(context.Background(), sink.Params{Config: sink.Config{DSN: "mongodb://localhost", Table: "issues"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
