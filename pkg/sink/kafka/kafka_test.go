package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

var columns = []schema.ColumnSpec{
	{Name: "key", Type: schema.TypeString},
	{Name: "votes", Type: schema.TypeLong},
}

func TestSendsBatches(t *testing.T) {
	ctx := context.Background()
	producer := mocks.NewSyncProducer(t, nil)

	var values []string
	var keys []string
	check := func(msg *sarama.ProducerMessage) error {
		v, err := msg.Value.Encode()
		require.NoError(t, err)
		values = append(values, string(v))
		if msg.Key != nil {
			k, err := msg.Key.Encode()
			require.NoError(t, err)
			keys = append(keys, string(k))
		}
		assert.Equal(t, "issues", msg.Topic)
		return nil
	}
	for i := 0; i < 3; i++ {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(check)
	}

	enc, err := sink.NewRowEncoder(columns)
	require.NoError(t, err)
	s := newSink(producer, "issues", 0, enc, sink.Params{Config: sink.Config{BatchSize: 2}})

	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-1", int64(1))))
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-2", int64(2))))
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-3", nil)))
	require.NoError(t, s.Finish(ctx))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		`{"key":"PROJ-1","votes":1}`,
		`{"key":"PROJ-2","votes":2}`,
		`{"key":"PROJ-3","votes":null}`,
	}, values)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3"}, keys)
}

func TestSendFailureIsSinkError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	enc, err := sink.NewRowEncoder(columns)
	require.NoError(t, err)
	s := newSink(producer, "issues", -1, enc, sink.Params{Config: sink.Config{BatchSize: 1}})

	err = s.Append(context.Background(), schema.NewRow("PROJ-1", int64(1)))
	require.Error(t, err)
	require.NoError(t, s.Close())
}

func TestConfig(t *testing.T) {
	cfg, err := Config(sink.Params{Config: sink.Config{Options: map[string]string{"compression": "zstd", "version": "2.8.0"}}})
	require.NoError(t, err)
	assert.Equal(t, sarama.CompressionZSTD, cfg.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)

	_, err = Config(sink.Params{Config: sink.Config{Options: map[string]string{"compression": "brotli"}}})
	require.Error(t, err)
}
