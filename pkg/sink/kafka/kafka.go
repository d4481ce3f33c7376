// Package kafka publishes each row as a JSON message to a Kafka topic.
package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("kafka", New)
}

// Sink publishes rows.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	keyIndex int
	enc      *sink.RowEncoder
	batch    *sink.Batcher
	logger   *zap.Logger
}

// Config builds the producer configuration. Writes wait for all in-sync
// replicas and are retried by the client.
func Config(p sink.Params) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "jira-extract"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 30 * time.Second
	cfg.Producer.Idempotent = p.Config.BoolOption("idempotent", false)
	if cfg.Producer.Idempotent {
		cfg.Net.MaxOpenRequests = 1
	}

	switch p.Config.Option("compression", "none") {
	case "none":
		cfg.Producer.Compression = sarama.CompressionNone
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "kafka sink: unknown compression %q", p.Config.Option("compression", ""))
	}

	if v := p.Config.Option("version", ""); v != "" {
		version, err := sarama.ParseKafkaVersion(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "kafka sink: invalid version")
		}
		cfg.Version = version
	}
	return cfg, cfg.Validate()
}

// New creates a Kafka sink. Options: brokers (comma separated, required),
// key_column (default "key"), compression, version, idempotent. The topic
// is the table setting.
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	brokers := p.Config.Option("brokers", "")
	if err := sink.Require("kafka", "options.brokers", brokers, "table", p.Config.Table); err != nil {
		return nil, err
	}
	cfg, err := Config(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "kafka sink: invalid producer config")
	}
	enc, err := sink.NewRowEncoder(p.Columns)
	if err != nil {
		return nil, err
	}

	keyColumn := p.Config.Option("key_column", "key")
	keyIndex := -1
	for i, c := range p.Columns {
		if c.Name == keyColumn {
			keyIndex = i
			break
		}
	}

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), cfg)
	if err != nil {
		return nil, sink.SinkError(err, "failed to create Kafka producer")
	}
	return newSink(producer, p.Config.Table, keyIndex, enc, p), nil
}

func newSink(producer sarama.SyncProducer, topic string, keyIndex int, enc *sink.RowEncoder, p sink.Params) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		keyIndex: keyIndex,
		enc:      enc,
		logger:   p.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.send}
	return s
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) send(_ context.Context, rows []schema.Row) error {
	msgs := make([]*sarama.ProducerMessage, len(rows))
	for i, row := range rows {
		b, err := s.enc.Encode(row)
		if err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: s.topic,
			Value: sarama.ByteEncoder(append([]byte(nil), b...)),
			Headers: []sarama.RecordHeader{
				{Key: []byte("source"), Value: []byte("jira-extract")},
			},
		}
		if s.keyIndex >= 0 {
			if k := row.Value(s.keyIndex); k != nil {
				msg.Key = sarama.StringEncoder(sink.FormatValue(k, ""))
			}
		}
		msgs[i] = msg
	}
	if err := s.producer.SendMessages(msgs); err != nil {
		return sink.SinkError(err, "failed to publish messages")
	}
	s.logger.Debug("messages published", zap.Int("count", len(msgs)))
	return nil
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	return s.batch.Drain(ctx)
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.producer.Close()
}
