package intake

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures readers and the dead-letter writer.
type KafkaConfig struct {
	Brokers []string
	GroupID string
	// MaxWait bounds how long a fetch waits for new data.
	MaxWait time.Duration
}

// KafkaSource reads one topic as part of a consumer group. Offsets are only
// committed through Commit.
type KafkaSource struct {
	r *kafka.Reader
}

// NewKafkaSource returns a source for topic.
func NewKafkaSource(cfg KafkaConfig, topic string) *KafkaSource {
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 500 * time.Millisecond
	}
	lg := log.With().Str("component", "kafka-reader").Str("topic", topic).Logger()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        maxWait,
		CommitInterval: 0, // synchronous commits
		StartOffset:    kafka.FirstOffset,
		Logger:         kafka.LoggerFunc(func(msg string, args ...interface{}) { lg.Debug().Msgf(msg, args...) }),
		ErrorLogger:    kafka.LoggerFunc(func(msg string, args ...interface{}) { lg.Error().Msgf(msg, args...) }),
	})
	return &KafkaSource{r: r}
}

// Fetch returns the next message without committing it.
func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	m, err := s.r.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	out := Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}
	for _, h := range m.Headers {
		out.Headers = append(out.Headers, Header{Key: h.Key, Value: h.Value})
	}
	return out, nil
}

// Commit acknowledges msg and every earlier offset of its partition.
func (s *KafkaSource) Commit(ctx context.Context, msg Message) error {
	return s.r.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

// Close leaves the group and releases the reader.
func (s *KafkaSource) Close() error { return s.r.Close() }

// KafkaSink writes dead-lettered messages. The topic is taken from each
// message.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink returns a sink that waits for all in-sync replicas.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	lg := log.With().Str("component", "kafka-writer").Logger()
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { lg.Debug().Msgf(msg, args...) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { lg.Error().Msgf(msg, args...) }),
	}}
}

// Publish writes msg synchronously.
func (s *KafkaSink) Publish(ctx context.Context, msg Message) error {
	km := kafka.Message{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  msg.Time,
	}
	for _, h := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}
	return s.w.WriteMessages(ctx, km)
}

// Close flushes pending writes.
func (s *KafkaSink) Close() error { return s.w.Close() }

// DeadLetterLogger is a Processor for dead-letter topics. It logs each
// payload at error level so failed events are visible to operators.
type DeadLetterLogger struct{}

// Process logs msg and lets it be committed.
func (DeadLetterLogger) Process(_ context.Context, msg Message) Outcome {
	ev := log.Error().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Bytes("payload", msg.Value)
	for _, h := range msg.Headers {
		if strings.HasPrefix(h.Key, "x-") {
			ev = ev.Bytes(h.Key, h.Value)
		}
	}
	ev.Msg("dead-lettered event")
	return OutcomeDropped
}
