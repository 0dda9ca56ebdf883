package publish

import (
	"context"
	"fmt"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the part of *kafka.Writer the publisher uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per snapshot, keyed by symbol so that a
// symbol's snapshots stay on one partition and in order.
type KafkaPublisher struct {
	writer  KafkaWriter
	timeout time.Duration
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewKafkaPublisher(cfg models.MPublishConfig, log *logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaPublisherWithWriter(writer, cfg.Timeout, log)
}

func NewKafkaPublisherWithWriter(writer KafkaWriter, timeout time.Duration, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		timeout: timeoutOrDefault(timeout),
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, snapshots []models.MSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(snapshots))
	for _, s := range snapshots {
		payload, err := encode(s)
		if err != nil {
			return fmt.Errorf("encode snapshot %s/%s: %w", s.Symbol, s.Window, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(s.Symbol),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "window", Value: []byte(s.Window)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
