package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
)

// DLQProducer parks purchase events the history sink could not handle.
type DLQProducer struct {
	producer      sarama.AsyncProducer
	log           *slog.Logger
	topic         string
	originalTopic string
	done          chan struct{}
}

func NewDLQProducer(cfg config.Kafka, log *slog.Logger) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		return nil, errors.New("kafka dlq topic is empty")
	}

	sc, err := kafka.ProducerConfig(cfg, "purchase-worker-dlq")
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create dlq producer: %w", err)
	}

	return newDLQProducer(producer, cfg.DLQTopic, cfg.Topic, log), nil
}

func newDLQProducer(producer sarama.AsyncProducer, topic, originalTopic string, log *slog.Logger) *DLQProducer {
	p := &DLQProducer{
		producer:      producer,
		log:           log.With(slog.String("component", "dlq_producer")),
		topic:         topic,
		originalTopic: originalTopic,
		done:          make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// Send queues message for the DLQ topic. cause ends up in the Error header.
func (p *DLQProducer) Send(ctx context.Context, message []byte, cause error) error {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(message),
		Headers: []sarama.RecordHeader{
			{Key: []byte("Original-Topic"), Value: []byte(p.originalTopic)},
			{Key: []byte("Error"), Value: []byte(reason)},
		},
	}

	select {
	case p.producer.Input() <- msg:
		metrics.DLQMessages.Inc()
		return nil
	case <-ctx.Done():
		p.log.Warn("context cancelled before sending message to DLQ",
			slog.Any("error", ctx.Err()),
			slog.String("original_topic", p.originalTopic),
		)
		return ctx.Err()
	}
}

func (p *DLQProducer) Close() error {
	p.log.Info("closing DLQ producer")
	err := p.producer.Close()
	<-p.done
	if err != nil {
		p.log.Error("failed to close DLQ producer", slog.Any("error", err))
	}
	return err
}

func (p *DLQProducer) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.log.Error("failed to deliver message to DLQ",
			slog.String("topic", perr.Msg.Topic),
			slog.Any("error", perr.Err),
		)
	}
}
