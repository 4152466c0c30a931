// Package events publishes committed purchases to the event bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka"
)

type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	log      *slog.Logger
	done     chan struct{}
}

func NewProducer(cfg config.Kafka, log *slog.Logger) (*Producer, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	sc, err := kafka.ProducerConfig(cfg, "lace-api")
	if err != nil {
		return nil, err
	}
	// one fan's events stay ordered on one partition
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create event producer: %w", err)
	}

	log.Info("kafka event producer created",
		slog.String("topic", cfg.Topic),
		slog.Any("brokers", cfg.Brokers),
	)
	return newProducer(producer, cfg.Topic, log), nil
}

func newProducer(producer sarama.AsyncProducer, topic string, log *slog.Logger) *Producer {
	p := &Producer{
		producer: producer,
		topic:    topic,
		log:      log.With(slog.String("component", "event_producer")),
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// PublishPurchase queues the event keyed by fan address. Delivery failures
// are reported asynchronously through the log.
func (p *Producer) PublishPurchase(ctx context.Context, event domain.PurchaseEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(event.FanAddress),
		Value:    sarama.ByteEncoder(value),
		Metadata: event.PurchaseID,
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish purchase %s: %w", event.PurchaseID, ctx.Err())
	}
}

func (p *Producer) Close() error {
	err := p.producer.Close()
	<-p.done
	if err != nil {
		p.log.Error("failed to close event producer", slog.Any("error", err))
		return err
	}
	p.log.Info("event producer closed")
	return nil
}

func (p *Producer) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.log.Error("purchase event not delivered",
			slog.Any("purchase_id", perr.Msg.Metadata),
			slog.Any("error", perr.Err),
		)
	}
}
