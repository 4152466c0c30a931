package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka"
)

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message []byte)
}

// PurchaseConsumer feeds purchase events from the bus to a MessageProcessor.
type PurchaseConsumer struct {
	client    sarama.ConsumerGroup
	log       *slog.Logger
	processor MessageProcessor
	topic     string
	groupID   string
}

type consumerGroupHandler struct {
	log       *slog.Logger
	processor MessageProcessor
}

func NewPurchaseConsumer(cfg config.Kafka, log *slog.Logger, processor MessageProcessor) (*PurchaseConsumer, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	sc, err := kafka.ConsumerConfig(cfg, "purchase-worker")
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", cfg.GroupID, err)
	}

	log.Info("kafka consumer created",
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic),
		slog.Any("brokers", cfg.Brokers),
	)

	c := &PurchaseConsumer{
		client:    client,
		log:       log.With(slog.String("component", "purchase_consumer")),
		processor: processor,
		topic:     cfg.Topic,
		groupID:   cfg.GroupID,
	}
	if sc.Consumer.Return.Errors {
		go c.logErrors()
	}
	return c, nil
}

// Consume joins the group and blocks until ctx is done. Each rebalance ends
// one Consume call, so it loops.
func (c *PurchaseConsumer) Consume(ctx context.Context) error {
	handler := &consumerGroupHandler{
		log:       c.log,
		processor: c.processor,
	}

	c.log.Info("starting kafka consumer",
		slog.String("group_id", c.groupID),
		slog.String("topic", c.topic),
	)

	for {
		if err := c.client.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("kafka consumer error", slog.Any("error", err))
			return err
		}
		if ctx.Err() != nil {
			c.log.Info("stopping consumer due to context cancellation")
			return nil
		}
	}
}

func (c *PurchaseConsumer) Close() error {
	c.log.Info("closing kafka consumer", slog.String("group_id", c.groupID))
	if err := c.client.Close(); err != nil {
		c.log.Error("failed to close kafka consumer", slog.Any("error", err))
		return err
	}
	return nil
}

func (c *PurchaseConsumer) logErrors() {
	for err := range c.client.Errors() {
		c.log.Warn("kafka consumer group error", slog.Any("error", err))
	}
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group setup complete",
		slog.String("member_id", session.MemberID()),
		slog.Int("generation_id", int(session.GenerationID())),
	)
	return nil
}

func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group cleanup complete",
		slog.String("member_id", session.MemberID()),
		slog.Int("generation_id", int(session.GenerationID())),
	)
	return nil
}

// ConsumeClaim marks every message once handed over; the processor owns
// retries and the DLQ.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.processor.ProcessMessage(ctx, msg.Value)
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}
