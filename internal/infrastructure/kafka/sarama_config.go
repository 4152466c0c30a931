// Package kafka holds the shared sarama setup of the purchase event bus.
package kafka

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/sim-daas/Midnight-Blues/internal/config"
)

var ErrNoBrokers = errors.New("kafka brokers list is empty")

// ProducerConfig validates cfg and returns an async producer config that
// reports errors only.
func ProducerConfig(cfg config.Kafka, clientID string) (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version %q: %w", cfg.Version, err)
	}

	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Version = version
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Producer.Compression = sarama.CompressionSnappy
	return sc, nil
}

// ConsumerConfig validates cfg and returns a consumer group config.
func ConsumerConfig(cfg config.Kafka, clientID string) (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version %q: %w", cfg.Version, err)
	}

	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Version = version
	sc.Consumer.Return.Errors = cfg.ReturnErrors
	if cfg.Oldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}
