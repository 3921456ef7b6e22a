// Package kafka streams accepted clicks to Kafka and folds them back into
// the click history table.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/config"
	"star-clicker/internal/model"
)

// Publisher sends click events asynchronously. Delivery failures are
// logged and never reach the caller.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup
}

// NewPublisher creates an async producer for cfg.Topic.
func NewPublisher(cfg *config.KafkaConfig) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisherFromProducer(producer, cfg.Topic), nil
}

// NewPublisherFromProducer wraps an existing producer.
func NewPublisherFromProducer(producer sarama.AsyncProducer, topic string) *Publisher {
	p := &Publisher{producer: producer, topic: topic}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			log.Warn().Err(err.Err).Str("topic", p.topic).Msg("Failed to deliver click event")
		}
	}()

	return p
}

// PublishClick queues one click event keyed by player.
func (p *Publisher) PublishClick(ctx context.Context, event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal click event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PlayerID.String()),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending messages and stops the producer.
func (p *Publisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
