package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/config"
	"star-clicker/internal/model"
)

// HistoryConsumer reads click events and writes them to the click history
// in batches.
type HistoryConsumer struct {
	config        *config.KafkaConfig
	writer        HistoryWriter
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewHistoryConsumer joins cfg.GroupID.
func NewHistoryConsumer(cfg *config.KafkaConfig, writer HistoryWriter) (*HistoryConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &HistoryConsumer{
		config:        cfg,
		writer:        writer,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins consuming in the background. It does not wait for the
// first partition assignment.
func (c *HistoryConsumer) Start() {
	log.Info().
		Strs("brokers", c.config.Brokers).
		Str("topic", c.config.Topic).
		Str("group_id", c.config.GroupID).
		Msg("Starting click history consumer")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &historyHandler{
				writer:       c.writer,
				batchSize:    c.config.BatchSize,
				batchTimeout: c.config.BatchTimeout,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				log.Error().Err(err).Msg("Click history consumer error")
			}

			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Click history consumer group error")
			}
		}
	}()
}

// Stop drains the current batch and leaves the group.
func (c *HistoryConsumer) Stop() error {
	log.Info().Msg("Stopping click history consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

const defaultBatchTimeout = 2 * time.Second

// historyBatch holds decoded events and the last message they cover.
type historyBatch struct {
	writer  HistoryWriter
	events  []model.ClickEvent
	pending *sarama.ConsumerMessage
}

func (b *historyBatch) add(message *sarama.ConsumerMessage, event model.ClickEvent) {
	b.events = append(b.events, event)
	b.pending = message
}

// flush writes the batch and then marks its last message. On a write error
// nothing is marked and the batch is kept.
func (b *historyBatch) flush(session sarama.ConsumerGroupSession) error {
	if b.pending == nil {
		return nil
	}

	if len(b.events) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rows := Aggregate(b.events)
		if err := b.writer.InsertClickHistory(ctx, rows); err != nil {
			return fmt.Errorf("failed to write click history: %w", err)
		}
		log.Debug().Int("events", len(b.events)).Int("rows", len(rows)).Msg("Click history written")
	}

	session.MarkMessage(b.pending, "")
	b.events = b.events[:0]
	b.pending = nil
	return nil
}

// historyHandler implements sarama.ConsumerGroupHandler.
type historyHandler struct {
	writer       HistoryWriter
	batchSize    int
	batchTimeout time.Duration
}

func (h *historyHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *historyHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches events by size and time. A failed write ends the
// claim without marking, so the group redelivers from the last committed
// offset.
func (h *historyHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batchSize := h.batchSize
	if batchSize < 1 {
		batchSize = 1
	}
	batchTimeout := h.batchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	batch := &historyBatch{
		writer: h.writer,
		events: make([]model.ClickEvent, 0, batchSize),
	}

	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	// Unwritten events on the way out are redelivered to the next owner.
	final := func() {
		if err := batch.flush(session); err != nil {
			log.Error().Err(err).Int("events", len(batch.events)).Msg("Click history not written, offsets left uncommitted")
		}
	}

	for {
		select {
		case <-session.Context().Done():
			final()
			return nil

		case <-timer.C:
			if err := batch.flush(session); err != nil {
				return err
			}
			timer.Reset(batchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				final()
				return nil
			}

			event, err := decodeEvent(message.Value)
			if err != nil {
				log.Warn().Err(err).
					Int64("offset", message.Offset).
					Int32("partition", message.Partition).
					Msg("Skipping click event")
				if batch.pending == nil {
					session.MarkMessage(message, "")
				} else {
					batch.pending = message
				}
				continue
			}

			batch.add(message, event)

			if len(batch.events) >= batchSize {
				if err := batch.flush(session); err != nil {
					return err
				}
				timer.Reset(batchTimeout)
			}
		}
	}
}
