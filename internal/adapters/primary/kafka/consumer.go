package kafka

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/IBM/sarama"
	secondary "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/kafka"
	portkafka "github.com/admin/tg-bots/referral-bot/internal/ports/kafka"
)

// Consumer reads assistant replies from Kafka and hands each message to the
// registered handler. Runs until the context is cancelled.
type Consumer struct {
	group   sarama.ConsumerGroup
	cfg     *secondary.Config
	handler portkafka.MessageHandler
	log     *slog.Logger
}

func NewConsumer(cfg *secondary.Config, handler portkafka.MessageHandler, log *slog.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	if cfg.SecurityProtocol == "SASL_SSL" || cfg.SecurityProtocol == "SASL_PLAINTEXT" {
		config.Net.SASL.Enable = true
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		if cfg.SASLMechanism == "SCRAM-SHA-256" {
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		}
		config.Net.SASL.User = cfg.SASLUsername
		config.Net.SASL.Password = cfg.SASLPassword
		if cfg.SecurityProtocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
		}
	}

	group, err := sarama.NewConsumerGroup(cfg.GetBrokers(), cfg.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Info("kafka consumer created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group", cfg.ConsumerGroup,
	)

	return &Consumer{
		group:   group,
		cfg:     cfg,
		handler: handler,
		log:     log,
	}, nil
}

// Run consumes until ctx is cancelled. Rebalances restart the Consume loop.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.group.Close(); err != nil {
			c.log.Warn("failed to close consumer group", "error", err)
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.log.Warn("kafka consumer error", "error", err)
		}
	}()

	handler := &groupHandler{handler: c.handler, log: c.log}

	for {
		if err := c.group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Warn("consume loop error", "error", err)
		}
		if ctx.Err() != nil {
			c.log.Info("kafka consumer stopped")
			return nil
		}
	}
}

type groupHandler struct {
	handler portkafka.MessageHandler
	log     *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if err := h.handler.HandleMessage(session.Context(), string(msg.Key), msg.Value); err != nil {
				// Failed replies are logged and skipped, not retried; the
				// assistant conversation is best effort.
				h.log.Warn("failed to handle kafka message",
					"error", err,
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
			}

			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
