package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/jogardn/safety-storefront/internal/notify"
	"github.com/sirupsen/logrus"
)

// Consumer feeds relayed notifications into this instance's hub. Its group
// id must be unique per instance so every instance receives every message.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	handler       *groupHandler
	logger        *logrus.Logger
	topics        []string
	backoff       time.Duration
	maxBackoff    time.Duration
}

type groupHandler struct {
	sink   notify.Deliverer
	logger *logrus.Logger
}

func NewConsumer(brokers []string, groupID, topic string, sink notify.Deliverer, logger *logrus.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	// Only live traffic matters to connected sockets.
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Version = sarama.V2_6_0_0

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		handler:       &groupHandler{sink: sink, logger: logger},
		logger:        logger,
		topics:        []string{topic},
		backoff:       time.Second,
		maxBackoff:    30 * time.Second,
	}, nil
}

// Start blocks until ctx is cancelled or the group is closed. Consume
// errors are logged and retried with a doubling backoff.
func (c *Consumer) Start(ctx context.Context) error {
	wait := c.backoff
	for {
		err := c.consumerGroup.Consume(ctx, c.topics, c.handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if ctx.Err() != nil {
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		}
		if err == nil {
			wait = c.backoff
			continue
		}

		c.logger.WithError(err).WithField("retry_in", wait.String()).Error("Error consuming from Kafka")
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		case <-time.After(wait):
		}
		wait *= 2
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			// At most once: the offset is marked whether or not the push worked.
			if err := h.handle(session.Context(), message); err != nil {
				h.logger.WithError(err).WithField("offset", message.Offset).Warn("Dropping relayed notification")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var env Envelope
	if err := json.Unmarshal(message.Value, &env); err != nil {
		return err
	}
	if env.Notification == nil {
		return errors.New("envelope without notification")
	}
	return h.sink.Deliver(ctx, env.Notification)
}
