// Package events relays notifications between API instances over Kafka so a
// websocket client receives them whichever instance it is connected to.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/jogardn/safety-storefront/internal/circuitbreaker"
	"github.com/jogardn/safety-storefront/internal/notify"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

// Envelope is the value written to the notification topic.
type Envelope struct {
	Source       string               `json:"source"`
	Notification *models.Notification `json:"notification"`
	EventTime    time.Time            `json:"eventTime"`
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	// At most once: a send whose ack is lost is not repeated.
	config.Producer.Retry.Max = 0
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(brokers, producerConfig())
}

// Relay publishes notifications to Kafka. When the broker is unreachable or
// the breaker is open it hands them to the local hub instead.
type Relay struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	breaker  *circuitbreaker.Breaker
	local    notify.Deliverer
	logger   *logrus.Logger
}

func NewRelay(producer sarama.SyncProducer, topic, source string, breaker *circuitbreaker.Breaker, local notify.Deliverer, logger *logrus.Logger) *Relay {
	return &Relay{
		producer: producer,
		topic:    topic,
		source:   source,
		breaker:  breaker,
		local:    local,
		logger:   logger,
	}
}

func (r *Relay) Deliver(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(Envelope{Source: r.source, Notification: n, EventTime: time.Now()})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(n.Room()),
		Value: sarama.ByteEncoder(data),
	}

	err = r.breaker.Execute(func() error {
		partition, offset, err := r.producer.SendMessage(msg)
		if err != nil {
			return err
		}
		r.logger.WithFields(logrus.Fields{
			"topic":           r.topic,
			"partition":       partition,
			"offset":          offset,
			"notification_id": n.ID,
		}).Debug("Notification published to Kafka")
		return nil
	})
	if err == nil {
		return nil
	}

	r.logger.WithError(err).WithField("notification_id", n.ID).Warn("Kafka publish failed, delivering locally")
	return r.local.Deliver(ctx, n)
}

func (r *Relay) Stats() circuitbreaker.Stats {
	return r.breaker.Stats()
}

func (r *Relay) Close() error {
	return r.producer.Close()
}
