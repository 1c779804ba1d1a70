package event

import (
	"log/slog"

	pkgkafka "github.com/comeencasa/restaurant-api/pkg/kafka"
)

// NotifierGroupID is the consumer group of the notification consumers.
const NotifierGroupID = "restaurant-notifier"

// NewConsumers returns one consumer per published topic, all feeding handler.
// Messages that keep failing go to dlq when it is non-nil.
func NewConsumers(brokers []string, dlq *pkgkafka.DeadLetterQueue, handler pkgkafka.Handler, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := Topics()
	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:     brokers,
			GroupID:     NotifierGroupID,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			DeadLetters: dlq,
		}, handler, logger))
	}
	return consumers
}
