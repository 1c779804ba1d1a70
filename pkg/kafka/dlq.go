package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeadLetterPrefix prefixes every dead-letter topic.
const DeadLetterPrefix = TopicPrefix + ".dlq"

// DeadLetterTopic returns the dead-letter topic for a source topic.
func DeadLetterTopic(topic string) string {
	return DeadLetterPrefix + "." + topic
}

// DeadLetterQueue parks messages a consumer gave up on, with the failure
// context carried in headers.
type DeadLetterQueue struct {
	writer messageWriter
	logger *slog.Logger
}

func NewDeadLetterQueue(brokers []string, logger *slog.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchSize:              1,
			BatchTimeout:           100 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// Publish copies msg to its dead-letter topic.
func (d *DeadLetterQueue) Publish(ctx context.Context, msg kafka.Message, cause error, group string) error {
	topic := DeadLetterTopic(msg.Topic)

	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	d.logger.Warn("message dead-lettered",
		slog.String("dlq_topic", topic),
		slog.String("original_topic", msg.Topic),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", group),
	)
	return nil
}

func (d *DeadLetterQueue) Close() error {
	return d.writer.Close()
}
