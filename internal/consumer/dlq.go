package consumer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/banking/compliance-service/internal/pkg/logger"
)

// DeadLetterSuffix appended to the source topic for failed messages
const DeadLetterSuffix = ".dlt"

// DeadLetterProducer routes poisoned or exhausted messages to the
// topic's dead letter counterpart with failure metadata in headers.
type DeadLetterProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewDeadLetterProducer creates a DLQ producer
func NewDeadLetterProducer(producer sarama.SyncProducer, log *logger.Logger) *DeadLetterProducer {
	return &DeadLetterProducer{
		producer: producer,
		log:      log.Named("dlq"),
	}
}

// Send republishes the original message to sourceTopic + ".dlt". The
// payload is preserved byte for byte; failure context travels in
// headers so replay tooling can filter on it.
func (p *DeadLetterProducer) Send(sourceTopic string, key, value []byte, reason string, attempts int) error {
	dlqTopic := sourceTopic + DeadLetterSuffix

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("x-source-topic"), Value: []byte(sourceTopic)},
			{Key: []byte("x-failure-reason"), Value: []byte(reason)},
			{Key: []byte("x-attempts"), Value: []byte(strconv.Itoa(attempts))},
			{Key: []byte("x-failed-at"), Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", dlqTopic, err)
	}
	return nil
}
