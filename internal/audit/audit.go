// Package audit publishes compliance audit records to the audit topic.
// The audit trail is append-only and consumed downstream by the
// long-term evidence store.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// KafkaService writes audit records to Kafka
type KafkaService struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaService creates an audit publisher
func NewKafkaService(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaService {
	return &KafkaService{
		producer: producer,
		topic:    topic,
		log:      log.Named("audit"),
	}
}

// Record publishes one audit record, keyed by entity so records for
// the same subject stay ordered.
func (s *KafkaService) Record(ctx context.Context, rec *domain.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(rec.EntityID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish audit record: %w", err)
	}

	s.log.Debug("audit record published",
		logger.StringField("action", rec.Action),
		logger.StringField("resource_id", rec.ResourceID),
	)
	return nil
}
