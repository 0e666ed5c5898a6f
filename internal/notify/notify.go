// Package notify delivers escalation messages. Messages go onto a
// Kafka topic consumed by the delivery gateway (email, pager); this
// service never talks to mail servers directly.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/banking/compliance-service/internal/pkg/logger"
)

// Audience selects the distribution list for a message
type Audience string

const (
	AudienceComplianceOfficer Audience = "COMPLIANCE_OFFICER"
	AudienceExecutives        Audience = "EXECUTIVES"
	AudienceOperations        Audience = "OPERATIONS"
)

// Message is the notification envelope
type Message struct {
	ID        uuid.UUID `json:"id"`
	Audience  Audience  `json:"audience"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// KafkaService publishes notifications to the delivery topic
type KafkaService struct {
	producer  sarama.SyncProducer
	topic     string
	officer   string
	executive string
	log       *logger.Logger
}

// NewKafkaService creates a notification publisher
func NewKafkaService(producer sarama.SyncProducer, topic, officer, executive string, log *logger.Logger) *KafkaService {
	return &KafkaService{
		producer:  producer,
		topic:     topic,
		officer:   officer,
		executive: executive,
		log:       log.Named("notify"),
	}
}

// NotifyComplianceOfficer pages the on-duty compliance officer
func (s *KafkaService) NotifyComplianceOfficer(ctx context.Context, subject, body string) error {
	return s.send(AudienceComplianceOfficer, s.officer, subject, body)
}

// NotifyExecutives escalates to the executive distribution list
func (s *KafkaService) NotifyExecutives(ctx context.Context, subject, body string) error {
	return s.send(AudienceExecutives, s.executive, subject, body)
}

// NotifyOperations raises an operational alert
func (s *KafkaService) NotifyOperations(ctx context.Context, subject, body string) error {
	return s.send(AudienceOperations, s.officer, subject, body)
}

func (s *KafkaService) send(audience Audience, recipient, subject, body string) error {
	msg := Message{
		ID:        uuid.New(),
		Audience:  audience,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    time.Now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if _, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(string(audience)),
		Value: sarama.ByteEncoder(payload),
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	s.log.Info("notification published",
		logger.StringField("audience", string(audience)),
		logger.StringField("subject", subject),
	)
	return nil
}
