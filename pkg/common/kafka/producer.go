package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
)

type Producer struct {
	writer *kafka.Writer
	source string
}

// NewProducer writes events to topic. Async writers return before the broker
// acknowledges, which keeps publication off the request path.
func NewProducer(brokers []string, topic, source string, async bool) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        async,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	if async {
		writer.BatchSize = 100
		writer.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Log.WithError(err).WithField("messages", len(messages)).Error("Failed to deliver events")
			}
		}
	}

	return &Producer{writer: writer, source: source}
}

// NewEvent stamps data with a fresh id and timestamp.
func NewEvent(eventType, source string, data map[string]interface{}) models.Event {
	return models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// EncodeMessage renders event as a kafka message keyed by its id.
func EncodeMessage(event models.Event) (kafka.Message, error) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.ID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}, nil
}

func (p *Producer) PublishEvent(ctx context.Context, eventType string, data map[string]interface{}) error {
	event := NewEvent(eventType, p.source, data)
	message, err := EncodeMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
	}).Debug("Event published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
