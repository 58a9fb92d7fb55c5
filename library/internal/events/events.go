// Package events publishes book audit events.
//
// Events go to Kafka through a circuit breaker. When the broker is unavailable
// or the breaker is open they are written straight to the audit table, so a
// lifecycle operation never fails because of its audit trail.
package events

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	cb "github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Publisher interface {
	Publish(ctx context.Context, event model.BookEvent)
}

// Sink stores an event directly.
type Sink interface {
	InsertEvent(ctx context.Context, event model.BookEvent) error
}

func NewEvent(bookID string, typ model.EventType, actorID string, at time.Time) model.BookEvent {
	return model.BookEvent{
		ID:         uuid.NewString(),
		BookID:     bookID,
		Type:       typ,
		ActorID:    actorID,
		OccurredAt: at.UTC(),
	}
}

func Encode(event model.BookEvent) ([]byte, error) {
	return json.Marshal(event)
}

func Decode(data []byte) (model.BookEvent, error) {
	var event model.BookEvent
	err := json.Unmarshal(data, &event)
	return event, err
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	breaker  cb.CircuitBreaker
	fallback Sink
	log      *zap.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, breaker cb.CircuitBreaker, fallback Sink, log *zap.Logger) *kafkaPublisher {
	return &kafkaPublisher{
		producer: producer,
		breaker:  breaker,
		fallback: fallback,
		log:      log.Named("publisher"),
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event model.BookEvent) {
	data, err := Encode(event)
	if err != nil {
		p.log.Error("encode event", zap.Error(err))
		return
	}
	err = p.breaker.Call(func() error {
		_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: kafka.BookEventsTopic,
			Key:   sarama.StringEncoder(event.BookID),
			Value: sarama.ByteEncoder(data),
		})
		return err
	})
	if err == nil {
		return
	}
	p.log.Warn("kafka unavailable, storing event directly",
		zap.String("book", event.BookID),
		zap.String("type", string(event.Type)),
		zap.Stringer("breaker", p.breaker.State()),
		zap.Error(err))
	if err := p.fallback.InsertEvent(ctx, event); err != nil {
		p.log.Error("store event", zap.Error(err))
	}
}

type directPublisher struct {
	sink Sink
	log  *zap.Logger
}

// NewDirectPublisher is used when no broker is configured.
func NewDirectPublisher(sink Sink, log *zap.Logger) *directPublisher {
	return &directPublisher{sink: sink, log: log.Named("publisher")}
}

func (p *directPublisher) Publish(ctx context.Context, event model.BookEvent) {
	if err := p.sink.InsertEvent(ctx, event); err != nil {
		p.log.Error("store event", zap.String("book", event.BookID), zap.Error(err))
	}
}
