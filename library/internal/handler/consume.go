package handler

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/events"
	"github.com/Astemirdum/library-catalog/library/internal/model"
)

type storeEvent func(ctx context.Context, event model.BookEvent) error

// Consumer writes book events from the audit topic into the history table.
type Consumer struct {
	storeEventHandler storeEvent
	timeout           time.Duration
	log               *zap.Logger
	ready             chan bool
}

func NewConsumer(store storeEvent, log *zap.Logger) *Consumer {
	return &Consumer{
		storeEventHandler: store,
		timeout:           5 * time.Second,
		log:               log.Named("consumer"),
		ready:             make(chan bool),
	}
}

// Ready is closed once the first session has been set up.
func (consumer *Consumer) Ready() <-chan bool {
	return consumer.ready
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-consumer.ready:
	default:
		close(consumer.ready)
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			if err := consumer.handle(session.Context(), message); err != nil {
				consumer.log.Error("store event", zap.Error(err), zap.Int64("offset", message.Offset))
				// left unmarked, redelivered after the next rebalance
				continue
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (consumer *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := events.Decode(message.Value)
	if err != nil {
		// poison message, skip it
		consumer.log.Error("decode event", zap.Error(err), zap.ByteString("value", message.Value))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, consumer.timeout)
	defer cancel()
	if err := consumer.storeEventHandler(ctx, event); err != nil {
		return err
	}
	consumer.log.Debug("event stored",
		zap.String("book", event.BookID),
		zap.String("type", string(event.Type)),
		zap.Time("timestamp", message.Timestamp),
		zap.String("topic", message.Topic))
	return nil
}
