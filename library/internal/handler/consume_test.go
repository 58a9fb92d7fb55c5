package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/events"
	"github.com/Astemirdum/library-catalog/library/internal/model"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumer_ConsumeClaim(t *testing.T) {
	event := events.NewEvent("b1", model.EventReserved, "u1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	data, err := events.Encode(event)
	require.NoError(t, err)

	var stored []model.BookEvent
	consumer := NewConsumer(func(_ context.Context, e model.BookEvent) error {
		if e.BookID == "fail" {
			return errors.New("db down")
		}
		stored = append(stored, e)
		return nil
	}, zap.NewNop())

	failing, err := events.Encode(model.BookEvent{ID: "e2", BookID: "fail"})
	require.NoError(t, err)

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: data}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte("{not json")}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: failing}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, consumer.Setup(session))
	require.NoError(t, consumer.ConsumeClaim(session, claim))

	require.Equal(t, []model.BookEvent{event}, stored)
	// poison messages are skipped, failed stores are retried later
	require.Equal(t, []int64{1, 2}, session.marked)

	select {
	case <-consumer.Ready():
	default:
		t.Fatal("consumer not ready after setup")
	}
}
