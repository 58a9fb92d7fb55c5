package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/events"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	cb "github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
)

type memorySink struct {
	mu     sync.Mutex
	events []model.BookEvent
	err    error
}

func (s *memorySink) InsertEvent(_ context.Context, e model.BookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newEvent() model.BookEvent {
	return events.NewEvent("b1", model.EventBorrowed, "u1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestKafkaPublisher_Sent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		e, err := events.Decode(val)
		if err != nil {
			return err
		}
		if e.BookID != "b1" || e.Type != model.EventBorrowed {
			return errors.Errorf("unexpected event %+v", e)
		}
		return nil
	})
	sink := &memorySink{}
	p := events.NewKafkaPublisher(producer, cb.New(cb.Config{Window: 4, FailureRatio: 0.5, Timeout: time.Hour, RecoveryCalls: 1}), sink, zap.NewNop())

	p.Publish(context.Background(), newEvent())

	require.Zero(t, sink.len())
	require.NoError(t, producer.Close())
}

func TestKafkaPublisher_FallsBackToSink(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sink := &memorySink{}
	breaker := cb.New(cb.Config{Window: 1, FailureRatio: 1, Timeout: time.Hour, RecoveryCalls: 1})
	p := events.NewKafkaPublisher(producer, breaker, sink, zap.NewNop())

	p.Publish(context.Background(), newEvent())
	require.Equal(t, 1, sink.len())
	require.Equal(t, cb.Open, breaker.State())

	// open breaker: the producer is not touched again
	p.Publish(context.Background(), newEvent())
	require.Equal(t, 2, sink.len())
	require.NoError(t, producer.Close())
}

func TestDirectPublisher_SwallowsErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	p := events.NewDirectPublisher(sink, zap.NewNop())
	require.NotPanics(t, func() { p.Publish(context.Background(), newEvent()) })
}

func TestEncodeDecode(t *testing.T) {
	e := newEvent()
	data, err := events.Encode(e)
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"borrowed"`)

	got, err := events.Decode(data)
	require.NoError(t, err)
	require.Equal(t, e, got)
}
