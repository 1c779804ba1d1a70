package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func eventMessage(t *testing.T, offset int64, eventType string) kafka.Message {
	t.Helper()
	event, err := NewEvent(eventType, "order", "1", nil)
	require.NoError(t, err)
	raw, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "restaurant.order.created", Offset: offset, Value: raw}
}

func runConsumer(t *testing.T, reader *fakeReader, handler Handler, wantCommits int) {
	t.Helper()
	runConsumerWithDLQ(t, reader, nil, handler, wantCommits)
}

func runConsumerWithDLQ(t *testing.T, reader *fakeReader, dlq *DeadLetterQueue, handler Handler, wantCommits int) {
	t.Helper()
	c := newConsumer(reader, ConsumerConfig{
		Topic:       "restaurant.order.created",
		GroupID:     "restaurant-notifier",
		DeadLetters: dlq,
	}, handler, testLogger())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) >= wantCommits }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_CommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		eventMessage(t, 1, "order.created"),
		eventMessage(t, 2, "order.created"),
	}}

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, e *Event) error {
		mu.Lock()
		seen = append(seen, e.EventType)
		mu.Unlock()
		return nil
	}

	runConsumer(t, reader, handler, 2)

	assert.Equal(t, []int64{1, 2}, reader.commits())
	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
	assert.Equal(t, 1, reader.closed)
}

func TestConsumer_RetriesThenSkipsPoisonMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, 5, "order.created")}}

	var mu sync.Mutex
	attempts := 0
	handler := func(context.Context, *Event) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("telegram unavailable")
	}

	runConsumer(t, reader, handler, 1)

	mu.Lock()
	assert.Equal(t, maxHandlerRetries, attempts)
	mu.Unlock()
	assert.Equal(t, []int64{5}, reader.commits())
}

func TestConsumer_RecoversAfterTransientFailure(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, 9, "order.created")}}

	var mu sync.Mutex
	attempts := 0
	handler := func(context.Context, *Event) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("smtp timeout")
		}
		return nil
	}

	runConsumer(t, reader, handler, 1)

	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
}

func TestConsumer_CommitsUndecodableMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 3, Value: []byte("garbage")}}}
	called := false

	runConsumer(t, reader, func(context.Context, *Event) error {
		called = true
		return nil
	}, 1)

	assert.False(t, called)
	assert.Equal(t, []int64{3}, reader.commits())
}

func TestConsumer_CloseIsIdempotent(t *testing.T) {
	reader := &fakeReader{}
	c := newConsumer(reader, ConsumerConfig{}, nil, testLogger())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, reader.closed)
}

func TestConsumer_DeadLettersExhaustedMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, 12, "order.created")}}
	w := &fakeWriter{}
	dlq := &DeadLetterQueue{writer: w, logger: testLogger()}

	failed := consumerMessagesFailed.WithLabelValues("restaurant.order.created", "restaurant-notifier")
	dead := consumerDeadLettered.WithLabelValues("restaurant.order.created", "restaurant-notifier")
	failedBefore, deadBefore := testutil.ToFloat64(failed), testutil.ToFloat64(dead)

	runConsumerWithDLQ(t, reader, dlq, func(context.Context, *Event) error {
		return errors.New("smtp refused")
	}, 1)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "restaurant.dlq.restaurant.order.created", w.msgs[0].Topic)
	assert.Equal(t, "smtp refused", header(w.msgs[0], "dlq.error"))
	assert.Equal(t, []int64{12}, reader.commits())
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, deadBefore+1, testutil.ToFloat64(dead))
}

func TestConsumer_DeadLettersUndecodableMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Topic: "restaurant.order.created", Offset: 4, Value: []byte("{")}}}
	w := &fakeWriter{}

	runConsumerWithDLQ(t, reader, &DeadLetterQueue{writer: w, logger: testLogger()}, func(context.Context, *Event) error {
		t.Error("handler must not run for undecodable messages")
		return nil
	}, 1)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("{"), w.msgs[0].Value)
}

func TestConsumer_CommitsWhenDeadLetterFails(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, 8, "order.created")}}
	dlq := &DeadLetterQueue{writer: &fakeWriter{err: errors.New("broker down")}, logger: testLogger()}

	runConsumerWithDLQ(t, reader, dlq, func(context.Context, *Event) error {
		return errors.New("telegram unavailable")
	}, 1)

	assert.Equal(t, []int64{8}, reader.commits())
}

func TestConsumer_CountsProcessedMessages(t *testing.T) {
	processed := consumerMessagesProcessed.WithLabelValues("restaurant.order.created", "restaurant-notifier")
	before := testutil.ToFloat64(processed)

	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, 1, "order.created")}}
	runConsumer(t, reader, func(context.Context, *Event) error { return nil }, 1)

	assert.Equal(t, before+1, testutil.ToFloat64(processed))
}
