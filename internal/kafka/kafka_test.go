package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 16)
	p.Start(context.Background())

	env := orders.Envelope{EventID: "e1", EventType: orders.EventOrderPlaced, CorrelationID: "o1", Payload: []byte(`{}`)}
	if err := p.PublishEnvelope(context.Background(), orders.TopicOrderPlaced, env); err != nil {
		t.Fatalf("publish: %v", err)
	}
	p.Close()
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 1 || !w.closed {
		t.Fatalf("writer: %d msgs closed=%v", len(w.msgs), w.closed)
	}
	m := w.msgs[0]
	if m.Topic != orders.TopicOrderPlaced || string(m.Key) != "o1" {
		t.Fatalf("message routing: topic=%s key=%s", m.Topic, m.Key)
	}
	if len(m.Headers) == 0 || string(m.Headers[0].Value) != orders.EventOrderPlaced {
		t.Fatalf("headers: %+v", m.Headers)
	}
	got, err := DecodeEnvelope(m.Value)
	if err != nil || got.EventID != "e1" {
		t.Fatalf("decode: %+v %v", got, err)
	}
	if err := p.Publish("t", nil, nil); !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducerStopsOnContext(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	_ = p.Publish("t", []byte("k"), []byte("v"))
	cancel()

	select {
	case <-p.closeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("producer loop did not exit")
	}
	if !w.closed {
		t.Fatal("writer not closed")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
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

func (r *fakeReader) Close() error { return nil }

func TestConsumerRetriesBeforeCommittingLaterOffsets(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 2)
	c.backoff = time.Millisecond

	var mu sync.Mutex
	attempts := map[int64]int{}
	ctx, cancel := context.WithCancel(context.Background())
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[m.Offset]++
		if m.Offset == 2 && attempts[2] == 1 {
			return errors.New("redis timeout")
		}
		if m.Offset == 3 {
			cancel()
		}
		return nil
	}
	if err := c.Start(ctx, h); err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempts[2] != 2 {
		t.Fatalf("offset 2 attempted %d times, want 2", attempts[2])
	}
	want := []int64{1, 2, 3}
	if len(r.committed) != len(want) {
		t.Fatalf("committed %v, want %v", r.committed, want)
	}
	for i, off := range want {
		if r.committed[i] != off {
			t.Fatalf("committed %v, want %v", r.committed, want)
		}
	}
}

func TestConsumerNeverCommitsPastFailedOffset(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 2)
	c.backoff = time.Millisecond

	var mu sync.Mutex
	failures := 0
	ctx, cancel := context.WithCancel(context.Background())
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset != 2 {
			return nil
		}
		failures++
		if failures == 3 {
			cancel()
		}
		return errors.New("db down")
	}
	if err := c.Start(ctx, h); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, off := range r.committed {
		if off >= 2 {
			t.Fatalf("committed %v moves past failed offset 2", r.committed)
		}
	}
}

func TestProducerDropsWhenBufferFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1)

	if err := p.Publish("t", []byte("k"), []byte("v1")); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	env := orders.Envelope{EventID: "e2", EventType: orders.EventOrderPlaced, CorrelationID: "o1"}
	if err := p.PublishEnvelope(context.Background(), orders.TopicOrderPlaced, env); !errors.Is(err, ErrProducerFull) {
		t.Fatalf("expected ErrProducerFull, got %v", err)
	}
}
