package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEnqueueConsume(t *testing.T) {
	m := NewMemory(4)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Enqueue(ctx, "invoice.paid", []byte(`{"a":1}`)))
	require.NoError(t, m.Enqueue(ctx, "customer.created", []byte(`{"b":2}`)))
	assert.Equal(t, 2, m.Len())

	type delivery struct {
		task    string
		payload string
	}
	got := make(chan delivery, 2)
	go m.Consume(ctx, func(ctx context.Context, task string, payload []byte) error {
		got <- delivery{task: task, payload: string(payload)}
		return nil
	})

	first := <-got
	assert.Equal(t, "invoice.paid", first.task)
	assert.Equal(t, `{"a":1}`, first.payload)

	second := <-got
	assert.Equal(t, "customer.created", second.task)
}

func TestMemoryEnqueueWhenFull(t *testing.T) {
	m := NewMemory(1)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Enqueue(ctx, "t", nil))
	assert.Error(t, m.Enqueue(ctx, "t", nil))
}

func TestMemoryEnqueueAfterClose(t *testing.T) {
	m := NewMemory(1)
	require.NoError(t, m.Close())
	assert.Error(t, m.Enqueue(context.Background(), "t", nil))
	// Close is idempotent.
	assert.NoError(t, m.Close())
}

func TestMemoryConsumeStopsOnCancel(t *testing.T) {
	m := NewMemory(1)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Consume(ctx, func(context.Context, string, []byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop on cancel")
	}
}

// Enqueues racing Close must fail with an error rather than panic on a
// send to the closed channel.
func TestMemoryEnqueueRacingClose(t *testing.T) {
	m := NewMemory(4)
	ctx := context.Background()

	start := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-start
		for i := 0; i < 1000; i++ {
			if err := m.Enqueue(ctx, "t", nil); err != nil {
				return
			}
			<-m.ch
		}
	}()

	close(start)
	require.NoError(t, m.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue loop did not observe the close")
	}

	assert.Error(t, m.Enqueue(ctx, "t", nil))
}

func TestMemoryPayloadIsCopied(t *testing.T) {
	m := NewMemory(1)
	defer m.Close()

	payload := []byte(`{"a":1}`)
	require.NoError(t, m.Enqueue(context.Background(), "t", payload))
	payload[0] = 'X'

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 1)
	go m.Consume(ctx, func(ctx context.Context, task string, p []byte) error {
		got <- p
		return nil
	})
	assert.Equal(t, `{"a":1}`, string(<-got))
}
