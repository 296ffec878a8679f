package queue

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Broker backed by a buffered channel. It serves
// single-binary deployments and tests; NATS covers multi-process setups.
type Memory struct {
	ch chan message

	mu     sync.Mutex
	closed bool
}

type message struct {
	task    string
	payload []byte
}

// Compile-time check to ensure Memory implements Broker.
var _ Broker = (*Memory)(nil)

// NewMemory creates an in-process broker with the given queue depth.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	return &Memory{ch: make(chan message, buffer)}
}

// Enqueue is synchronous: it fails when the queue is full rather than
// blocking the webhook request path. The mutex stays held across the send
// so Close cannot close the channel between the closed check and the
// send; the select never blocks under the lock because of its default.
func (m *Memory) Enqueue(ctx context.Context, task string, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("queue: broker closed")
	}

	select {
	case m.ch <- message{task: task, payload: buf}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue: full")
	}
}

// Consume delivers tasks to fn until ctx is done.
func (m *Memory) Consume(ctx context.Context, fn HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-m.ch:
			if !ok {
				return nil
			}
			// Handler errors are terminal-failure signals, already
			// observed by the executor; consumption continues.
			_ = fn(ctx, msg.task, msg.payload)
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}

// Len reports the number of queued tasks. Test helper.
func (m *Memory) Len() int {
	return len(m.ch)
}

// Dequeue pops the next queued task without blocking. Test helper.
func (m *Memory) Dequeue() (string, []byte, bool) {
	select {
	case msg := <-m.ch:
		return msg.task, msg.payload, true
	default:
		return "", nil, false
	}
}
