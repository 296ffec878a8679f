// Package queue decouples webhook receipt from handler execution. The
// receiver enqueues one task per event and answers the provider
// immediately; a worker consumes and executes tasks asynchronously.
package queue

import "context"

// Broker is the message-broker interface between the webhook receiver and
// the task worker. Enqueue is synchronous and must succeed or the webhook
// response is an error; execution happens elsewhere, with no ordering
// guarantee between tasks.
type Broker interface {
	// Enqueue publishes one task. The payload is an opaque JSON document.
	Enqueue(ctx context.Context, task string, payload []byte) error

	// Consume delivers tasks to fn until ctx is done. The handler's error
	// only signals terminal failure for observation; retries happen inside
	// the handler, not by redelivery.
	Consume(ctx context.Context, fn HandlerFunc) error

	// Close releases broker resources.
	Close() error
}

// HandlerFunc processes one dequeued task.
type HandlerFunc func(ctx context.Context, task string, payload []byte) error
