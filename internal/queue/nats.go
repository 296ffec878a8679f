package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

const (
	subjectPrefix = "subgate.tasks."
	workerGroup   = "subgate-workers"
)

// NATS is a Broker backed by a NATS server, for deployments where workers
// run outside the API process. Tasks map to subjects under subgate.tasks
// and workers join one queue group so each task is delivered once.
type NATS struct {
	nc *nats.Conn
}

// Compile-time check to ensure NATS implements Broker.
var _ Broker = (*NATS)(nil)

// NewNATS connects to the NATS server at url.
func NewNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("subgate"))
	if err != nil {
		return nil, fmt.Errorf("queue: nats connect: %w", err)
	}
	return &NATS{nc: nc}, nil
}

func (n *NATS) Enqueue(ctx context.Context, task string, payload []byte) error {
	if err := n.nc.Publish(subjectPrefix+task, payload); err != nil {
		return fmt.Errorf("queue: publish %s: %w", task, err)
	}
	// Enqueue must have reached the server before the webhook is acked.
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("queue: flush: %w", err)
	}
	return nil
}

func (n *NATS) Consume(ctx context.Context, fn HandlerFunc) error {
	sub, err := n.nc.QueueSubscribe(subjectPrefix+">", workerGroup, func(msg *nats.Msg) {
		task := strings.TrimPrefix(msg.Subject, subjectPrefix)
		_ = fn(ctx, task, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("queue: subscribe: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("queue: drain: %w", err)
	}
	return ctx.Err()
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
