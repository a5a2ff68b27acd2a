package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MemoryClient keeps sent messages in memory. Used when no queue is configured
// and in tests.
type MemoryClient struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// Send records msg, or returns Err when set.
func (c *MemoryClient) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.sent = append(c.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (c *MemoryClient) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

var _ Client = (*MemoryClient)(nil)
