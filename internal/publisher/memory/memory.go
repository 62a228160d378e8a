// Package memory provides an in-process publisher for tests and
// database-free runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publication.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher records published messages in order.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
	seq      int
}

// NewPublisher builds an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.messages = append(p.messages, Message{Topic: topic, Payload: data})
	return fmt.Sprintf("mem-%d", p.seq), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
