package messaging

import (
	"context"
	"sync"

	"github.com/propchat/propchat/internal/conversation"
)

// MemorySender records outbound replies instead of delivering them. Used in
// tests and local development without Twilio credentials.
type MemorySender struct {
	mu   sync.Mutex
	sent []conversation.OutboundReply
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

var _ conversation.ReplyMessenger = (*MemorySender)(nil)

func (m *MemorySender) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, reply)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (m *MemorySender) Sent() []conversation.OutboundReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]conversation.OutboundReply, len(m.sent))
	copy(out, m.sent)
	return out
}
