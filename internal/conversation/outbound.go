package conversation

import "context"

// ReplyMessenger delivers outbound messages to a WhatsApp user.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries the data required to push a message to the user.
// To is E.164 without the channel prefix; the sender adds it.
type OutboundReply struct {
	To       string
	Body     string
	Metadata map[string]string
}
