// Package notify delivers student notifications over pluggable channels.
package notify

import (
	"context"
	"time"
)

// Channel names accepted in NOTIFY_CHANNELS.
const (
	ChannelInbox = "inbox"
	ChannelEmail = "email"
	ChannelLog   = "log"
)

// Message is one notification addressed to a student.
type Message struct {
	ID       string
	Username string
	Reason   string
	Subject  string
	Body     string
	SentAt   time.Time
}

// Sender delivers a message over a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function into a Sender.
type SenderFunc struct {
	Channel string
	Fn      func(ctx context.Context, msg Message) error
}

// Name implements Sender.
func (f SenderFunc) Name() string { return f.Channel }

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f.Fn(ctx, msg) }
