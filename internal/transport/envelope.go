// Package transport defines the boundary between the bot and the chat
// platform: the canonical inbound message envelope, the adapter that
// normalizes the transport's several wire shapes into it, mention and
// reply-quote extraction, and a rate-limited outbound sender.
//
// All internal logic operates only on the canonical Envelope; the wire
// shapes never leak past the adapter.
package transport

import (
	"context"
	"time"
)

// Mention is one structured user mention inside a message body.
type Mention struct {
	// UserID is the platform-native identifier of the mentioned user.
	UserID string `json:"user_id"`
	// Start and Length locate the mention inside the message text.
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Quote carries the reply context when a message quotes another.
type Quote struct {
	// Author is the platform-native identifier of the quoted message's sender.
	Author string `json:"author"`
	// Text is the quoted text, verbatim.
	Text string `json:"text"`
}

// Envelope is the canonical inbound message. It is produced by Adapter and
// is the only message shape the dispatcher and command handlers ever see.
type Envelope struct {
	// Source is the sender's platform-native identifier.
	Source string
	// SourceName is the sender's display name, when the transport knows it.
	SourceName string
	// GroupID is the room identifier in whatever encoding the transport
	// chose to emit; empty for direct messages. Compare via groups.Matcher.
	GroupID string
	// Text is the message body.
	Text string
	// Timestamp is the transport's message timestamp.
	Timestamp time.Time
	// Mentions are the structured mentions, in message order.
	Mentions []Mention
	// Quote is non-nil when the message is a reply.
	Quote *Quote
}

// IsGroup reports whether the envelope originated in a group room.
func (e *Envelope) IsGroup() bool { return e.GroupID != "" }

// IsReply reports whether the envelope quotes another message.
func (e *Envelope) IsReply() bool { return e.Quote != nil }

// SendResult is the transport's acknowledgement of an outbound message.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// GroupInfo is one entry from the transport's room listing.
type GroupInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Transport is the outbound surface the bot consumes. Implementations wrap
// the actual chat platform client; a logging no-op ships for local runs.
type Transport interface {
	// Send delivers a direct message to a user.
	Send(ctx context.Context, recipient, text string) (SendResult, error)
	// SendGroup delivers a message to a group room.
	SendGroup(ctx context.Context, groupID, text string) (SendResult, error)
	// Groups lists the rooms the bot is a member of.
	Groups(ctx context.Context) ([]GroupInfo, error)
}
