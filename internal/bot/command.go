// Package bot implements the command registry and dispatcher: the mapping
// from a text prefix to a registered command, per-command authorization,
// failure isolation, and the raw-message hook chain used for non-command
// text such as introduction detection.
//
// Plugins are compiled in and registered explicitly at startup; there is no
// runtime discovery. One plugin failing to register or execute must never
// prevent the others from working.
package bot

import (
	"context"

	"github.com/communitykit/onboardbot/internal/transport"
)

// Prefix is the command sigil. Case-sensitive, always the first byte of a
// command message.
const Prefix = '!'

// HandlerFunc executes one command. args is the remainder of the message
// after the command token, trimmed. The returned string is sent back to
// where the envelope came from; empty means no reply.
type HandlerFunc func(ctx context.Context, env *transport.Envelope, args string) (string, error)

// Command is a static registration: metadata plus the handler. Commands are
// registered once at startup and never mutated at runtime.
type Command struct {
	// Name is the command token without the prefix, e.g. "request" or
	// "timeout check". Multi-word names are matched with the
	// prefix-with-trailing-space rule.
	Name string
	// Description is the one-line summary shown by !help.
	Description string
	// Usage is the invocation template shown by !help <name>.
	Usage string

	// AdminOnly restricts the command to the static admin identifier list.
	AdminOnly bool
	// GroupOnly rejects the command outside group rooms.
	GroupOnly bool
	// DMOnly rejects the command inside group rooms.
	DMOnly bool

	Handler HandlerFunc
}

// Plugin is a named bundle of commands.
type Plugin interface {
	// Name identifies the plugin; registering the same name twice is a no-op.
	Name() string
	// Commands returns the plugin's static command set.
	Commands() []Command
}

// RawHandler is the optional hook a plugin may implement to see non-command
// text (and command text that matched nothing). Returning handled=true stops
// the chain; the reply may still be empty.
type RawHandler interface {
	HandleRaw(ctx context.Context, env *transport.Envelope) (reply string, handled bool)
}

// Fixed user-facing texts. Authorization denials are deliberate responses,
// not errors, and are never logged as failures.
const (
	ReplyNotAuthorized = "You are not allowed to use this command."
	ReplyGroupOnly     = "This command can only be used in a group."
	ReplyDMOnly        = "This command can only be used in a direct message."
	ReplyFailure       = "Something went wrong handling that command. Please try again."
)
