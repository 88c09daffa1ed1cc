package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/communitykit/onboardbot/internal/observability"
	"github.com/communitykit/onboardbot/internal/transport"
)

// Registry owns the name→command table and the raw-hook chain. It is
// populated at startup and read-only during dispatch, so Dispatch is safe to
// call from the single intake loop without locking.
type Registry struct {
	admins   map[string]struct{}
	plugins  map[string]struct{}
	commands []Command // registration order; dispatch tie-break
	byName   map[string]struct{}
	raw      []RawHandler
	log      zerolog.Logger
}

// NewRegistry builds a Registry with the static admin identifier list and
// the built-in !help command already registered.
func NewRegistry(adminIDs []string, log zerolog.Logger) *Registry {
	r := &Registry{
		admins:  make(map[string]struct{}, len(adminIDs)),
		plugins: make(map[string]struct{}),
		byName:  make(map[string]struct{}),
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			r.admins[id] = struct{}{}
		}
	}
	r.commands = append(r.commands, r.helpCommand())
	r.byName["help"] = struct{}{}
	return r
}

// Register adds all of a plugin's commands and, when the plugin implements
// RawHandler, appends it to the raw-hook chain. Registering the same plugin
// name twice is a no-op. Two commands sharing a name is a configuration
// error surfaced here, at startup, never at dispatch time.
func (r *Registry) Register(p Plugin) error {
	if _, seen := r.plugins[p.Name()]; seen {
		return nil
	}
	cmds := p.Commands()
	for _, c := range cmds {
		if c.Name == "" || c.Handler == nil {
			return fmt.Errorf("plugin %q: command with empty name or nil handler", p.Name())
		}
		if _, dup := r.byName[c.Name]; dup {
			return fmt.Errorf("plugin %q: command %q already registered", p.Name(), c.Name)
		}
	}
	for _, c := range cmds {
		r.commands = append(r.commands, c)
		r.byName[c.Name] = struct{}{}
	}
	if rh, ok := p.(RawHandler); ok {
		r.raw = append(r.raw, rh)
	}
	r.plugins[p.Name()] = struct{}{}
	r.log.Info().Str("plugin", p.Name()).Int("commands", len(cmds)).Msg("plugin registered")
	return nil
}

// IsAdmin reports whether the identifier is on the static admin list.
func (r *Registry) IsAdmin(id string) bool {
	_, ok := r.admins[id]
	return ok
}

// Dispatch routes one envelope: command lookup, authorization, handler
// execution, raw-hook fallback. It never panics and never returns an error;
// the returned text (possibly empty) is the complete outcome of the message.
func (r *Registry) Dispatch(ctx context.Context, env *transport.Envelope) string {
	tr := otel.Tracer("bot/Registry")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("source", env.Source),
			attribute.Bool("group", env.IsGroup()),
		),
	)
	defer span.End()

	text := strings.TrimSpace(env.Text)
	if text == "" {
		return ""
	}

	if text[0] == Prefix {
		if cmd, args, ok := r.match(text[1:]); ok {
			span.SetAttributes(attribute.String("command", cmd.Name))
			return r.invoke(ctx, cmd, env, args)
		}
		// Unknown command token: count it, then fall through to the raw
		// hooks, same as non-command text. The label is a constant to keep
		// metric cardinality independent of what users type.
		observability.ObserveCommand("unknown", observability.OutcomeUnknown, 0)
	}

	for _, h := range r.raw {
		if reply, handled := r.invokeRaw(ctx, h, env); handled {
			return reply
		}
	}
	return ""
}

// match finds the command for the text after the prefix: exact-token match
// first, then prefix-with-trailing-space (so "!timeout check now" still
// reaches "timeout check"). Within each pass, registration order wins.
func (r *Registry) match(body string) (Command, string, bool) {
	for _, c := range r.commands {
		if body == c.Name {
			return c, "", true
		}
	}
	for _, c := range r.commands {
		if strings.HasPrefix(body, c.Name+" ") {
			return c, strings.TrimSpace(body[len(c.Name):]), true
		}
	}
	return Command{}, "", false
}

// invoke runs authorization then the handler, converting panics and errors
// into the generic failure reply so the intake loop never dies.
func (r *Registry) invoke(ctx context.Context, cmd Command, env *transport.Envelope, args string) (reply string) {
	start := time.Now()
	outcome := observability.OutcomeOK
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Str("command", cmd.Name).
				Str("source", env.Source).
				Msg("command handler panicked")
			outcome = observability.OutcomeError
			reply = ReplyFailure
		}
		observability.ObserveCommand(cmd.Name, outcome, time.Since(start))
	}()

	if cmd.AdminOnly && !r.IsAdmin(env.Source) {
		outcome = observability.OutcomeDenied
		return ReplyNotAuthorized
	}
	if cmd.GroupOnly && !env.IsGroup() {
		outcome = observability.OutcomeDenied
		return ReplyGroupOnly
	}
	if cmd.DMOnly && env.IsGroup() {
		outcome = observability.OutcomeDenied
		return ReplyDMOnly
	}

	out, err := cmd.Handler(ctx, env, args)
	if err != nil {
		r.log.Error().
			Err(err).
			Str("command", cmd.Name).
			Str("source", env.Source).
			Msg("command handler failed")
		outcome = observability.OutcomeError
		return ReplyFailure
	}
	return out
}

// invokeRaw shields the dispatch loop from a misbehaving raw hook.
func (r *Registry) invokeRaw(ctx context.Context, h RawHandler, env *transport.Envelope) (reply string, handled bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("raw-message hook panicked")
			reply, handled = "", false
		}
	}()
	return h.HandleRaw(ctx, env)
}

// helpCommand builds the generic !help [command] command from the registry's
// own table.
func (r *Registry) helpCommand() Command {
	return Command{
		Name:        "help",
		Description: "List commands, or show usage for one command.",
		Usage:       "!help [command]",
		Handler: func(_ context.Context, _ *transport.Envelope, args string) (string, error) {
			if args != "" {
				name := strings.TrimPrefix(strings.TrimSpace(args), string(Prefix))
				for _, c := range r.commands {
					if c.Name == name {
						return fmt.Sprintf("%s — %s\nUsage: %s", c.Name, c.Description, c.Usage), nil
					}
				}
				return fmt.Sprintf("Unknown command %q. Try !help.", name), nil
			}

			names := make([]string, 0, len(r.commands))
			for _, c := range r.commands {
				names = append(names, c.Name)
			}
			sort.Strings(names)

			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, n := range names {
				for _, c := range r.commands {
					if c.Name == n {
						fmt.Fprintf(&b, "  !%s — %s\n", c.Name, c.Description)
						break
					}
				}
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}
