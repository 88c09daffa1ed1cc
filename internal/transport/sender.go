package transport

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender wraps a Transport with a token-bucket rate limit on outbound
// sends. The chat platform throttles aggressively; pacing replies here keeps
// a burst of command traffic from getting the bot account muted.
type Sender struct {
	t       Transport
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSender builds a Sender. rps <= 0 disables limiting.
func NewSender(t Transport, rps float64, burst int, log zerolog.Logger) *Sender {
	var lim *rate.Limiter
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Sender{
		t:       t,
		limiter: lim,
		log:     log.With().Str("component", "sender").Logger(),
	}
}

// Reply sends text back to where the envelope came from: the group room for
// group messages, the sender directly for DMs.
func (s *Sender) Reply(ctx context.Context, env *Envelope, text string) error {
	if text == "" {
		return nil
	}
	if env.IsGroup() {
		return s.SendGroup(ctx, env.GroupID, text)
	}
	return s.Send(ctx, env.Source, text)
}

// Send delivers a direct message, honoring the rate limit.
func (s *Sender) Send(ctx context.Context, recipient, text string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	res, err := s.t.Send(ctx, recipient, text)
	if err != nil {
		s.log.Error().Err(err).Str("recipient", recipient).Msg("send failed")
		return err
	}
	s.log.Debug().Str("recipient", recipient).Str("message_id", res.ID).Msg("sent")
	return nil
}

// SendGroup delivers a group message, honoring the rate limit.
func (s *Sender) SendGroup(ctx context.Context, groupID, text string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	res, err := s.t.SendGroup(ctx, groupID, text)
	if err != nil {
		s.log.Error().Err(err).Str("group_id", groupID).Msg("group send failed")
		return err
	}
	s.log.Debug().Str("group_id", groupID).Str("message_id", res.ID).Msg("sent")
	return nil
}

func (s *Sender) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
