package transport

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// Listener turns a stream of newline-delimited JSON wire payloads — the
// platform daemon's receive pipe — into canonical Envelopes. Receipts and
// other non-message traffic are dropped quietly; malformed lines are logged
// and skipped, never fatal.
type Listener struct {
	r       io.Reader
	adapter *Adapter
	log     zerolog.Logger
	out     chan *Envelope
}

// NewListener builds a Listener over r. Envelopes are delivered on
// Envelopes() once Run is started.
func NewListener(r io.Reader, log zerolog.Logger) *Listener {
	return &Listener{
		r:       r,
		adapter: NewAdapter(log),
		log:     log.With().Str("component", "listener").Logger(),
		out:     make(chan *Envelope, 16),
	}
}

// Envelopes is the delivery channel. It is closed when the stream ends or
// ctx is canceled.
func (l *Listener) Envelopes() <-chan *Envelope { return l.out }

// Run reads the stream until EOF or ctx cancellation. It always closes the
// delivery channel on return.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.out)

	sc := bufio.NewScanner(l.r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := l.adapter.Decode(line)
		if errors.Is(err, ErrNoMessage) {
			continue
		}
		if err != nil {
			l.log.Warn().Err(err).Msg("skipping malformed wire payload")
			continue
		}
		select {
		case l.out <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}

// LogTransport is the stand-in Transport for local runs: every send is
// logged and acknowledged. Real deployments wire the platform client here.
type LogTransport struct {
	Log zerolog.Logger
}

func (t *LogTransport) Send(_ context.Context, recipient, text string) (SendResult, error) {
	t.Log.Info().Str("recipient", recipient).Str("text", text).Msg("DM out")
	return SendResult{Success: true, ID: "logged"}, nil
}

func (t *LogTransport) SendGroup(_ context.Context, groupID, text string) (SendResult, error) {
	t.Log.Info().Str("group_id", groupID).Str("text", text).Msg("group message out")
	return SendResult{Success: true, ID: "logged"}, nil
}

func (t *LogTransport) Groups(context.Context) ([]GroupInfo, error) {
	return nil, nil
}
