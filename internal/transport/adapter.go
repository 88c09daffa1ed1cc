package transport

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoMessage is returned by Decode when the wire payload carries no data
// message in any of the recognized shapes (receipts, typing indicators, and
// other envelope-only traffic).
var ErrNoMessage = errors.New("transport: no data message in envelope")

// rawEnvelope mirrors the transport's outer JSON envelope. Depending on
// where in the transport pipeline a message is observed, the data message
// appears in one of four nestings:
//
//  1. flat on the envelope itself (message/groupId at top level),
//  2. under "dataMessage",
//  3. under "syncMessage.sentMessage" (messages echoed from a linked device),
//  4. under "editMessage.dataMessage" (edits resend the full body).
//
// The adapter unwraps all four defensively; anything else is ErrNoMessage.
type rawEnvelope struct {
	Source     string `json:"source"`
	SourceUUID string `json:"sourceUuid"`
	SourceName string `json:"sourceName"`
	Timestamp  int64  `json:"timestamp"`

	// Shape 1: flat.
	Message  string       `json:"message"`
	GroupID  string       `json:"groupId"`
	Mentions []rawMention `json:"mentions"`
	Quote    *rawQuote    `json:"quote"`

	// Shapes 2-4: wrapped.
	DataMessage *rawData `json:"dataMessage"`
	SyncMessage *struct {
		SentMessage *rawData `json:"sentMessage"`
	} `json:"syncMessage"`
	EditMessage *struct {
		DataMessage *rawData `json:"dataMessage"`
	} `json:"editMessage"`
}

// rawData is the inner data-message shape shared by nestings 2-4.
type rawData struct {
	Message   string       `json:"message"`
	Timestamp int64        `json:"timestamp"`
	GroupInfo *struct {
		GroupID string `json:"groupId"`
	} `json:"groupInfo"`
	Mentions []rawMention `json:"mentions"`
	Quote    *rawQuote    `json:"quote"`
}

type rawMention struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	UUID   string `json:"uuid"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
}

type rawQuote struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	AuthorUUID string `json:"authorUuid"`
	Text       string `json:"text"`
}

// Adapter converts wire payloads into canonical Envelopes.
type Adapter struct {
	log zerolog.Logger
}

// NewAdapter returns an Adapter that logs unrecognized payloads at debug.
func NewAdapter(log zerolog.Logger) *Adapter {
	return &Adapter{log: log.With().Str("component", "transport").Logger()}
}

// Decode parses one wire payload into a canonical Envelope. Payloads without
// a data message (receipts, typing notifications) return ErrNoMessage; they
// are expected traffic, not failures.
func (a *Adapter) Decode(payload []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	env, err := fromRaw(&raw)
	if err != nil {
		a.log.Debug().Err(err).Msg("dropping envelope without data message")
		return nil, err
	}
	return env, nil
}

// fromRaw normalizes whichever nesting the envelope used. First hit wins in
// wrapper order: dataMessage, syncMessage.sentMessage, editMessage, flat.
func fromRaw(raw *rawEnvelope) (*Envelope, error) {
	source := raw.Source
	if source == "" {
		source = raw.SourceUUID
	}

	var d *rawData
	switch {
	case raw.DataMessage != nil:
		d = raw.DataMessage
	case raw.SyncMessage != nil && raw.SyncMessage.SentMessage != nil:
		d = raw.SyncMessage.SentMessage
	case raw.EditMessage != nil && raw.EditMessage.DataMessage != nil:
		d = raw.EditMessage.DataMessage
	case raw.Message != "":
		// Flat shape: synthesize the inner form.
		d = &rawData{
			Message:   raw.Message,
			Timestamp: raw.Timestamp,
			Mentions:  raw.Mentions,
			Quote:     raw.Quote,
		}
		if raw.GroupID != "" {
			d.GroupInfo = &struct {
				GroupID string `json:"groupId"`
			}{GroupID: raw.GroupID}
		}
	default:
		return nil, ErrNoMessage
	}
	if d.Message == "" {
		return nil, ErrNoMessage
	}

	ts := d.Timestamp
	if ts == 0 {
		ts = raw.Timestamp
	}

	env := &Envelope{
		Source:     source,
		SourceName: raw.SourceName,
		Text:       d.Message,
		Timestamp:  time.UnixMilli(ts).UTC(),
	}
	if d.GroupInfo != nil {
		env.GroupID = d.GroupInfo.GroupID
	}
	for _, m := range d.Mentions {
		id := m.Number
		if id == "" {
			id = m.UUID
		}
		if id == "" {
			continue
		}
		env.Mentions = append(env.Mentions, Mention{UserID: id, Start: m.Start, Length: m.Length})
	}
	if d.Quote != nil {
		author := d.Quote.Author
		if author == "" {
			author = d.Quote.AuthorUUID
		}
		env.Quote = &Quote{Author: author, Text: d.Quote.Text}
	}
	return env, nil
}
