package transport

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newAdapter() *Adapter { return NewAdapter(zerolog.Nop()) }

func TestDecode_FlatShape(t *testing.T) {
	payload := []byte(`{
		"source": "+15550001111",
		"sourceName": "Alice",
		"timestamp": 1717243200000,
		"message": "hello there",
		"groupId": "abc+def="
	}`)

	env, err := newAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Source != "+15550001111" || env.SourceName != "Alice" {
		t.Fatalf("source = %q/%q", env.Source, env.SourceName)
	}
	if env.Text != "hello there" || env.GroupID != "abc+def=" {
		t.Fatalf("text=%q group=%q", env.Text, env.GroupID)
	}
	if !env.IsGroup() {
		t.Fatal("expected group envelope")
	}
}

func TestDecode_DataMessageShape(t *testing.T) {
	payload := []byte(`{
		"source": "+15550001111",
		"dataMessage": {
			"message": "!pending",
			"timestamp": 1717243201000,
			"groupInfo": {"groupId": "abc+def="},
			"mentions": [{"number": "+15550002222", "start": 0, "length": 10}]
		}
	}`)

	env, err := newAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Text != "!pending" {
		t.Fatalf("text = %q", env.Text)
	}
	if len(env.Mentions) != 1 || env.Mentions[0].UserID != "+15550002222" {
		t.Fatalf("mentions = %+v", env.Mentions)
	}
}

func TestDecode_SyncSentShape(t *testing.T) {
	payload := []byte(`{
		"sourceUuid": "7c1b...uuid",
		"syncMessage": {
			"sentMessage": {
				"message": "from linked device",
				"groupInfo": {"groupId": "g1"}
			}
		}
	}`)

	env, err := newAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Source != "7c1b...uuid" {
		t.Fatalf("source fallback to uuid failed: %q", env.Source)
	}
	if env.Text != "from linked device" || env.GroupID != "g1" {
		t.Fatalf("text=%q group=%q", env.Text, env.GroupID)
	}
}

func TestDecode_EditShape(t *testing.T) {
	payload := []byte(`{
		"source": "+15550001111",
		"editMessage": {
			"dataMessage": {"message": "edited body"}
		}
	}`)

	env, err := newAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Text != "edited body" {
		t.Fatalf("text = %q", env.Text)
	}
	if env.IsGroup() {
		t.Fatal("expected DM envelope")
	}
}

func TestDecode_QuoteCarriedVerbatim(t *testing.T) {
	payload := []byte(`{
		"source": "+15550003333",
		"dataMessage": {
			"message": "!gtg",
			"quote": {"author": "+15550001111", "text": "1. Alice\n2. ACME\n3. bob"}
		}
	}`)

	env, err := newAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	author, text, ok := ReplyContext(env)
	if !ok {
		t.Fatal("expected reply context")
	}
	if author != "+15550001111" {
		t.Fatalf("author = %q", author)
	}
	if text != "1. Alice\n2. ACME\n3. bob" {
		t.Fatalf("quoted text altered: %q", text)
	}
}

func TestDecode_ReceiptReturnsErrNoMessage(t *testing.T) {
	payload := []byte(`{"source": "+15550001111", "timestamp": 1, "receiptMessage": {"isDelivery": true}}`)

	_, err := newAdapter().Decode(payload)
	if !errors.Is(err, ErrNoMessage) {
		t.Fatalf("expected ErrNoMessage, got %v", err)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	if _, err := newAdapter().Decode([]byte(`{nope`)); err == nil {
		t.Fatal("expected JSON error")
	}
}
