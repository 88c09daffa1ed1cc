package transport

import "testing"

func TestFirstMention_StructuredWins(t *testing.T) {
	env := &Envelope{
		Text:     "!request @alice",
		Mentions: []Mention{{UserID: "+15550001111", Start: 9, Length: 6}},
	}
	if got := FirstMention(env); got != "+15550001111" {
		t.Fatalf("got %q", got)
	}
}

func TestFirstMention_TextFallback(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"!request @+15550001111 please", "+15550001111"},
		{"!safetynumber @alice.handle", "alice.handle"},
		{"no mention here", ""},
		{"", ""},
	}
	for _, tc := range cases {
		env := &Envelope{Text: tc.text}
		if got := FirstMention(env); got != tc.want {
			t.Errorf("FirstMention(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestFirstMention_NilSafe(t *testing.T) {
	if got := FirstMention(nil); got != "" {
		t.Fatalf("got %q for nil envelope", got)
	}
}

func TestReplyContext_NoneIsFalse(t *testing.T) {
	if _, _, ok := ReplyContext(&Envelope{Text: "plain"}); ok {
		t.Fatal("expected no reply context")
	}
	if _, _, ok := ReplyContext(nil); ok {
		t.Fatal("nil envelope must not report a reply")
	}
}

func TestStripMentionTokens(t *testing.T) {
	if got := StripMentionTokens("!request @+15550001111  extra"); got != "!request extra" {
		t.Fatalf("got %q", got)
	}
	if got := StripMentionTokens("@solo"); got != "" {
		t.Fatalf("got %q", got)
	}
}
