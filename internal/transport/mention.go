package transport

import (
	"regexp"
	"strings"
)

// atTokenRE matches a lightweight textual mention: an @ followed by a phone
// number, UUID, or bare handle. Used only when no structured mention exists.
var atTokenRE = regexp.MustCompile(`@([+\w][\w.\-]*)`)

// FirstMention returns the identifier of the first user the envelope
// explicitly mentions. Structured mentions win; when the transport stripped
// them (some pipeline stages do), it falls back to scanning the text for an
// @token. Returns "" when the message mentions nobody.
func FirstMention(env *Envelope) string {
	if env == nil {
		return ""
	}
	if len(env.Mentions) > 0 {
		return env.Mentions[0].UserID
	}
	if m := atTokenRE.FindStringSubmatch(env.Text); m != nil {
		return m[1]
	}
	return ""
}

// ReplyContext returns the quoted author and quoted text when the envelope
// is a reply, or ("", "", false) otherwise. The quoted text is returned
// verbatim; callers parsing it must not assume it was trimmed.
func ReplyContext(env *Envelope) (author, text string, ok bool) {
	if env == nil || env.Quote == nil {
		return "", "", false
	}
	return env.Quote.Author, env.Quote.Text, true
}

// StripMentionTokens removes @tokens from text and collapses the leftover
// whitespace, for handlers that want the free-text remainder of a command
// (e.g. everything after "!request @user").
func StripMentionTokens(text string) string {
	return strings.Join(strings.Fields(atTokenRE.ReplaceAllString(text, "")), " ")
}
