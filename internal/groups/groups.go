// Package groups resolves the several wire-format encodings the transport
// uses for the same chat-room identifier and answers "does this identifier
// denote room X" without a canonical store.
//
// The transport is inconsistent about which encoding it emits: message
// envelopes carry the raw base64 alphabet ('/' and '+'), room-listing APIs
// the URL-safe one ('-' and '_'), and either may arrive with a "group."
// prefix. Equality must therefore be encoding-agnostic. The normalizer
// strips the prefix, applies the reversible character substitution between
// the two alphabets, and compares against every known encoding registered
// for the target room. Unknown rooms always fail closed.
package groups

import (
	"strings"

	"github.com/rs/zerolog"
)

// IDPrefix is the optional prefix some transport surfaces put in front of a
// group identifier.
const IDPrefix = "group."

// Matcher holds the static table of known-equivalent encodings per logical
// room. It is populated once at startup and read-only afterwards, so it is
// safe for concurrent use without locking.
type Matcher struct {
	rooms map[string][]string
	log   zerolog.Logger
}

// NewMatcher returns an empty Matcher.
func NewMatcher(log zerolog.Logger) *Matcher {
	return &Matcher{
		rooms: make(map[string][]string),
		log:   log.With().Str("component", "groups").Logger(),
	}
}

// Register records the known encodings for a logical room. Encodings are
// stored in canonical form. Rooms registered with fewer than two encodings
// are a data-completeness risk (any unregistered alternate encoding of the
// same room will fail to match), so registration warns once about them.
func (m *Matcher) Register(room string, encodings ...string) {
	canon := make([]string, 0, len(encodings))
	for _, e := range encodings {
		if e = strings.TrimSpace(e); e != "" {
			canon = append(canon, Normalize(e))
		}
	}
	m.rooms[room] = canon
	if len(canon) < 2 {
		m.log.Warn().
			Str("room", room).
			Int("encodings", len(canon)).
			Msg("room registered with an incomplete encoding set; alternate wire forms will fail closed")
	}
}

// Matches reports whether id denotes the given logical room. Unknown rooms
// and unknown encodings return false; matching never errors.
func (m *Matcher) Matches(room, id string) bool {
	known, ok := m.rooms[room]
	if !ok || id == "" {
		return false
	}
	n := Normalize(id)
	for _, enc := range known {
		if n == enc {
			return true
		}
	}
	return false
}

// Rooms returns the registered logical room names.
func (m *Matcher) Rooms() []string {
	out := make([]string, 0, len(m.rooms))
	for r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// canonicalAlphabet rewrites the URL-safe identifier alphabet into the raw
// one: '-' → '/' and '_' → '+'. The substitution is reversible; picking the
// raw alphabet as canonical is arbitrary but must be consistent.
var canonicalAlphabet = strings.NewReplacer("-", "/", "_", "+")

// Normalize returns the canonical form of a group identifier: the optional
// "group." prefix stripped and the URL-safe alphabet mapped onto the raw
// one. Normalize is idempotent.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, IDPrefix)
	return canonicalAlphabet.Replace(id)
}
