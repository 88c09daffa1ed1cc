package onboarding

import (
	"regexp"
	"sort"
	"strings"
)

// wordRE extracts Unicode-aware tokens: letters optionally followed by
// digits, so "ics2" and "osint" both survive.
var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

// Recommender maps interest keywords to special-interest group room IDs.
// Built once from configuration; read-only afterwards.
type Recommender struct {
	byKeyword map[string]string
}

// NewRecommender builds a Recommender from a keyword→roomID table. Keywords
// are lowercased; empty keys or values are dropped.
func NewRecommender(table map[string]string) *Recommender {
	m := make(map[string]string, len(table))
	for k, v := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			m[k] = v
		}
	}
	return &Recommender{byKeyword: m}
}

// Recommend tokenizes the free-text interests line and returns the deduped
// room IDs whose keyword appears, sorted for deterministic replies.
func (r *Recommender) Recommend(interests string) []string {
	if len(r.byKeyword) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, w := range wordRE.FindAllString(strings.ToLower(interests), -1) {
		if room, ok := r.byKeyword[w]; ok {
			seen[room] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for room := range seen {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
