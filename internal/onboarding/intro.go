package onboarding

import (
	"regexp"
	"strings"

	"github.com/communitykit/onboardbot/internal/domain"
)

// ordinalRE matches the list marker a candidate puts in front of each
// introduction line: "1.", "2)", "3-", with optional surrounding spaces.
var ordinalRE = regexp.MustCompile(`^\s*\d+\s*[.)\-]\s*`)

// ParseIntroduction recognizes the numbered self-introduction block posted
// in the entry room and extracts its fields positionally:
//
//	1. name
//	2. organization / affiliation
//	3. who invited you
//	4. email (optional; the line counts as email only when it contains '@')
//	5. interests
//	6. social handle, or "skip" to opt out
//
// A message qualifies only when it has at least five non-empty lines and the
// first three carry a numeric list marker. Anything else is ordinary chat
// and returns ok=false.
func ParseIntroduction(text string) (domain.Introduction, bool) {
	var intro domain.Introduction

	lines := make([]string, 0, 8)
	for _, raw := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(raw); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) < 5 {
		return intro, false
	}
	for i := 0; i < 3; i++ {
		if !ordinalRE.MatchString(lines[i]) {
			return intro, false
		}
	}

	fields := make([]string, 0, len(lines))
	for _, l := range lines {
		fields = append(fields, strings.TrimSpace(ordinalRE.ReplaceAllString(l, "")))
	}

	intro.Name = fields[0]
	intro.Organization = fields[1]
	intro.Inviter = fields[2]

	// Line 4 is the optional email; when it is not an address the remaining
	// fields shift up by one.
	rest := fields[3:]
	if strings.Contains(rest[0], "@") {
		intro.Email = rest[0]
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return domain.Introduction{}, false
	}
	intro.Interests = rest[0]
	if len(rest) > 1 {
		intro.SocialHandle = rest[1]
	}

	if intro.Name == "" || intro.Inviter == "" {
		return domain.Introduction{}, false
	}
	return intro, true
}

// OptedOutOfSocial reports whether the candidate explicitly declined the
// social-handle field.
func OptedOutOfSocial(i domain.Introduction) bool {
	return strings.EqualFold(strings.TrimSpace(i.SocialHandle), "skip")
}
