package onboarding

import (
	"testing"
)

const fullIntro = `1. Ada Lovelace
2. Analytical Engines Ltd
3. Charles Babbage
4. ada@engines.example
5. mathematics, programming
6. @ada`

func TestParseIntroduction_Full(t *testing.T) {
	intro, ok := ParseIntroduction(fullIntro)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if intro.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", intro.Name)
	}
	if intro.Organization != "Analytical Engines Ltd" {
		t.Fatalf("organization = %q", intro.Organization)
	}
	if intro.Inviter != "Charles Babbage" {
		t.Fatalf("inviter = %q", intro.Inviter)
	}
	if intro.Email != "ada@engines.example" {
		t.Fatalf("email = %q", intro.Email)
	}
	if intro.Interests != "mathematics, programming" {
		t.Fatalf("interests = %q", intro.Interests)
	}
	if intro.SocialHandle != "@ada" {
		t.Fatalf("social = %q", intro.SocialHandle)
	}
}

func TestParseIntroduction_NoEmailShiftsFields(t *testing.T) {
	text := "1) Grace Hopper\n2) Navy\n3) Howard Aiken\n4) compilers, cobol\n5) skip"
	intro, ok := ParseIntroduction(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if intro.Email != "" {
		t.Fatalf("email = %q, want empty", intro.Email)
	}
	if intro.Interests != "compilers, cobol" {
		t.Fatalf("interests = %q", intro.Interests)
	}
	if !OptedOutOfSocial(intro) {
		t.Fatal("expected social opt-out")
	}
}

func TestParseIntroduction_SeparatorVariants(t *testing.T) {
	text := "1- Alan Turing\n2- NPL\n3- Max Newman\n4- computability\n5- skip"
	if _, ok := ParseIntroduction(text); !ok {
		t.Fatal("dash separator should parse")
	}
}

func TestParseIntroduction_RejectsOrdinaryChat(t *testing.T) {
	cases := []string{
		"",
		"hello everyone!",
		"1. just\n2. four\n3. lines\n4. here",
		"my name is Bob\nI work at ACME\nDave invited me\nbob@x.y\nstuff", // no markers
		"1. a\n2. b\nno marker on three\n4. d\n5. e",
	}
	for _, text := range cases {
		if _, ok := ParseIntroduction(text); ok {
			t.Errorf("unexpected parse success for %q", text)
		}
	}
}

func TestParseIntroduction_BlankLinesIgnored(t *testing.T) {
	text := "1. Ada\n\n2. Engines\n\n3. Babbage\n\n4. math\n\n5. skip"
	intro, ok := ParseIntroduction(text)
	if !ok {
		t.Fatal("expected parse with blank lines")
	}
	if intro.Name != "Ada" || intro.Interests != "math" {
		t.Fatalf("parsed = %+v", intro)
	}
}

func TestRecommend(t *testing.T) {
	rec := NewRecommender(map[string]string{
		"forensics": "room-dfir",
		"malware":   "room-re",
		"GOLANG":    "room-dev",
	})

	got := rec.Recommend("Digital Forensics, golang, and hiking")
	if len(got) != 2 || got[0] != "room-dev" || got[1] != "room-dfir" {
		t.Fatalf("recommend = %v", got)
	}

	if got := rec.Recommend("knitting"); got != nil {
		t.Fatalf("expected nil for no matches, got %v", got)
	}
	if got := NewRecommender(nil).Recommend("forensics"); got != nil {
		t.Fatalf("empty table must recommend nothing, got %v", got)
	}
}

func TestRecommend_Dedupes(t *testing.T) {
	rec := NewRecommender(map[string]string{
		"forensics": "room-dfir",
		"dfir":      "room-dfir",
	})
	if got := rec.Recommend("forensics and dfir"); len(got) != 1 {
		t.Fatalf("expected deduped single room, got %v", got)
	}
}
