package names

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Hnutí Hare Kršna", "hnuti-hare-krsna"},
		{"Děti Boží", "deti-bozi"},
		{"Ánanda Márga", "ananda-marga"},
		{"Církev sjednocení", "cirkev-sjednoceni"},
		{"Šinčchondži", "sincchondzi"},
		{"  spaced   out  ", "spaced-out"},
		{"under_score", "under-score"},
		{"already-a-slug", "already-a-slug"},
		{"Trailing! Punctuation?", "trailing-punctuation"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"Hnutí Hare Kršna", "Baháʼí víra", "A -- B", "x", ""}
	for _, in := range inputs {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Fatalf("Slugify not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSlugify_Alphabet(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Hnutí Hare Kršna", "Baháʼí víra", "Vesmírní lidé!!!", "ID 42/b"} {
		slug := Slugify(in)
		for _, r := range slug {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
				t.Fatalf("Slugify(%q) produced out-of-alphabet rune %q in %q", in, r, slug)
			}
		}
		if len(slug) > 0 && (slug[0] == '-' || slug[len(slug)-1] == '-') {
			t.Fatalf("Slugify(%q) has leading/trailing hyphen: %q", in, slug)
		}
	}
}

func TestNormalizeForMatching(t *testing.T) {
	t.Parallel()

	if got := NormalizeForMatching("Hnutí  Hare\tKršna"); got != "hnuti hare krsna" {
		t.Fatalf("unexpected matching key: %q", got)
	}
	if got := NormalizeForMatching("ISKCON"); got != "iskcon" {
		t.Fatalf("unexpected matching key: %q", got)
	}
	if got := NormalizeForMatching("   "); got != "" {
		t.Fatalf("expected empty key for blank input, got %q", got)
	}
}

func TestIsSlugShaped(t *testing.T) {
	t.Parallel()

	if !IsSlugShaped("hnuti-hare-krsna") {
		t.Fatalf("expected hyphenated lowercase name to be slug shaped")
	}
	if IsSlugShaped("Hnutí Hare Kršna") {
		t.Fatalf("display name must not be slug shaped")
	}
	if IsSlugShaped("single") {
		t.Fatalf("name without hyphen must not be slug shaped")
	}
	if IsSlugShaped("Upper-Case") {
		t.Fatalf("name with uppercase must not be slug shaped")
	}
}
