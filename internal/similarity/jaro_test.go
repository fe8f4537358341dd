package similarity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestJaro_Identity(t *testing.T) {
	for _, s := range []string{"a", "martha", "John Doe", "日本語"} {
		if got := Jaro(s, s); got != 1 {
			t.Errorf("Jaro(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestJaro_EmptyStrings(t *testing.T) {
	if got := Jaro("", ""); got != 1 {
		t.Errorf("Jaro of two empty strings = %v, want 1", got)
	}
	if got := Jaro("", "x"); got != 0 {
		t.Errorf("Jaro(\"\", \"x\") = %v, want 0", got)
	}
	if got := Jaro("x", ""); got != 0 {
		t.Errorf("Jaro(\"x\", \"\") = %v, want 0", got)
	}
}

func TestJaro_ReferenceValues(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"martha", "marhta", 0.944},
		{"dixon", "dicksonx", 0.767},
		{"jellyfish", "smellyfish", 0.896},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := Jaro(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("Jaro(%q, %q) = %.3f, want %.3f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJaro_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"martha", "marhta"},
		{"acme corp", "acme corporation"},
		{"", "nonempty"},
	}
	for _, p := range pairs {
		if Jaro(p[0], p[1]) != Jaro(p[1], p[0]) {
			t.Errorf("Jaro not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestJaro_CaseInsensitive(t *testing.T) {
	if Jaro("Martha", "MARHTA") != Jaro("martha", "marhta") {
		t.Error("expected case-insensitive comparison")
	}
}

func TestJaroWinkler_ReferenceValue(t *testing.T) {
	got := JaroWinkler("martha", "marhta", DefaultPrefixWeight)
	if !almostEqual(got, 0.961) {
		t.Errorf("JaroWinkler(martha, marhta) = %.3f, want 0.961", got)
	}
	if got <= 0.9 {
		t.Errorf("expected score > 0.9, got %.3f", got)
	}
}

func TestJaroWinkler_PrefixCap(t *testing.T) {
	// Shared prefix longer than 4 must not boost beyond the cap.
	a, b := "prefixed-one", "prefixed-two"
	j := Jaro(a, b)
	want := j + 4*DefaultPrefixWeight*(1-j)
	if got := JaroWinkler(a, b, DefaultPrefixWeight); !almostEqual(got, want) {
		t.Errorf("JaroWinkler = %.4f, want %.4f (prefix capped at 4)", got, want)
	}
}

func TestJaroWinkler_WildlyDifferentLengths(t *testing.T) {
	long := "supercalifragilisticexpialidocious dataquality incorporated llc"
	got := JaroWinkler("a", long, DefaultPrefixWeight)
	if got < 0 || got > 1 {
		t.Errorf("score %v outside [0,1]", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" John.Doe@Example.com ", "john.doe@example.com"},
		{"Acme, Inc!", "acme inc"},
		{"  ", ""},
		{"", ""},
		{"O'Brien & Sons #1", "obrien  sons 1"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
