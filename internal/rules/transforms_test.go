package rules

import "testing"

func TestTitleCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"o'brien mcdonald", "O'Brien McDonald"},
		{"JANE   DOE", "Jane Doe"},
		{"  van der berg ", "Van Der Berg"},
		{"mc", "Mc"}, // too short for the Mc rule
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, country, want string
	}{
		{"(555) 010-4477", "US", "+15550104477"},
		{"(555) 010-4477", "CA", "+15550104477"},
		{"(555) 010-4477", "", "5550104477"},
		{"+44 20 7946 0958", "US", "+442079460958"},
		{"555-0104", "US", "5550104"}, // not 10 digits, left bare
		{"ext.", "US", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in, tt.country); got != tt.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tt.in, tt.country, got, tt.want)
		}
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct{ in, want string }{
		{"United States", "US"},
		{"u.s.a.", "US"},
		{" uk ", "GB"},
		{"Canada", "CA"},
		{"Germany", "Germany"}, // unknown passes through
	}
	for _, tt := range tests {
		if got := NormalizeCountry(tt.in); got != tt.want {
			t.Errorf("NormalizeCountry(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		in, country, want string
	}{
		{"california", "US", "CA"},
		{"New York", "", "NY"},
		{"tx", "US", "TX"},
		{"bavaria", "Germany", "bavaria"},
		{"ca", "germany", "ca"},
		{"Puerto Madryn", "US", "Puerto Madryn"}, // unknown, not 2 letters
	}
	for _, tt := range tests {
		if got := NormalizeState(tt.in, tt.country); got != tt.want {
			t.Errorf("NormalizeState(%q, %q) = %q, want %q", tt.in, tt.country, got, tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2024-03-07", "2024-03-07"},
		{"03/07/2024", "2024-03-07"},
		{"March 7, 2024", "2024-03-07"},
		{"2024-03-07T10:30:00Z", "2024-03-07"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last@sub.domain.org"}
	invalid := []string{"", "no-at-sign", "a@b", "two@@x.com", "spaces in@x.com"}

	for _, e := range valid {
		if !ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = false, want true", e)
		}
	}
	for _, e := range invalid {
		if ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = true, want false", e)
		}
	}
}
