package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/dataquality-cli/internal/model"
)

// Transforms are conservative and deterministic: when a value cannot be
// normalized confidently it is returned unchanged.

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether v looks like an email address. The check is
// deliberately loose; the upstream CRM is the authority.
func ValidEmail(v string) bool {
	return v != "" && emailRe.MatchString(v)
}

// TitleCase lowercases then capitalizes each whitespace-separated part,
// with basic handling for O'Connor and McDonald style names.
func TitleCase(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	for i, part := range parts {
		switch {
		case strings.Contains(part, "'"):
			segs := strings.Split(part, "'")
			for j, s := range segs {
				segs[j] = capitalize(s)
			}
			parts[i] = strings.Join(segs, "'")
		case strings.HasPrefix(part, "mc") && len(part) > 2:
			parts[i] = "Mc" + capitalize(part[2:])
		default:
			parts[i] = capitalize(part)
		}
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var nonDigitRe = regexp.MustCompile(`\D+`)

// NormalizePhone strips formatting down to digits. A leading + is kept
// with the digits; a bare 10-digit North American number gains +1 when
// defaultCountry is US or CA.
func NormalizePhone(raw, defaultCountry string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		return "+" + digits
	}
	if (defaultCountry == "US" || defaultCountry == "CA") && len(digits) == 10 {
		return "+1" + digits
	}
	return digits
}

var countryMap = map[string]string{
	"united states": "US", "usa": "US", "us": "US", "u.s.": "US", "u.s.a.": "US",
	"canada": "CA", "ca": "CA",
	"united kingdom": "GB", "uk": "GB", "gb": "GB",
}

// NormalizeCountry maps common country aliases to ISO codes; unknown
// values pass through.
func NormalizeCountry(v string) string {
	if mapped, ok := countryMap[strings.ToLower(strings.TrimSpace(v))]; ok {
		return mapped
	}
	return v
}

var usStateMap = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

var twoLetterRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// NormalizeState maps full US state names to two-letter codes and
// uppercases existing two-letter codes. Non-US countries pass through.
func NormalizeState(v, country string) string {
	if v == "" {
		return v
	}
	if country != "" && strings.ToUpper(country) != "US" {
		return v
	}
	if code, ok := usStateMap[strings.ToLower(strings.TrimSpace(v))]; ok {
		return code
	}
	if twoLetterRe.MatchString(v) {
		return strings.ToUpper(v)
	}
	return v
}

// dateLayouts are tried in order when normalizing dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// NormalizeDate reformats a parseable date as YYYY-MM-DD; unparseable
// values pass through.
func NormalizeDate(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return v
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

// applyOp runs one rule's transform against the current property map and
// returns the new value. ok is false when the op does not apply.
func applyOp(rule model.Rule, props map[string]string) (string, bool) {
	value, present := props[rule.Property]
	if !present {
		return "", false
	}

	switch rule.Op {
	case model.OpLowercase:
		return strings.ToLower(value), true
	case model.OpTrim:
		return strings.TrimSpace(value), true
	case model.OpTitleCase:
		return TitleCase(value), true
	case model.OpEmail:
		return NormalizeEmail(value), true
	case model.OpPhone:
		return NormalizePhone(value, rule.Config.DefaultCountry), true
	case model.OpCountry:
		return NormalizeCountry(value), true
	case model.OpState:
		countryProp := rule.Config.CountryProperty
		if countryProp == "" {
			countryProp = "country"
		}
		return NormalizeState(value, props[countryProp]), true
	case model.OpDate:
		return NormalizeDate(value), true
	default:
		return "", false
	}
}
