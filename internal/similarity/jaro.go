// Package similarity implements Jaro and Jaro-Winkler string similarity
// used by the fuzzy duplicate finder.
package similarity

import "strings"

// winklerPrefixCap bounds the shared-prefix boost.
const winklerPrefixCap = 4

// DefaultPrefixWeight is the standard Winkler prefix scaling factor.
const DefaultPrefixWeight = 0.1

// Jaro returns the Jaro similarity of a and b in [0, 1]. Comparison is
// case-insensitive. Both strings empty scores 1; exactly one empty scores 0.
func Jaro(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	s1 := []rune(strings.ToLower(a))
	s2 := []rune(strings.ToLower(b))
	len1, len2 := len(s1), len(s2)

	window := max(len1, len2)/2 - 1
	if window < 0 {
		window = 0
	}

	match1 := make([]bool, len1)
	match2 := make([]bool, len2)

	// Greedy first-available matching within the window.
	matches := 0
	for i := 0; i < len1; i++ {
		start := max(0, i-window)
		end := min(i+window+1, len2)
		for j := start; j < end; j++ {
			if match2[j] || s1[i] != s2[j] {
				continue
			}
			match1[i] = true
			match2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	// Count matched characters that are out of order.
	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !match1[i] {
			continue
		}
		for !match2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len1) + m/float64(len2) + (m-t)/m) / 3
}

// JaroWinkler boosts the Jaro score by the length of the shared prefix
// (up to 4 runes) scaled by prefixWeight.
func JaroWinkler(a, b string, prefixWeight float64) float64 {
	j := Jaro(a, b)

	s1 := []rune(strings.ToLower(a))
	s2 := []rune(strings.ToLower(b))
	limit := min(winklerPrefixCap, min(len(s1), len(s2)))

	prefix := 0
	for i := 0; i < limit; i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}

	return j + float64(prefix)*prefixWeight*(1-j)
}

// NormalizeKey reduces free-text fields to comparable keys: trim,
// lowercase, strip everything outside [a-z0-9@. ] so formatting noise
// does not create false distinctness.
func NormalizeKey(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '@', r == '.', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
