package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// Common Portuguese abbreviations that end with a period but do not end a
// sentence.
var abbreviations = map[string]bool{
	"sr":    true,
	"sra":   true,
	"srta":  true,
	"dr":    true,
	"dra":   true,
	"prof":  true,
	"profa": true,
	"pe":    true,
	"av":    true,
	"ex":    true,
	"etc":   true,
	"pag":   true,
	"pg":    true,
	"cap":   true,
	"vol":   true,
	"num":   true,
	"tel":   true,
}

var fallbackSplitRe = regexp.MustCompile(`[.!?]+`)

// SplitSentences divides text into sentences, keeping terminal punctuation.
// It is aware of common Portuguese abbreviations, initials, decimal numbers,
// and ellipses. When the main pass produces nothing usable it falls back to
// a plain punctuation split.
func SplitSentences(text string) []string {
	sentences := splitAware(text)
	if len(sentences) == 0 {
		for _, s := range fallbackSplitRe.Split(text, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

func splitAware(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Consume punctuation runs ("...", "?!") as one terminator.
		end := i
		for end+1 < len(runes) && (runes[end+1] == '.' || runes[end+1] == '!' || runes[end+1] == '?') {
			end++
		}

		if r == '.' && end == i && !isBoundary(runes, i) {
			continue
		}

		s := strings.TrimSpace(string(runes[start : end+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end + 1
		i = end
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// isBoundary reports whether the period at position i ends a sentence.
func isBoundary(runes []rune, i int) bool {
	// Decimal numbers: 3.14
	if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
		return false
	}

	// Word immediately before the period.
	j := i
	for j > 0 && (unicode.IsLetter(runes[j-1]) || unicode.IsDigit(runes[j-1])) {
		j--
	}
	word := strings.ToLower(string(runes[j:i]))

	if abbreviations[word] {
		return false
	}

	// Single-letter initials: "J. Silva"
	if len([]rune(word)) == 1 && unicode.IsLetter(runes[i-1]) && unicode.IsUpper(runes[i-1]) {
		return false
	}

	// Next printable rune must start a new sentence.
	k := i + 1
	for k < len(runes) && unicode.IsSpace(runes[k]) {
		k++
	}
	if k == len(runes) {
		return true
	}
	if k == i+1 {
		// No whitespace after the period: not a boundary (e.g. "www.site.com").
		return false
	}
	next := runes[k]
	return unicode.IsUpper(next) || unicode.IsDigit(next) || next == '"' || next == '“' || next == '(' || next == '-' || next == '—'
}
