package bias

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	contextRadius = 50
	maxExamples   = 3
)

// contextWindow extracts ±contextRadius characters around [start, end).
func contextWindow(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	// Do not split a multibyte rune at either edge.
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}

// scanPattern collects up to maxExamples context windows for each match
// of a compiled pattern in text.
func scanPattern(text string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(text, maxExamples)
	if locs == nil {
		return nil
	}
	examples := make([]string, 0, len(locs))
	for _, loc := range locs {
		examples = append(examples, contextWindow(text, loc[0], loc[1]))
	}
	return examples
}

// scanSubstring collects up to maxExamples context windows for each
// occurrence of needle in haystack. Both are expected lower-cased by
// the caller.
func scanSubstring(haystack, needle string) []string {
	if needle == "" {
		return nil
	}
	var examples []string
	offset := 0
	for len(examples) < maxExamples {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			break
		}
		start := offset + i
		examples = append(examples, contextWindow(haystack, start, start+len(needle)))
		offset = start + len(needle)
	}
	return examples
}

// firstWords returns the first n whitespace-separated words of text,
// lower-cased, for the framing lead check.
func firstWords(text string, n int) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) > n {
		fields = fields[:n]
	}
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[strings.Trim(f, `.,;:!?"'()[]`)] = true
	}
	return words
}
