package util

import (
	"regexp"
	"strings"
)

// DefaultMessageLimit is the outbound chunk size used when splitting
// replies that exceed the transport's message-length ceiling.
const DefaultMessageLimit = 3500

var (
	urlPrefixRegex   = regexp.MustCompile(`(?i)^(https?://)?(www\.)?`)
	urlBracketsRegex = regexp.MustCompile(`[()\[\]"']`)

	phoneRegex = regexp.MustCompile(`\+?\d[\d\s\-()]{5,}\d`)
	emailRegex = regexp.MustCompile(`[\w.-]+@[\w.-]+`)
	coordRegex = regexp.MustCompile(`\b\d{1,3}\.\d+\s*,\s*-?\d{1,3}\.\d+\b`)
)

// CleanURL strips scheme, www prefix, path, query, fragment and stray
// bracket/quote characters from a URL so only the domain is stored.
func CleanURL(raw string) string {
	if raw == "" {
		return ""
	}
	// Brackets and quotes come off first so the scheme prefix is anchored
	// at the start of what remains.
	s := urlBracketsRegex.ReplaceAllString(strings.TrimSpace(raw), "")
	s = urlPrefixRegex.ReplaceAllString(strings.TrimSpace(s), "")
	for _, sep := range []string{"/", "?", "#"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// ScrubPII replaces phone numbers, email addresses and coordinate pairs in
// free-form text with neutral placeholders. Returns the scrubbed text and
// the list of replacements performed.
func ScrubPII(text string) (string, []string) {
	var changes []string
	if scrubbed := phoneRegex.ReplaceAllString(text, "[contact]"); scrubbed != text {
		changes = append(changes, "phone number removed")
		text = scrubbed
	}
	if scrubbed := emailRegex.ReplaceAllString(text, "[email]"); scrubbed != text {
		changes = append(changes, "email removed")
		text = scrubbed
	}
	if scrubbed := coordRegex.ReplaceAllString(text, "[coordinates]"); scrubbed != text {
		changes = append(changes, "coordinates removed")
		text = scrubbed
	}
	return text, changes
}

// SplitMessage splits text into chunks of at most limit bytes, breaking on
// newline boundaries where possible. A non-positive limit yields one chunk.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := limit
		if i := strings.LastIndex(text[:limit], "\n"); i > limit/2 {
			cut = i + 1
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
