package core

import "regexp"

// Same character classes the room UI has always linkified: scheme followed
// by standard URL characters, percent-escapes included.
var urlPattern = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

// ExtractLinks returns the URL substrings of text in order of appearance.
// Pure function; no fetching, no caching.
func ExtractLinks(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
