// Package sanitize provides text sanitization utilities to prevent XSS attacks.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxCommentLength bounds stored audit comments, in runes.
const MaxCommentLength = 2000

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// StripControl drops control characters except newlines and tabs.
// Carriage returns are dropped too, so CRLF becomes LF.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

// Text sanitizes a string for safe text storage by stripping HTML
// and control characters, then collapsing runs of spaces.
func Text(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(StripControl(StripHTML(s)), " "))
}

// Comment sanitizes free-text comments and truncates them to MaxCommentLength.
// An empty result means the comment is blank and should not be stored.
func Comment(s string) string {
	result := Text(s)
	if utf8.RuneCountInString(result) <= MaxCommentLength {
		return result
	}
	runes := []rune(result)
	return strings.TrimSpace(string(runes[:MaxCommentLength]))
}
