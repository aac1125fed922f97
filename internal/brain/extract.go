// Package brain implements the voice package-to-stop matching engine: keyword
// extraction over raw transcripts, a fuzzy index of route stops, and the
// resolution chain that turns a spoken utterance into a stop prediction.
package brain

import (
	"regexp"
	"strings"

	"github.com/routevox/routevox/internal/route"
)

// Extracted holds the structured attributes stripped out of a transcript.
type Extracted struct {
	// Size is the package size class. Defaults to [route.SizeMedium] when no
	// size keyword is present.
	Size route.Size

	// Priority is true when a priority keyword was spoken.
	Priority bool

	// Notes carries generated annotations (currently only "Priority").
	Notes string
}

// Size keyword classes are checked in declaration order; the first class with
// any hit wins, so "large small parcel" extracts as large.
var (
	largeWords    = regexp.MustCompile(`\b(large|big|heavy|huge|oversize|box)\b`)
	smallWords    = regexp.MustCompile(`\b(small|tiny|letter|spur)\b`)
	priorityWords = regexp.MustCompile(`\b(priority|rush|express|urgent)\b`)

	whitespace = regexp.MustCompile(`\s+`)
)

// Extract strips size and priority keywords out of a raw transcript and
// returns the remaining search text plus the extracted attributes.
//
// The input is lowercased and spoken numbers are rewritten as digits; each
// keyword class is matched with word-boundary
// regular expressions and removed from the working text; the remainder is
// whitespace-collapsed and trimmed. Extract is pure and deterministic: the
// same input always produces the same output, with no I/O or side effects.
// A pure-keyword utterance (e.g., "large urgent") yields an empty clean query
// with the attributes still populated.
func Extract(text string) (cleanQuery string, ex Extracted) {
	working := normalizeNumbers(strings.ToLower(text))
	ex.Size = route.SizeMedium

	// Both size classes are removed from the working text, but only the first
	// class with a hit decides the size: large beats small when both appear.
	if largeWords.MatchString(working) {
		ex.Size = route.SizeLarge
	} else if smallWords.MatchString(working) {
		ex.Size = route.SizeSmall
	}
	working = largeWords.ReplaceAllString(working, " ")
	working = smallWords.ReplaceAllString(working, " ")

	if priorityWords.MatchString(working) {
		ex.Priority = true
		ex.Notes = "Priority"
		working = priorityWords.ReplaceAllString(working, " ")
	}

	cleanQuery = strings.TrimSpace(whitespace.ReplaceAllString(working, " "))
	return cleanQuery, ex
}
