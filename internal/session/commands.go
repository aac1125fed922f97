package session

import (
	"regexp"
	"strings"
)

// Voice command patterns are anchored to the start of the utterance so that
// command words buried inside an address ("cancel road") still resolve as
// search text everywhere except the leading position.
var (
	cancelPattern = regexp.MustCompile(`^\s*(stop|no|wrong|wait|cancel)\b`)
	undoPattern   = regexp.MustCompile(`^\s*(undo|delete|revert)\b`)
)

// isCancel reports whether text starts with a recognised cancel utterance.
// Checked on every transcript that arrives while a countdown is active.
func isCancel(text string) bool {
	return cancelPattern.MatchString(strings.ToLower(text))
}

// isUndo reports whether text starts with a recognised undo utterance.
func isUndo(text string) bool {
	return undoPattern.MatchString(strings.ToLower(text))
}
