package brain

import (
	"strconv"
	"strings"
)

// Spoken-number vocabulary. Recognizers usually emit digits, but short counts
// and house numbers still arrive spelled out ("stop three", "three thirty
// three fleming road"), so transcripts are normalized before matching.
var unitWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

func isNumberWord(w string) bool {
	if w == "oh" {
		return true
	}
	if _, ok := unitWords[w]; ok {
		return true
	}
	_, ok := tensWords[w]
	return ok
}

// normalizeNumbers rewrites runs of spoken number words as digit strings,
// leaving all other tokens untouched. Consecutive number words concatenate the
// way addresses are read aloud: "three three three" is 333, "three thirty
// three" is also 333, and a tens word followed by a unit combines ("twenty
// one" is 21). "oh" counts as a zero only inside a run that contains a real
// number word, so a bare interjection is never rewritten.
func normalizeNumbers(text string) string {
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))

	i := 0
	for i < len(tokens) {
		if !isNumberWord(tokens[i]) {
			out = append(out, tokens[i])
			i++
			continue
		}
		j := i
		for j < len(tokens) && isNumberWord(tokens[j]) {
			j++
		}
		if digits, ok := runToDigits(tokens[i:j]); ok {
			out = append(out, digits)
		} else {
			out = append(out, tokens[i:j]...)
		}
		i = j
	}
	return strings.Join(out, " ")
}

// runToDigits converts one run of number words to its digit string. Returns
// false when the run carries no real number word (all "oh").
func runToDigits(run []string) (string, bool) {
	var b strings.Builder
	real := false
	for k := 0; k < len(run); k++ {
		w := run[k]
		if w == "oh" {
			b.WriteString("0")
			continue
		}
		real = true
		if t, ok := tensWords[w]; ok {
			if k+1 < len(run) {
				if u, ok := unitWords[run[k+1]]; ok && u >= 1 && u <= 9 {
					b.WriteString(strconv.Itoa(t + u))
					k++
					continue
				}
			}
			b.WriteString(strconv.Itoa(t))
			continue
		}
		b.WriteString(strconv.Itoa(unitWords[w]))
	}
	return b.String(), real
}
