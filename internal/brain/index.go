package brain

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/routevox/routevox/internal/route"
)

const (
	defaultCutoff            = 0.60
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// Field weights. The street line is the most discriminative token source;
	// notes catch landmark references ("the blue house") but rank lowest.
	weightAddressLine1 = 1.0
	weightFullAddress  = 0.90
	weightNotes        = 0.60
)

// IndexOption is a functional option for configuring a [StopIndex].
type IndexOption func(*StopIndex)

// WithCutoff sets the similarity score below which a stop is excluded from
// search results entirely (treated as no match, not a low-confidence match).
// Default: 0.60.
func WithCutoff(cutoff float64) IndexOption {
	return func(ix *StopIndex) {
		ix.cutoff = cutoff
	}
}

// WithPhoneticThreshold sets the minimum per-token Jaro-Winkler score required
// for a phonetically-overlapping token pair to gate a stop into the result
// set. Default: 0.70.
func WithPhoneticThreshold(threshold float64) IndexOption {
	return func(ix *StopIndex) {
		ix.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum per-token Jaro-Winkler score required
// when no phonetic overlap exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) IndexOption {
	return func(ix *StopIndex) {
		ix.fuzzyThreshold = threshold
	}
}

// Match is one ranked search result.
type Match struct {
	// Stop references the matched stop in the indexed list. No ownership —
	// it is a copy of the list entry at index-build time.
	Stop route.Stop

	// Position is the stop's 1-based position at index-build time.
	Position int

	// Score is the normalized similarity confidence in [0, 1], already
	// expressed as 1 − distance so that higher is better.
	Score float64
}

// indexedStop is one stop with its pre-tokenised, pre-encoded search fields.
type indexedStop struct {
	stop     route.Stop
	position int
	fields   []indexedField
}

// indexedField pairs a tokenised text field with its weight and the Double
// Metaphone codes of each token.
type indexedField struct {
	tokens []string
	codes  []map[string]struct{}
	weight float64
}

// StopIndex is a fuzzy-search index over an ordered stop list. The index is
// immutable once constructed: when the stop list changes, callers build a new
// index rather than patching this one. All methods are safe for concurrent
// use after construction.
//
// Matching works in two stages per query token, mirroring phonetic-first
// entity matching:
//
//  1. Double Metaphone codes gate candidates: a token pair with overlapping
//     codes only needs to clear the (lower) phonetic threshold.
//  2. Pure Jaro-Winkler similarity admits pairs with no phonetic overlap at
//     the (higher) fuzzy threshold.
//
// A stop's field score is the mean of each query token's best pair score
// against that field's tokens; the stop score is the best weighted field
// score. Stops where no token pair clears either gate are excluded.
type StopIndex struct {
	stops []indexedStop

	cutoff            float64
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewStopIndex builds an index over the given ordered stop list.
func NewStopIndex(stops []route.Stop, opts ...IndexOption) *StopIndex {
	ix := &StopIndex{
		cutoff:            defaultCutoff,
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(ix)
	}

	ix.stops = make([]indexedStop, 0, len(stops))
	for i, s := range stops {
		entry := indexedStop{stop: s, position: i + 1}
		for _, f := range []struct {
			text   string
			weight float64
		}{
			{s.AddressLine1, weightAddressLine1},
			{s.FullAddress(), weightFullAddress},
			{s.Notes, weightNotes},
		} {
			if strings.TrimSpace(f.text) == "" {
				continue
			}
			tokens := strings.Fields(strings.ToLower(f.text))
			entry.fields = append(entry.fields, indexedField{
				tokens: tokens,
				codes:  encodeTokens(tokens),
				weight: f.weight,
			})
		}
		ix.stops = append(ix.stops, entry)
	}
	return ix
}

// Search returns all stops whose similarity to query clears the cutoff,
// ordered best-first. An empty or whitespace query returns nil.
func (ix *StopIndex) Search(query string) []Match {
	queryTokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(queryTokens) == 0 {
		return nil
	}
	queryCodes := encodeTokens(queryTokens)

	var matches []Match
	for _, entry := range ix.stops {
		score, ok := ix.scoreStop(queryTokens, queryCodes, entry)
		if !ok || score < ix.cutoff {
			continue
		}
		matches = append(matches, Match{
			Stop:     entry.stop,
			Position: entry.position,
			Score:    score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// scoreStop computes the best weighted field score for one stop. ok is false
// when no query token gated into any field, which excludes the stop even if
// raw similarity numbers are nonzero.
func (ix *StopIndex) scoreStop(queryTokens []string, queryCodes []map[string]struct{}, entry indexedStop) (score float64, ok bool) {
	best := 0.0
	gated := false

	for _, field := range entry.fields {
		sum := 0.0
		fieldGated := false
		for qi, qt := range queryTokens {
			tokenBest := 0.0
			for ti, ft := range field.tokens {
				jw := matchr.JaroWinkler(qt, ft, false)
				phonetic := codesOverlap(queryCodes[qi], field.codes[ti])
				if (phonetic && jw >= ix.phoneticThreshold) || jw >= ix.fuzzyThreshold {
					fieldGated = true
				}
				if jw > tokenBest {
					tokenBest = jw
				}
			}
			sum += tokenBest
		}
		if !fieldGated {
			continue
		}
		gated = true
		if s := field.weight * sum / float64(len(queryTokens)); s > best {
			best = s
		}
	}

	return best, gated
}

// encodeTokens returns the Double Metaphone code set for each token. Codes
// can be empty for tokens with no consonant content (e.g., pure numbers).
func encodeTokens(tokens []string) []map[string]struct{} {
	codes := make([]map[string]struct{}, len(tokens))
	for i, t := range tokens {
		set := make(map[string]struct{}, 2)
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			set[p] = struct{}{}
		}
		if s != "" {
			set[s] = struct{}{}
		}
		codes[i] = set
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
