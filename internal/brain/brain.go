package brain

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/routevox/routevox/internal/route"
)

// minAliasLen is the cleaned-query length a Learn call must exceed before an
// alias is persisted. Guards against learning throwaway words like "yes".
const minAliasLen = 3

// maxCandidates caps the runner-up stops attached to a fuzzy prediction for
// the disambiguation surface.
const maxCandidates = 3

// Source identifies which resolution stage produced a prediction.
type Source string

const (
	// SourceStopNumber resolves a spoken "stop N" to the Nth stop.
	SourceStopNumber Source = "stop_number"

	// SourceAlias resolves via a previously-taught utterance mapping.
	SourceAlias Source = "alias"

	// SourceExact resolves via verbatim equality with a stop's address.
	SourceExact Source = "exact"

	// SourceFuzzy resolves via the similarity index.
	SourceFuzzy Source = "fuzzy"

	// SourceNone means no stop could be resolved.
	SourceNone Source = "none"
)

// AliasStore is a persisted mapping from cleaned utterance text to a stop ID.
// Lookups are exact-match only; fuzziness belongs to the index. Set for an
// existing key overwrites — later corrections supersede earlier ones.
//
// Implementations must be safe for concurrent use, and must degrade rather
// than fail: a broken backing store leaves Get returning nothing.
type AliasStore interface {
	// Get returns the stop ID taught for key, if any.
	Get(key string) (stopID string, ok bool)

	// Set durably records key → stopID, overwriting any previous mapping.
	Set(ctx context.Context, key, stopID string) error
}

// Prediction is the ephemeral output of one [RouteBrain.Predict] call.
//
// Invariant: Stop == nil ⇔ Confidence == 0 ⇔ Source == [SourceNone].
type Prediction struct {
	// Stop is the resolved stop, nil when nothing matched. It is a reference
	// into the stop list snapshot the brain was built from, not owned data;
	// commits must re-resolve by ID against the live list.
	Stop *route.Stop

	// Candidates holds up to 3 runner-up stops for disambiguation.
	Candidates []route.Stop

	// Confidence is in [0, 1]. Exactly 1.0 for stop-number, alias, and exact
	// resolutions; the index score for fuzzy ones; 0 for none.
	Confidence float64

	// Source names the resolution stage that produced this prediction.
	Source Source

	// OriginalTranscript is the raw input text, preserved for analytics and
	// for Learn calls on manual correction.
	OriginalTranscript string

	// Extracted holds the size/priority attributes stripped during cleaning.
	Extracted Extracted

	// CleanQuery is the transcript after keyword stripping, the text that was
	// actually resolved.
	CleanQuery string
}

// stopNumberPattern matches utterances like "stop 3" after cleaning.
var stopNumberPattern = regexp.MustCompile(`^stop\s+(\d+)$`)

// RouteBrain resolves noisy transcripts to route stops. It composes the
// entity extractor, the fuzzy stop index, and the alias store into a single
// predict/learn contract.
//
// A RouteBrain is stateless with respect to sessions and immutable once
// built: construct a new one whenever the stop list changes. All methods are
// safe for concurrent use.
type RouteBrain struct {
	stops   []route.Stop
	index   *StopIndex
	aliases AliasStore

	// byAddress maps lowercased full addresses and street lines to stop
	// indices for the verbatim-equality stage.
	byAddress map[string]int
}

// New builds a RouteBrain over the given ordered stop list. aliases may be
// nil, in which case the alias stage is skipped and Learn is a no-op.
// Index options are forwarded to the underlying [StopIndex].
func New(stops []route.Stop, aliases AliasStore, opts ...IndexOption) *RouteBrain {
	byAddress := make(map[string]int, len(stops)*2)
	for i, s := range stops {
		if full := strings.ToLower(s.FullAddress()); full != "" {
			byAddress[full] = i
		}
		if line := strings.ToLower(s.AddressLine1); line != "" {
			byAddress[line] = i
		}
	}
	return &RouteBrain{
		stops:     stops,
		index:     NewStopIndex(stops, opts...),
		aliases:   aliases,
		byAddress: byAddress,
	}
}

// Predict resolves transcript to a stop. Resolution stages are strictly
// prioritized and the first hit wins:
//
//  1. Stop-number utterance ("stop N", 1-indexed, in range) — confidence 1.0.
//  2. Exact alias on the cleaned query — confidence 1.0.
//  3. Verbatim address equality — confidence 1.0.
//  4. Fuzzy index search — best result above the cutoff, with runner-up
//     candidates attached.
//  5. No match.
//
// An empty cleaned query (pure keyword utterance such as "large") short-
// circuits to no-match without touching the alias store or the index.
func (b *RouteBrain) Predict(transcript string) Prediction {
	clean, extracted := Extract(transcript)

	p := Prediction{
		Source:             SourceNone,
		OriginalTranscript: transcript,
		Extracted:          extracted,
		CleanQuery:         clean,
	}
	if clean == "" {
		return p
	}

	// Stage 1: stop-number utterance.
	if m := stopNumberPattern.FindStringSubmatch(clean); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(b.stops) {
			p.Stop = &b.stops[n-1]
			p.Confidence = 1.0
			p.Source = SourceStopNumber
			return p
		}
	}

	// Stage 2: exact alias. An alias may point at a stop that has since been
	// deleted; treat that as no hit and fall through to fuzzy search.
	if b.aliases != nil {
		if stopID, ok := b.aliases.Get(clean); ok {
			if i := b.stopIndexByID(stopID); i >= 0 {
				p.Stop = &b.stops[i]
				p.Confidence = 1.0
				p.Source = SourceAlias
				return p
			}
		}
	}

	// Stage 3: verbatim address equality.
	if i, ok := b.byAddress[clean]; ok {
		p.Stop = &b.stops[i]
		p.Confidence = 1.0
		p.Source = SourceExact
		return p
	}

	// Stage 4: fuzzy search.
	matches := b.index.Search(clean)
	if len(matches) == 0 {
		return p
	}
	best := matches[0]
	p.Stop = &b.stops[best.Position-1]
	p.Confidence = best.Score
	p.Source = SourceFuzzy
	for _, m := range matches[1:] {
		if len(p.Candidates) == maxCandidates {
			break
		}
		p.Candidates = append(p.Candidates, m.Stop)
	}
	return p
}

// Learn durably maps transcript's cleaned query to stopID so future Predict
// calls bypass fuzzy search. Queries of length ≤ 3 are not learned. Returns
// an error only when the alias store write fails; callers log and move on —
// a failed write must never interrupt the active session.
func (b *RouteBrain) Learn(ctx context.Context, transcript, stopID string) error {
	clean, _ := Extract(transcript)
	if len(clean) <= minAliasLen {
		return nil
	}
	if b.aliases == nil {
		return nil
	}
	if err := b.aliases.Set(ctx, clean, stopID); err != nil {
		return fmt.Errorf("brain: learn %q: %w", clean, err)
	}
	return nil
}

// Stops returns the stop list snapshot this brain was built from.
func (b *RouteBrain) Stops() []route.Stop {
	return b.stops
}

// stopIndexByID returns the index of the stop with the given ID, or -1.
func (b *RouteBrain) stopIndexByID(id string) int {
	for i := range b.stops {
		if b.stops[i].ID == id {
			return i
		}
	}
	return -1
}
