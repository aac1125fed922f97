package brain_test

import (
	"testing"

	"github.com/routevox/routevox/internal/brain"
	"github.com/routevox/routevox/internal/route"
)

func testStops() []route.Stop {
	return []route.Stop{
		{ID: "s1", AddressLine1: "333 Fleming Road", City: "Springfield"},
		{ID: "s2", AddressLine1: "12 Oak St", City: "Springfield"},
		{ID: "s3", AddressLine1: "98 Maple Avenue", Notes: "the blue house"},
	}
}

func TestStopIndex_ExactTokens(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	matches := ix.Search("fleming road")
	if len(matches) == 0 {
		t.Fatal("Search(\"fleming road\"): no matches")
	}
	if matches[0].Stop.ID != "s1" {
		t.Errorf("best match=%q, want s1", matches[0].Stop.ID)
	}
	if matches[0].Position != 1 {
		t.Errorf("position=%d, want 1", matches[0].Position)
	}
	// Every query token hits a field token exactly, so the score is a full
	// 1.0 despite the unmatched "333" in the indexed text.
	if matches[0].Score < 0.99 {
		t.Errorf("score=%f, want ~1.0", matches[0].Score)
	}
}

func TestStopIndex_Misspelling(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	matches := ix.Search("flemming rode")
	if len(matches) == 0 {
		t.Fatal("Search(\"flemming rode\"): no matches")
	}
	if matches[0].Stop.ID != "s1" {
		t.Errorf("best match=%q, want s1", matches[0].Stop.ID)
	}
}

func TestStopIndex_NotesLandmark(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	matches := ix.Search("blue house")
	if len(matches) == 0 {
		t.Fatal("Search(\"blue house\"): no matches")
	}
	if matches[0].Stop.ID != "s3" {
		t.Errorf("best match=%q, want s3", matches[0].Stop.ID)
	}
	// Notes carry the lowest weight, so a landmark match never reads as a
	// full-confidence hit.
	if matches[0].Score > 0.61 {
		t.Errorf("score=%f, want <= 0.60 weighted", matches[0].Score)
	}
}

func TestStopIndex_GibberishExcluded(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	if matches := ix.Search("xyzzy totally unrelated gibberish"); len(matches) != 0 {
		t.Errorf("Search(gibberish): got %d matches, want 0", len(matches))
	}
}

func TestStopIndex_EmptyQuery(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	if matches := ix.Search("   "); matches != nil {
		t.Errorf("Search(blank): got %v, want nil", matches)
	}
}

func TestStopIndex_RankedBestFirst(t *testing.T) {
	t.Parallel()

	ix := brain.NewStopIndex(testStops())
	matches := ix.Search("oak st springfield")
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if matches[0].Stop.ID != "s2" {
		t.Errorf("best match=%q, want s2", matches[0].Stop.ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not ordered best-first at %d: %f > %f", i, matches[i].Score, matches[i-1].Score)
		}
	}
}

func TestStopIndex_CutoffOption(t *testing.T) {
	t.Parallel()

	// With the cutoff forced above 1.0 nothing can pass.
	ix := brain.NewStopIndex(testStops(), brain.WithCutoff(1.01))
	if matches := ix.Search("fleming road"); len(matches) != 0 {
		t.Errorf("got %d matches with impossible cutoff, want 0", len(matches))
	}
}
