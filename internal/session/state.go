// Package session implements the voice interaction state machine that drives
// package intake: listening for transcripts, resolving them to stops through
// the route brain, running a cancellable confirmation countdown, and
// committing package records.
package session

import (
	"github.com/routevox/routevox/internal/analytics"
	"github.com/routevox/routevox/internal/brain"
)

// Phase identifies the session's position in the interaction lifecycle.
type Phase string

const (
	// PhaseBooting is the initial phase before the session is started.
	PhaseBooting Phase = "booting"

	// PhaseListening means speech recognition is active and the session is
	// waiting for a finalized transcript.
	PhaseListening Phase = "listening"

	// PhaseProcessing means a finalized transcript is being resolved.
	PhaseProcessing Phase = "processing"

	// PhaseSuggesting means the best match fell below the auto-confirm
	// threshold and candidate stops are exposed for manual disambiguation.
	PhaseSuggesting Phase = "suggesting"

	// PhaseConfirming means a high-confidence match is counting down to an
	// automatic commit and can still be cancelled by voice.
	PhaseConfirming Phase = "confirming"

	// PhaseSuccess is the brief acknowledgment shown after a commit.
	PhaseSuccess Phase = "success"

	// PhaseError is the transient failure phase; it clears back to
	// listening automatically.
	PhaseError Phase = "error"

	// PhasePaused means the driver stopped the session explicitly. Only an
	// explicit resume re-enters listening.
	PhasePaused Phase = "paused"

	// PhaseSummary is the terminal end-of-session report phase.
	PhaseSummary Phase = "summary"
)

// State is a snapshot of the session, delivered to listeners on every
// transition. Which payload fields are meaningful depends on Phase.
type State struct {
	Phase Phase

	// Interim is the low-latency partial transcript for display. Updated
	// without a phase change while listening.
	Interim string

	// Prediction carries the active match while suggesting or confirming.
	Prediction *brain.Prediction

	// Err is the user-facing failure text while in PhaseError.
	Err string

	// Summary is populated only in PhaseSummary.
	Summary *analytics.Summary
}

// Listener receives state snapshots. Callbacks run outside the session lock;
// implementations may call back into the session.
type Listener func(State)
