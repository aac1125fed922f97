// Package speech defines the boundary contracts between the voice session and
// the device-side speech subsystems: recognition input, synthesis output, and
// non-verbal tone feedback.
//
// The service never touches audio. Recognition runs on the client device and
// delivers text hypotheses through the Input callbacks; synthesis likewise
// happens on the device, with the Output contract guaranteeing a completion
// signal so the session can resume recognition only after its own prompt has
// finished playing (and is therefore not captured as false input).
//
// Implementations must be safe for concurrent use.
package speech

// ErrCodeNoSpeech is the recognition error code for a benign silence timeout.
// Sessions ignore it; any other code is logged and surfaced.
const ErrCodeNoSpeech = "no-speech"

// TranscriptHandler receives recognition results. finalText is non-empty only
// when the recognizer has committed to a hypothesis; interimText carries the
// low-latency partial for display and may change arbitrarily between calls.
type TranscriptHandler func(finalText, interimText string)

// ErrorHandler receives recognition error codes as opaque strings
// (e.g., "no-speech", "not-allowed", "network").
type ErrorHandler func(code string)

// Input is the speech-recognition boundary.
type Input interface {
	// Start begins recognition. Calling Start while already started is a
	// no-op, never an error.
	Start() error

	// Stop halts recognition and discards buffered audio. Calling Stop while
	// already stopped is a no-op.
	Stop()

	// OnTranscript registers the handler invoked for every recognition
	// result. Must be called before Start. Only one handler is supported;
	// later calls replace the earlier handler.
	OnTranscript(fn TranscriptHandler)

	// OnError registers the handler invoked for recognition errors.
	OnError(fn ErrorHandler)
}

// Output is the speech-synthesis boundary.
type Output interface {
	// Speak synthesizes text and invokes onDone exactly once when playback
	// ends — including on synthesis or playback error, so callers waiting on
	// completion never hang. onDone may be nil.
	Speak(text string, onDone func())
}

// ToneKind selects a non-verbal feedback sound.
type ToneKind string

const (
	ToneSuccess ToneKind = "success"
	ToneError   ToneKind = "error"
	ToneConfirm ToneKind = "confirm"
)

// Tone is the fire-and-forget non-verbal feedback boundary. Implementations
// must swallow device failures: an unavailable audio device never panics and
// never returns an error to the caller.
type Tone interface {
	Play(kind ToneKind)
}
