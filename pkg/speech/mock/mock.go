// Package mock provides scripted speech boundary implementations for tests.
package mock

import (
	"sync"

	"github.com/routevox/routevox/pkg/speech"
)

// Compile-time interface checks.
var (
	_ speech.Input  = (*Input)(nil)
	_ speech.Output = (*Output)(nil)
	_ speech.Tone   = (*Tone)(nil)
)

// Input is a scripted speech.Input. Tests inject transcripts and error codes
// directly; Start/Stop calls are counted so idempotence and suspend/resume
// behaviour can be asserted.
type Input struct {
	mu           sync.Mutex
	started      bool
	startCalls   int
	stopCalls    int
	onTranscript speech.TranscriptHandler
	onError      speech.ErrorHandler

	// StartErr, when set, is returned by Start without starting recognition.
	StartErr error
}

// NewInput creates an idle mock Input.
func NewInput() *Input {
	return &Input{}
}

// Start implements [speech.Input].
func (in *Input) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.startCalls++
	if in.StartErr != nil {
		return in.StartErr
	}
	in.started = true
	return nil
}

// Stop implements [speech.Input].
func (in *Input) Stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stopCalls++
	in.started = false
}

// OnTranscript implements [speech.Input].
func (in *Input) OnTranscript(fn speech.TranscriptHandler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onTranscript = fn
}

// OnError implements [speech.Input].
func (in *Input) OnError(fn speech.ErrorHandler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onError = fn
}

// EmitFinal delivers a final transcript to the registered handler, as the
// recognizer would after committing to a hypothesis.
func (in *Input) EmitFinal(text string) {
	in.mu.Lock()
	fn := in.onTranscript
	in.mu.Unlock()
	if fn != nil {
		fn(text, "")
	}
}

// EmitInterim delivers a partial transcript to the registered handler.
func (in *Input) EmitInterim(text string) {
	in.mu.Lock()
	fn := in.onTranscript
	in.mu.Unlock()
	if fn != nil {
		fn("", text)
	}
}

// EmitError delivers a recognition error code to the registered handler.
func (in *Input) EmitError(code string) {
	in.mu.Lock()
	fn := in.onError
	in.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

// Started reports whether recognition is currently running.
func (in *Input) Started() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.started
}

// StartCalls returns the number of Start invocations so far.
func (in *Input) StartCalls() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.startCalls
}

// StopCalls returns the number of Stop invocations so far.
func (in *Input) StopCalls() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stopCalls
}

// Output is a scripted speech.Output. By default Speak completes
// synchronously; set Hold to capture completions and release them manually.
type Output struct {
	mu      sync.Mutex
	spoken  []string
	Hold    bool
	pending []func()
}

// NewOutput creates a mock Output that completes Speak calls synchronously.
func NewOutput() *Output {
	return &Output{}
}

// Speak implements [speech.Output].
func (o *Output) Speak(text string, onDone func()) {
	o.mu.Lock()
	o.spoken = append(o.spoken, text)
	hold := o.Hold
	if hold && onDone != nil {
		o.pending = append(o.pending, onDone)
	}
	o.mu.Unlock()

	if !hold && onDone != nil {
		onDone()
	}
}

// Spoken returns a snapshot of all texts passed to Speak, in order.
func (o *Output) Spoken() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.spoken))
	copy(out, o.spoken)
	return out
}

// Release invokes and clears all held completions.
func (o *Output) Release() {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Tone records played tone kinds.
type Tone struct {
	mu     sync.Mutex
	played []speech.ToneKind
}

// NewTone creates a mock Tone.
func NewTone() *Tone {
	return &Tone{}
}

// Play implements [speech.Tone].
func (t *Tone) Play(kind speech.ToneKind) {
	t.mu.Lock()
	t.played = append(t.played, kind)
	t.mu.Unlock()
}

// Played returns a snapshot of all tones played, in order.
func (t *Tone) Played() []speech.ToneKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]speech.ToneKind, len(t.played))
	copy(out, t.played)
	return out
}
