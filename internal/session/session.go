package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/routevox/routevox/internal/analytics"
	"github.com/routevox/routevox/internal/brain"
	"github.com/routevox/routevox/internal/config"
	"github.com/routevox/routevox/internal/observe"
	"github.com/routevox/routevox/internal/route"
	"github.com/routevox/routevox/pkg/speech"
)

// Deps holds all dependencies for a [Session].
type Deps struct {
	// ID identifies the session in logs and analytics. Generated when empty.
	ID string

	// Brain resolves transcripts to stops. Swapped via [Session.SetBrain]
	// whenever the stop list changes.
	Brain *brain.RouteBrain

	// Stops is the live stop list. Commits re-resolve against it by ID, never
	// against the prediction's cached position.
	Stops *route.StopList

	// Packages receives committed package records.
	Packages *route.PackageStore

	Input  speech.Input
	Output speech.Output
	Tone   speech.Tone

	// Analytics is the session event log. When nil a fresh log is created.
	Analytics *analytics.Log

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Tuning carries the product tuning constants (auto-confirm threshold and
	// the countdown/clear delays).
	Tuning config.SessionConfig
}

// Session is the voice interaction state machine. It owns the interaction
// lifecycle from listening through confirmation to commit, coordinates the
// speech boundaries, and appends committed packages to the package store.
//
// All exported methods are safe for concurrent use. At most one countdown
// timer is active at a time; every transition out of the phase that owns the
// timer cancels it before anything else runs.
type Session struct {
	mu       sync.Mutex
	phase    Phase
	active   bool
	booted   bool
	pred     *brain.Prediction
	interim  string
	errText  string
	listener []Listener

	// timer is the single owned one-shot timer; timerGen invalidates
	// callbacks from timers that were cancelled after firing.
	timer    *time.Timer
	timerGen uint64

	confirmStart time.Time

	id       string
	ctx      context.Context
	brain    *brain.RouteBrain
	stops    *route.StopList
	packages *route.PackageStore
	input    speech.Input
	output   speech.Output
	tone     speech.Tone
	log      *analytics.Log
	metrics  *observe.Metrics
	tuning   config.SessionConfig
}

// New creates a Session in the booting phase and registers the speech input
// callbacks. Call [Session.Boot] to start listening.
func New(deps Deps) *Session {
	id := deps.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		phase:    PhaseBooting,
		id:       id,
		ctx:      context.Background(),
		brain:    deps.Brain,
		stops:    deps.Stops,
		packages: deps.Packages,
		input:    deps.Input,
		output:   deps.Output,
		tone:     deps.Tone,
		log:      deps.Analytics,
		metrics:  deps.Metrics,
		tuning:   deps.Tuning,
	}
	if s.log == nil {
		s.log = analytics.NewLog(s.id)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.input.OnTranscript(s.handleTranscript)
	s.input.OnError(s.handleSpeechError)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers a listener for state snapshots. Must be called before
// [Session.Boot]; listeners run outside the session lock.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listener = append(s.listener, fn)
	s.mu.Unlock()
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Summary returns the analytics summary derived so far, without ending the
// session.
func (s *Session) Summary() analytics.Summary {
	return s.log.Summary()
}

// Events returns a copy of the session's event log.
func (s *Session) Events() []analytics.Event {
	return s.log.Events()
}

// Boot starts (or resumes) the session: speech recognition begins and the
// session enters listening. Valid from booting and paused; a no-op in every
// other phase.
func (s *Session) Boot() error {
	s.mu.Lock()
	if s.phase != PhaseBooting && s.phase != PhasePaused {
		s.mu.Unlock()
		return fmt.Errorf("session: boot from %s", s.phase)
	}
	prev := s.phase
	first := !s.booted
	s.booted = true
	s.active = true
	s.phase = PhaseListening
	s.pred = nil
	s.errText = ""
	notify := s.notifyLocked()
	s.mu.Unlock()

	if err := s.input.Start(); err != nil {
		// Roll back so a failed boot leaves the session where it was: the
		// active-session gauge must never be decremented later for a session
		// that never started listening.
		s.mu.Lock()
		s.phase = prev
		s.active = false
		if first {
			s.booted = false
		}
		s.mu.Unlock()
		return fmt.Errorf("session: start speech input: %w", err)
	}
	if first {
		s.log.Append(analytics.Event{Type: analytics.EventSessionStart, Timestamp: time.Now()})
	}
	s.metrics.ActiveSessions.Add(s.ctx, 1)
	notify()
	return nil
}

// Resume re-enters listening from paused.
func (s *Session) Resume() error {
	return s.Boot()
}

// Pause stops the session on driver request. Valid from any non-terminal
// phase: any pending countdown is cancelled and speech input is halted with
// automatic restarts disabled until [Session.Resume].
func (s *Session) Pause() {
	s.mu.Lock()
	if s.phase == PhaseSummary || s.phase == PhasePaused {
		s.mu.Unlock()
		return
	}
	wasActive := s.active
	s.stopTimerLocked()
	s.active = false
	s.phase = PhasePaused
	s.pred = nil
	notify := s.notifyLocked()
	s.mu.Unlock()

	s.input.Stop()
	if wasActive {
		s.metrics.ActiveSessions.Add(s.ctx, -1)
	}
	notify()
}

// End closes the session and returns the derived summary. Terminal: the
// session cannot be restarted afterwards.
func (s *Session) End() analytics.Summary {
	s.mu.Lock()
	if s.phase == PhaseSummary {
		s.mu.Unlock()
		return s.log.Summary()
	}
	wasActive := s.active
	s.stopTimerLocked()
	s.active = false
	s.phase = PhaseSummary
	s.pred = nil
	summary := s.log.Summary()
	notify := s.notifyLocked()
	s.mu.Unlock()

	s.input.Stop()
	if wasActive {
		s.metrics.ActiveSessions.Add(s.ctx, -1)
	}
	notify()
	return summary
}

// SetBrain swaps in a brain rebuilt over a changed stop list. Any prediction
// computed against the old list stays valid because commits re-resolve by ID.
func (s *Session) SetBrain(b *brain.RouteBrain) {
	s.mu.Lock()
	s.brain = b
	s.mu.Unlock()
}

// ManualConfirm commits the active match immediately, skipping the remainder
// of the countdown. Valid while confirming or suggesting.
func (s *Session) ManualConfirm() error {
	s.mu.Lock()
	if s.phase != PhaseConfirming && s.phase != PhaseSuggesting {
		s.mu.Unlock()
		return fmt.Errorf("session: confirm from %s", s.phase)
	}
	s.stopTimerLocked()
	notify := s.commitLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// Choose commits the suggested candidate with the given stop ID and teaches
// the brain the transcript so the next utterance resolves without fuzzy
// search. Valid while suggesting or confirming.
func (s *Session) Choose(stopID string) error {
	s.mu.Lock()
	if s.phase != PhaseSuggesting && s.phase != PhaseConfirming {
		s.mu.Unlock()
		return fmt.Errorf("session: choose from %s", s.phase)
	}
	s.stopTimerLocked()
	transcript := ""
	if s.pred != nil {
		transcript = s.pred.OriginalTranscript
	}
	live, pos, err := s.stops.ByID(stopID)
	if err != nil {
		notify := s.failLocked("that stop is no longer on the route")
		s.mu.Unlock()
		notify()
		return err
	}
	// Retarget the prediction at the chosen stop before committing.
	if s.pred != nil {
		s.pred.Stop = &live
		s.pred.Confidence = 1.0
	}
	b := s.brain
	notify := s.commitToLocked(live, pos)
	s.mu.Unlock()
	notify()

	// A manual pick is a correction worth remembering. Fire-and-forget: a
	// failed alias write degrades, never interrupts the session.
	if b != nil && transcript != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := b.Learn(ctx, transcript, stopID); err != nil {
				slog.Warn("alias learn failed", "error", err)
				return
			}
			s.metrics.AliasesLearned.Add(ctx, 1)
		}()
	}
	return nil
}

// handleTranscript is the speech-input callback. Interim text only refreshes
// the display; finalized text drives the state machine.
func (s *Session) handleTranscript(finalText, interimText string) {
	if finalText == "" {
		s.mu.Lock()
		if !s.active {
			s.mu.Unlock()
			return
		}
		s.interim = interimText
		notify := s.notifyLocked()
		s.mu.Unlock()
		notify()
		return
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.interim = ""

	switch s.phase {
	case PhaseConfirming:
		// Cancel words are checked on every transcript while the countdown
		// runs, not only between phases.
		s.stopTimerLocked()
		if isCancel(finalText) {
			s.log.Append(analytics.Event{
				Type:      analytics.EventCancelled,
				Timestamp: time.Now(),
				Details:   finalText,
			})
			s.pred = nil
			s.phase = PhaseListening
			notify := s.notifyLocked()
			s.mu.Unlock()
			s.tone.Play(speech.ToneError)
			notify()
			return
		}
		// Any other utterance supersedes the pending confirmation.
		notify := s.processLocked(finalText)
		s.mu.Unlock()
		notify()
	case PhaseListening, PhaseSuggesting:
		notify := s.processLocked(finalText)
		s.mu.Unlock()
		notify()
	default:
		// processing, success, error: drop the transcript.
		s.mu.Unlock()
	}
}

// processLocked resolves a finalized transcript. Caller holds the lock.
func (s *Session) processLocked(transcript string) func() {
	s.phase = PhaseProcessing
	s.pred = nil
	s.errText = ""
	processing := s.notifyLocked()

	if isUndo(transcript) {
		return s.chain(processing, s.undoLocked(transcript))
	}

	start := time.Now()
	pred := s.brain.Predict(transcript)
	s.metrics.PredictDuration.Record(s.ctx, time.Since(start).Seconds())
	s.metrics.RecordPrediction(s.ctx, string(pred.Source))

	if pred.Stop != nil {
		s.log.Append(analytics.Event{
			Type:       analytics.EventMatch,
			Timestamp:  time.Now(),
			Confidence: pred.Confidence,
			Details:    transcript,
		})
	}

	switch {
	case pred.Confidence > s.tuning.AutoConfirmThreshold:
		return s.chain(processing, s.enterConfirmingLocked(&pred))
	case pred.Confidence > 0:
		s.pred = &pred
		s.phase = PhaseSuggesting
		notify := s.notifyLocked()
		return s.chain(processing, func() {
			s.tone.Play(speech.ToneConfirm)
			notify()
		})
	default:
		s.log.Append(analytics.Event{
			Type:      analytics.EventFailed,
			Timestamp: time.Now(),
			Details:   transcript,
		})
		return s.chain(processing, s.failLocked("no matching stop for \""+transcript+"\""))
	}
}

// undoLocked removes the most recently added package. Caller holds the lock.
func (s *Session) undoLocked(transcript string) func() {
	pkg, err := s.packages.RemoveLast()
	if err != nil {
		return s.failLocked("nothing to undo")
	}
	s.log.Append(analytics.Event{
		Type:      analytics.EventUndo,
		Timestamp: time.Now(),
		Details:   transcript,
	})
	s.metrics.Undos.Add(s.ctx, 1)
	s.phase = PhaseListening
	notify := s.notifyLocked()
	removed := pkg.AssignedAddress
	return func() {
		s.tone.Play(speech.ToneConfirm)
		slog.Info("package removed by voice undo", "address", removed)
		notify()
	}
}

// enterConfirmingLocked starts the cancellable auto-commit countdown for a
// high-confidence match. Speech input is suspended for the duration of the
// spoken readback so the session does not hear its own synthesized voice.
func (s *Session) enterConfirmingLocked(pred *brain.Prediction) func() {
	live, pos, err := s.stops.ByID(pred.Stop.ID)
	if err != nil {
		// The predicted stop is already gone from the live list. Abort now
		// rather than read back a stop the commit would reject anyway.
		s.log.Append(analytics.Event{
			Type:      analytics.EventFailed,
			Timestamp: time.Now(),
			Details:   "stale stop reference at confirmation: " + pred.Stop.ID,
		})
		s.metrics.CommitAborts.Add(s.ctx, 1)
		return s.failLocked("that stop is no longer on the route")
	}

	s.pred = pred
	s.phase = PhaseConfirming
	s.confirmStart = time.Now()
	readback := fmt.Sprintf("Stop %d, %s?", pos, live.AddressLine1)

	s.scheduleLocked(s.tuning.CountdownDelay.Std(), s.onCountdown)
	notify := s.notifyLocked()

	return func() {
		s.tone.Play(speech.ToneConfirm)
		notify()
		s.input.Stop()
		s.output.Speak(readback, func() {
			// Resume recognition only once playback has finished, so cancel
			// words can still land during the rest of the countdown.
			s.mu.Lock()
			resume := s.active
			s.mu.Unlock()
			if resume {
				if err := s.input.Start(); err != nil {
					slog.Warn("speech input restart failed", "error", err)
				}
			}
		})
	}
}

// onCountdown fires when the confirmation countdown elapses.
func (s *Session) onCountdown(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.phase != PhaseConfirming {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	notify := s.commitLocked()
	s.mu.Unlock()
	notify()
}

// commitLocked commits the active prediction after re-resolving its stop
// against the live list. Caller holds the lock and has cleared the timer.
func (s *Session) commitLocked() func() {
	if s.pred == nil || s.pred.Stop == nil {
		return s.failLocked("nothing to confirm")
	}
	live, pos, err := s.stops.ByID(s.pred.Stop.ID)
	if err != nil {
		// The stop was removed between prediction and commit. Abort rather
		// than create a package with a dangling assignment.
		s.log.Append(analytics.Event{
			Type:      analytics.EventFailed,
			Timestamp: time.Now(),
			Details:   "stale stop reference at commit: " + s.pred.Stop.ID,
		})
		s.metrics.CommitAborts.Add(s.ctx, 1)
		return s.failLocked("that stop is no longer on the route")
	}
	return s.commitToLocked(live, pos)
}

// commitToLocked appends the package record for the resolved live stop and
// enters the success phase. Caller holds the lock.
func (s *Session) commitToLocked(live route.Stop, pos int) func() {
	pkg := route.NewPackage()
	if s.pred != nil {
		if s.pred.Extracted.Size.IsValid() {
			pkg.Size = s.pred.Extracted.Size
		}
		pkg.Notes = s.pred.Extracted.Notes
	}
	pkg.AssignedStopID = live.ID
	pkg.AssignedStopNumber = pos
	pkg.AssignedAddress = live.FullAddress()
	s.packages.Append(pkg)

	s.log.Append(analytics.Event{
		Type:      analytics.EventLoaded,
		Timestamp: time.Now(),
		Details:   pkg.AssignedAddress,
	})
	s.metrics.Commits.Add(s.ctx, 1)
	if !s.confirmStart.IsZero() {
		s.metrics.ConfirmDuration.Record(s.ctx, time.Since(s.confirmStart).Seconds())
		s.confirmStart = time.Time{}
	}

	s.phase = PhaseSuccess
	s.scheduleLocked(s.tuning.SuccessDelay.Std(), s.onClear)
	notify := s.notifyLocked()
	addr := pkg.AssignedAddress
	return func() {
		s.tone.Play(speech.ToneSuccess)
		slog.Info("package committed", "stop", pos, "address", addr)
		notify()
	}
}

// failLocked enters the transient error phase, which clears back to
// listening automatically. Caller holds the lock.
func (s *Session) failLocked(msg string) func() {
	s.pred = nil
	s.errText = msg
	s.phase = PhaseError
	s.scheduleLocked(s.tuning.ErrorClearDelay.Std(), s.onClear)
	notify := s.notifyLocked()
	return func() {
		s.tone.Play(speech.ToneError)
		notify()
	}
}

// onClear returns the session to listening after a success or error display
// delay, restarting speech input if the session is still active.
func (s *Session) onClear(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseListening
	s.pred = nil
	s.errText = ""
	notify := s.notifyLocked()
	s.mu.Unlock()

	if err := s.input.Start(); err != nil {
		slog.Warn("speech input restart failed", "error", err)
	}
	notify()
}

// handleSpeechError is the speech-input error callback. The no-speech silence
// timeout is benign and ignored; everything else surfaces as a transient
// error with an automatic retry.
func (s *Session) handleSpeechError(code string) {
	if code == speech.ErrCodeNoSpeech {
		return
	}
	s.metrics.RecordSpeechError(s.ctx, code)
	slog.Warn("speech recognition error", "code", code)

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	notify := s.failLocked("speech error: " + code)
	s.mu.Unlock()
	notify()
}

// stopTimerLocked cancels any pending timer and invalidates callbacks from
// timers that already fired but have not yet acquired the lock.
func (s *Session) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// scheduleLocked arms the single owned timer. The generation captured here is
// compared by the callback so a cancelled timer can never act.
func (s *Session) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(d, func() { fn(gen) })
}

// notifyLocked snapshots the current state and returns a closure that
// delivers it to all listeners. The closure must be invoked after the lock
// is released.
func (s *Session) notifyLocked() func() {
	st := State{
		Phase:      s.phase,
		Interim:    s.interim,
		Prediction: s.pred,
		Err:        s.errText,
	}
	if s.phase == PhaseSummary {
		sum := s.log.Summary()
		st.Summary = &sum
	}
	listeners := make([]Listener, len(s.listener))
	copy(listeners, s.listener)
	return func() {
		for _, fn := range listeners {
			fn(st)
		}
	}
}

// chain runs the given notification closures in order.
func (s *Session) chain(fns ...func()) func() {
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}
