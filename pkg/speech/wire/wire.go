// Package wire bridges the speech boundary contracts over a WebSocket
// connection to the driver's device. Recognition and synthesis both run on
// the device; this package only exchanges control and text frames.
//
// Frame protocol (JSON text messages):
//
//	device → server: {"type":"transcript","final":"...","interim":"..."}
//	device → server: {"type":"error","code":"no-speech"}
//	device → server: {"type":"spoken","id":7}
//	server → device: {"type":"listen","on":true}
//	server → device: {"type":"speak","id":7,"text":"Stop 3, 12 Oak St?"}
//	server → device: {"type":"tone","kind":"success"}
//	server → device: {"type":"state","phase":"confirming","stop_number":3,"address":"12 Oak St","confidence":0.93}
//
// Every speak frame carries an ID the device echoes back in a spoken frame
// once playback ends. A watchdog completes the callback anyway if the ack
// never arrives, so sessions waiting on synthesis completion cannot hang.
package wire

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/routevox/routevox/pkg/speech"
)

// Frame is the single wire message shape for both directions. Type selects
// which of the remaining fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// listen
	On bool `json:"on,omitempty"`

	// transcript
	Final   string `json:"final,omitempty"`
	Interim string `json:"interim,omitempty"`

	// error
	Code string `json:"code,omitempty"`

	// speak / spoken
	ID   int64  `json:"id,omitempty"`
	Text string `json:"text,omitempty"`

	// tone
	Kind string `json:"kind,omitempty"`

	// state
	Phase      string  `json:"phase,omitempty"`
	Err        string  `json:"err,omitempty"`
	StopNumber int     `json:"stop_number,omitempty"`
	Address    string  `json:"address,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Frame type values.
const (
	FrameListen     = "listen"
	FrameTranscript = "transcript"
	FrameError      = "error"
	FrameSpeak      = "speak"
	FrameSpoken     = "spoken"
	FrameTone       = "tone"
	FrameState      = "state"
)

// speakTimeout is the watchdog deadline for a speak acknowledgment. Readbacks
// are one short sentence; anything past this means the ack was lost.
const speakTimeout = 15 * time.Second

// Bridge adapts one WebSocket connection to the [speech.Input],
// [speech.Output], and [speech.Tone] contracts. Create with [NewBridge],
// then call [Bridge.Run] to pump frames until the connection closes.
type Bridge struct {
	conn *websocket.Conn

	out  chan Frame
	done chan struct{}
	once sync.Once

	mu           sync.Mutex
	started      bool
	onTranscript speech.TranscriptHandler
	onError      speech.ErrorHandler
	nextID       int64
	pending      map[int64]*pendingSpeak
}

// pendingSpeak tracks one in-flight speak frame awaiting its ack.
type pendingSpeak struct {
	onDone   func()
	watchdog *time.Timer
}

var (
	_ speech.Input  = (*Bridge)(nil)
	_ speech.Output = (*Bridge)(nil)
	_ speech.Tone   = (*Bridge)(nil)
)

// NewBridge wraps conn. The caller retains responsibility for the HTTP
// upgrade; the bridge owns the connection from here on.
func NewBridge(conn *websocket.Conn) *Bridge {
	return &Bridge{
		conn:    conn,
		out:     make(chan Frame, 64),
		done:    make(chan struct{}),
		pending: make(map[int64]*pendingSpeak),
	}
}

// Run pumps frames in both directions until the connection closes or ctx is
// cancelled. It blocks; call from the connection's handler goroutine. The
// returned error is the read error that ended the session (nil on a normal
// close).
func (b *Bridge) Run(ctx context.Context) error {
	go b.writeLoop(ctx)
	err := b.readLoop(ctx)
	b.Close()
	return err
}

// Start asks the device to begin recognition. Idempotent.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()
	b.send(Frame{Type: FrameListen, On: true})
	return nil
}

// Stop asks the device to halt recognition. Idempotent.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	b.send(Frame{Type: FrameListen, On: false})
}

// OnTranscript registers the recognition result handler.
func (b *Bridge) OnTranscript(fn speech.TranscriptHandler) {
	b.mu.Lock()
	b.onTranscript = fn
	b.mu.Unlock()
}

// OnError registers the recognition error handler.
func (b *Bridge) OnError(fn speech.ErrorHandler) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

// Speak sends text to the device for synthesis. onDone fires exactly once:
// on the device's spoken ack, on the watchdog deadline, or immediately when
// the bridge is already closed.
func (b *Bridge) Speak(text string, onDone func()) {
	if onDone == nil {
		onDone = func() {}
	}
	select {
	case <-b.done:
		onDone()
		return
	default:
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	p := &pendingSpeak{onDone: onDone}
	p.watchdog = time.AfterFunc(speakTimeout, func() { b.complete(id) })
	b.pending[id] = p
	b.mu.Unlock()

	b.send(Frame{Type: FrameSpeak, ID: id, Text: text})
}

// Send queues an arbitrary server-originated frame, used for session state
// pushes. Fire-and-forget like every outbound frame.
func (b *Bridge) Send(f Frame) {
	b.send(f)
}

// Play sends a fire-and-forget tone frame. Device-side playback failures are
// the device's problem; nothing comes back.
func (b *Bridge) Play(kind speech.ToneKind) {
	b.send(Frame{Type: FrameTone, Kind: string(kind)})
}

// Close shuts the bridge down and releases every pending speak callback so
// no caller is left waiting. Safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)

		b.mu.Lock()
		released := make([]func(), 0, len(b.pending))
		for id, p := range b.pending {
			p.watchdog.Stop()
			released = append(released, p.onDone)
			delete(b.pending, id)
		}
		b.mu.Unlock()

		for _, fn := range released {
			fn()
		}
		b.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
}

// send queues a frame for delivery. Frames are dropped once the bridge is
// closed or the outbound buffer is full; the device resynchronises from
// session state and a lost tone frame is harmless.
func (b *Bridge) send(f Frame) {
	select {
	case b.out <- f:
	case <-b.done:
	default:
	}
}

// complete pops the pending speak entry for id and invokes its callback.
// Called by both the spoken ack and the watchdog; whichever runs first wins.
func (b *Bridge) complete(id int64) {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		p.watchdog.Stop()
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if ok {
		p.onDone()
	}
}

// writeLoop serialises queued frames onto the connection.
func (b *Bridge) writeLoop(ctx context.Context) {
	for {
		select {
		case f := <-b.out:
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := b.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-b.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop receives device frames and dispatches them to the registered
// handlers. Malformed frames are skipped.
func (b *Bridge) readLoop(ctx context.Context) error {
	for {
		_, data, err := b.conn.Read(ctx)
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Type {
		case FrameTranscript:
			b.mu.Lock()
			fn := b.onTranscript
			b.mu.Unlock()
			if fn != nil {
				fn(f.Final, f.Interim)
			}
		case FrameError:
			b.mu.Lock()
			fn := b.onError
			b.mu.Unlock()
			if fn != nil {
				fn(f.Code)
			}
		case FrameSpoken:
			b.complete(f.ID)
		}
	}
}
