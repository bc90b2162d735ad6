// Package realtimetest provides channel fakes for tests of packages that
// deliver realtime events.
package realtimetest

import (
	"encoding/json"
	"sync"

	"github.com/nfrund/collabhub/internal/realtime"
)

// Recorder is a realtime.Channel that keeps every frame it accepts.
type Recorder struct {
	id string

	mu       sync.Mutex
	frames   [][]byte
	rejected int
	full     bool
}

var _ realtime.Channel = (*Recorder)(nil)

// NewRecorder returns an accepting recorder with the given channel id.
func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

func (r *Recorder) ID() string { return r.id }

// Send records frame unless the recorder was made unreachable.
func (r *Recorder) Send(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		r.rejected++
		return false
	}
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return true
}

// SetUnreachable makes Send reject frames, as a full buffer would.
func (r *Recorder) SetUnreachable(full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.full = full
}

// Rejected counts frames refused while unreachable.
func (r *Recorder) Rejected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

// Events decodes every recorded frame.
func (r *Recorder) Events() []realtime.RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.RawEvent, 0, len(r.frames))
	for _, f := range r.frames {
		ev, err := realtime.ParseEvent(f)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EventsOf returns recorded events of type t.
func (r *Recorder) EventsOf(t realtime.EventType) []realtime.RawEvent {
	var out []realtime.RawEvent
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []realtime.EventType {
	evs := r.Events()
	out := make([]realtime.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

// Reset drops all recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.rejected = 0
}

// Decode is a helper to unmarshal an event payload inline.
func Decode[T any](ev realtime.RawEvent) (T, error) {
	var v T
	err := json.Unmarshal(ev.Payload, &v)
	return v, err
}
