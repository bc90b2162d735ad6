package realtime

// Channel addresses one live connection. Send is best-effort: it never
// blocks and reports false when the frame could not be queued.
type Channel interface {
	ID() string
	Send(frame []byte) bool
}

// Broadcast queues an already encoded frame on every channel and returns
// how many accepted it. Unreachable channels are skipped.
func Broadcast(frame []byte, channels ...Channel) int {
	sent := 0
	for _, ch := range channels {
		if ch != nil && ch.Send(frame) {
			sent++
		}
	}
	return sent
}

// Emit encodes ev once and broadcasts it to targets.
func Emit(ev Event, targets ...Channel) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	frame, err := ev.Encode()
	if err != nil {
		return 0, err
	}
	return Broadcast(frame, targets...), nil
}
