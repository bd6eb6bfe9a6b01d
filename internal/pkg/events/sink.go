package events

import "sync"

// Sink is the sending side of the event channel. Send never blocks, and
// sending on a closed sink drops the event instead of panicking.
type Sink struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewSink(buffer int) *Sink {
	return &Sink{
		ch: make(chan Event, buffer),
	}
}

// Source is the channel the EventService drains. It is closed by Close.
func (s *Sink) Source() <-chan Event {
	return s.ch
}

func (s *Sink) Send(event Event) bool {
	if s == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}
