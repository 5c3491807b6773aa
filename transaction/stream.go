package transaction

import (
	"errors"
	"sync"
	"time"
)

// UpdateStream is a buffered, closable fan-in point for live transaction
// results. Executor implementations push verification outcomes into it and
// hand its channel out from Updates.
type UpdateStream struct {
	sync.Mutex

	closed bool
	ch     chan Result
}

func NewUpdateStream(bufferSize int) *UpdateStream {
	return &UpdateStream{
		ch: make(chan Result, bufferSize),
	}
}

// Notify delivers one result to the stream, failing if the stream is closed
// or the buffer stays full past timeout. A timed-out stream is closed.
func (s *UpdateStream) Notify(result Result, timeout time.Duration) error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return errors.New("cannot notify closed stream")
	}

	select {
	case s.ch <- result:
	case <-time.After(timeout):
		s.Unlock()
		s.Close()
		return errors.New("timed out sending result to stream")
	}

	s.Unlock()
	return nil
}

func (s *UpdateStream) Channel() <-chan Result {
	return s.ch
}

func (s *UpdateStream) Close() {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}
