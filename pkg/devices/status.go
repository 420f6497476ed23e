package devices

import "sync"

// Status is a completion signal finished exactly once.
type Status struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewStatus returns a pending Status.
func NewStatus() *Status {
	return &Status{done: make(chan struct{})}
}

// Finished returns a Status already completed with err.
func Finished(err error) *Status {
	s := NewStatus()
	s.Finish(err)
	return s
}

// Finish completes the status. Later calls are ignored.
func (s *Status) Finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *Status) Done() <-chan struct{} { return s.done }

func (s *Status) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
