package plan

import (
	"sync"
)

// settings holds the stored, settable parameters of a plan.
// Stored values are the defaults of every plain invocation; With-style
// overrides are merged into a copy and never written back.
type settings[P any] struct {
	mu     sync.RWMutex
	params P
	check  func(P) error
}

func (s *settings[P]) init(params P, check func(P) error) {
	s.params = params
	s.check = check
}

// Params returns a copy of the stored parameters.
func (s *settings[P]) Params() P {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Set updates only the named parameters, leaving the others untouched.
// The update is rejected as a whole if the result does not validate.
func (s *settings[P]) Set(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.mergeLocked(values)
	if err != nil {
		return err
	}
	s.params = next
	return nil
}

func (s *settings[P]) merge(values map[string]any) (P, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergeLocked(values)
}

func (s *settings[P]) mergeLocked(values map[string]any) (P, error) {
	next := s.params
	if err := Decode(values, &next); err != nil {
		var zero P
		return zero, err
	}
	if s.check != nil {
		if err := s.check(next); err != nil {
			var zero P
			return zero, err
		}
	}
	return next, nil
}
