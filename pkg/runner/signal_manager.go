package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalManager turns OS interrupts into a context that is cancelled on
// SIGINT or SIGTERM.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager() *SignalManager {
	sm := &SignalManager{}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset re-arms the signal listener so a later interrupt can be told apart
// from the one already handled.
func (sm *SignalManager) Reset() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}

// AbortOnSignal calls abort for every interrupt received until done is closed.
// The first interrupt aborts the run; later ones are reported again so the
// caller can escalate.
func (sm *SignalManager) AbortOnSignal(done <-chan struct{}, abort func(reason string)) {
	for {
		select {
		case <-done:
			return
		case <-sm.Context().Done():
			abort("interrupted")
			sm.Reset()
		}
	}
}
