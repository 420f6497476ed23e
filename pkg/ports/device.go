package ports

import (
	"context"

	"github.com/aretw0/beamline/pkg/domain"
)

// Status is the completion signal of an asynchronous device operation.
type Status interface {
	// Done is closed once the operation has finished, successfully or not.
	Done() <-chan struct{}
	// Err reports the outcome. Only meaningful after Done is closed.
	Err() error
}

// Readable is a device that can report its current values.
type Readable interface {
	domain.Target
	// Read returns the device's readings keyed by field name.
	Read(ctx context.Context) (map[string]domain.Reading, error)
}

// Movable is a device that can be driven to a value.
type Movable interface {
	domain.Target
	// Set starts moving the device and returns its completion signal.
	Set(ctx context.Context, value any) (Status, error)
}

// Triggerable is a detector whose acquisition must be started explicitly.
type Triggerable interface {
	domain.Target
	Trigger(ctx context.Context) (Status, error)
}

// Settler is implemented by devices that need extra time after a move completes.
type Settler interface {
	Settle(ctx context.Context) error
}

// Positioner is the usual motor: it can be driven and read back.
type Positioner interface {
	Readable
	Movable
}
