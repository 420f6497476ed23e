package ports

import (
	"context"

	"github.com/aretw0/beamline/pkg/domain"
)

// DocumentStore persists the documents published during runs.
// Recording results is the host's concern: the engine never calls a store directly,
// the runner subscribes one to the dispatcher.
type DocumentStore interface {
	// Append adds a document to the run's stream, preserving order.
	Append(ctx context.Context, runUID string, doc domain.Document) error

	// Load returns the run's documents in the order they were appended.
	// Returns domain.ErrRunNotFound if nothing was recorded for runUID.
	Load(ctx context.Context, runUID string) ([]domain.Record, error)

	// List returns the UIDs of the recorded runs.
	List(ctx context.Context) ([]string, error)

	// Delete removes every document of the run.
	Delete(ctx context.Context, runUID string) error
}
