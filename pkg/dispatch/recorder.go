package dispatch

import (
	"context"
	"sync"

	"github.com/aretw0/beamline/pkg/domain"
)

// Recorder keeps every document it receives.
type Recorder struct {
	mu   sync.Mutex
	docs []domain.Document
}

// Callback returns the function to subscribe.
func (r *Recorder) Callback() Callback {
	return func(_ context.Context, doc domain.Document) error {
		r.mu.Lock()
		r.docs = append(r.docs, doc)
		r.mu.Unlock()
		return nil
	}
}

// Documents returns the recorded documents in arrival order.
func (r *Recorder) Documents() []domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Document(nil), r.docs...)
}

// Events returns the recorded event documents.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, d := range r.docs {
		if ev, ok := d.(domain.Event); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Column returns the value of one data field across the recorded events.
// Events that lack the field are skipped.
func (r *Recorder) Column(field string) []any {
	var out []any
	for _, ev := range r.Events() {
		if v, ok := ev.Data[field]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Types returns the type of every recorded document, in order.
func (r *Recorder) Types() []domain.DocType {
	docs := r.Documents()
	out := make([]domain.DocType, len(docs))
	for i, d := range docs {
		out[i] = d.DocType()
	}
	return out
}
