package dispatch

import (
	"context"
	"sync"

	"github.com/aretw0/beamline/pkg/domain"
)

// Callback receives one published document. A non-nil error fails the run
// that published it.
type Callback func(ctx context.Context, doc domain.Document) error

// Token identifies a subscription.
type Token uint64

// Subscriptions maps document types to callbacks, as passed for a single run.
type Subscriptions map[domain.DocType][]Callback

type subscription struct {
	token   Token
	docType domain.DocType
	cb      Callback
}

// Dispatcher is a publish/subscribe hub keyed by document type.
// It is safe for concurrent use; subscribing or unsubscribing while a publish
// is in progress only affects later publishes.
type Dispatcher struct {
	mu   sync.Mutex
	next Token
	subs []subscription
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers cb for docType (or domain.DocAll for every type).
// Callbacks are called in registration order.
func (d *Dispatcher) Subscribe(docType domain.DocType, cb Callback) Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.subs = append(d.subs, subscription{token: d.next, docType: docType, cb: cb})
	return d.next
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (d *Dispatcher) Unsubscribe(token Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.token == token {
			// Copy so snapshots taken by in-flight publishes stay intact.
			subs := make([]subscription, 0, len(d.subs)-1)
			subs = append(subs, d.subs[:i]...)
			d.subs = append(subs, d.subs[i+1:]...)
			return
		}
	}
}

// SubscribeAll registers every callback of subs and returns a function that
// removes them again.
func (d *Dispatcher) SubscribeAll(subs Subscriptions) (unsubscribe func()) {
	var tokens []Token
	for _, docType := range []domain.DocType{domain.DocAll, domain.DocStart, domain.DocEvent, domain.DocStop} {
		for _, cb := range subs[docType] {
			tokens = append(tokens, d.Subscribe(docType, cb))
		}
	}
	for docType, cbs := range subs {
		switch docType {
		case domain.DocAll, domain.DocStart, domain.DocEvent, domain.DocStop:
			continue
		}
		for _, cb := range cbs {
			tokens = append(tokens, d.Subscribe(docType, cb))
		}
	}
	return func() {
		for _, t := range tokens {
			d.Unsubscribe(t)
		}
	}
}

// Len returns the number of active subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Publish calls, in registration order, every callback subscribed to the
// document's type or to domain.DocAll. The first failing callback stops the
// publish and its error is returned as a *domain.CallbackError.
func (d *Dispatcher) Publish(ctx context.Context, doc domain.Document) error {
	d.mu.Lock()
	snapshot := d.subs
	d.mu.Unlock()

	docType := doc.DocType()
	n := 0
	for _, s := range snapshot {
		if s.docType != docType && s.docType != domain.DocAll {
			continue
		}
		if err := s.cb(ctx, doc); err != nil {
			return &domain.CallbackError{DocType: docType, Index: n, Err: err}
		}
		n++
	}
	return nil
}
