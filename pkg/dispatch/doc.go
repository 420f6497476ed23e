// Package dispatch implements the document hub between the engine and its
// observers: subscriptions keyed by document type, called synchronously and
// in registration order on every publish.
package dispatch
