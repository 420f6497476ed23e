// Package middleware provides DocumentStore decorators applied before
// documents are recorded.
package middleware
