// Package observability turns engine lifecycle hooks into Prometheus metrics.
package observability
