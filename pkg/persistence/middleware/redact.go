package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.DocumentStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks run metadata whose key
// matches one of the patterns, at any depth, before it reaches the store.
// Published documents are left untouched.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Append(ctx context.Context, runUID string, doc domain.Document) error {
	if start, ok := doc.(domain.RunStart); ok && len(start.Metadata) > 0 {
		start.Metadata = deepCopyMap(start.Metadata)
		maskMap(start.Metadata, m.patterns)
		doc = start
	}
	return m.next.Append(ctx, runUID, doc)
}

func (m *redactMiddleware) Load(ctx context.Context, runUID string) ([]domain.Record, error) {
	return m.next.Load(ctx, runUID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) Delete(ctx context.Context, runUID string) error {
	return m.next.Delete(ctx, runUID)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && !masked {
			maskMap(sub, patterns)
		}
	}
}
