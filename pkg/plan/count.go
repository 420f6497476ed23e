package plan

import (
	"context"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// CountParams configures a Count.
type CountParams struct {
	// Num is the number of events to record. Zero means one.
	Num int `mapstructure:"num" json:"num"`
	// Delay is slept between consecutive events, not after the last one.
	Delay time.Duration `mapstructure:"delay" json:"delay"`
}

// Count reads a set of detectors Num times without moving anything.
type Count struct {
	HookSet
	settings[CountParams]
	detectors []ports.Readable
}

// NewCount creates a Count over dets.
func NewCount(dets []ports.Readable, params CountParams) *Count {
	if params.Num == 0 {
		params.Num = 1
	}
	c := &Count{detectors: dets}
	c.init(params, checkCount)
	return c
}

func checkCount(p CountParams) error {
	if p.Num < 1 {
		return domain.Invalid("num", "must be positive, got %d", p.Num)
	}
	if p.Delay < 0 {
		return domain.Invalid("delay", "must not be negative, got %s", p.Delay)
	}
	return nil
}

func (c *Count) Name() string { return "count" }

// Generate implements Plan using the stored parameters.
func (c *Count) Generate() (Generator, error) {
	return c.generate(c.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (c *Count) With(overrides map[string]any) (Plan, error) {
	p, err := c.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: c, generate: func() (Generator, error) { return c.generate(p) }}, nil
}

func (c *Count) generate(p CountParams) (Generator, error) {
	if err := checkCount(p); err != nil {
		return nil, err
	}
	dets := c.detectors
	return newCoroutine(func(_ context.Context, yield Yield) error {
		for i := 0; i < p.Num; i++ {
			if _, err := measure(yield, nil, dets); err != nil {
				return err
			}
			if p.Delay > 0 && i < p.Num-1 {
				if _, err := yield(domain.Sleep(p.Delay)); err != nil {
					return err
				}
			}
		}
		return nil
	}), nil
}
