package devices

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/spf13/cast"
)

// Constant is a detector that always reads the same value.
type Constant struct {
	name  string
	value any
}

// NewConstant creates a detector reading value under name.
func NewConstant(name string, value any) *Constant {
	return &Constant{name: name, value: value}
}

func (c *Constant) Name() string { return c.name }

func (c *Constant) Read(ctx context.Context) (map[string]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]domain.Reading{c.name: {Value: c.value, Timestamp: time.Now()}}, nil
}

// GaussOption configures a SynGauss.
type GaussOption func(*SynGauss)

// WithNoise adds uniform noise of the given amplitude to every acquisition.
func WithNoise(amplitude float64) GaussOption {
	return func(g *SynGauss) { g.noise = amplitude }
}

// WithExposure makes every trigger take d before the value is available.
func WithExposure(d time.Duration) GaussOption {
	return func(g *SynGauss) { g.exposure = d }
}

// SynGauss simulates a detector whose signal is a Gaussian of a motor's position:
//
//	amp * exp(-(x - center)^2 / (2 * sigma^2))
//
// The value is acquired on Trigger and reported by Read. Reading a detector
// that was never triggered acquires on the spot.
type SynGauss struct {
	name     string
	motor    ports.Readable
	field    string
	center   float64
	amp      float64
	sigma    float64
	noise    float64
	exposure time.Duration

	mu       sync.Mutex
	value    float64
	acquired bool
}

// NewSynGauss creates a detector following motor. The motor position is taken
// from the reading named after the motor.
func NewSynGauss(name string, motor ports.Readable, center, amp, sigma float64, opts ...GaussOption) *SynGauss {
	g := &SynGauss{name: name, motor: motor, field: motor.Name(), center: center, amp: amp, sigma: sigma}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SynGauss) Name() string { return g.name }

func (g *SynGauss) compute(ctx context.Context) (float64, error) {
	readings, err := g.motor.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("detector %s: %w", g.name, err)
	}
	r, ok := readings[g.field]
	if !ok {
		return 0, fmt.Errorf("detector %s: motor %s has no reading %q", g.name, g.motor.Name(), g.field)
	}
	x, err := cast.ToFloat64E(r.Value)
	if err != nil {
		return 0, fmt.Errorf("detector %s: %w", g.name, err)
	}
	v := g.amp * math.Exp(-(x-g.center)*(x-g.center)/(2*g.sigma*g.sigma))
	if g.noise > 0 {
		v += g.noise * (2*rand.Float64() - 1)
	}
	return v, nil
}

func (g *SynGauss) store(v float64) {
	g.mu.Lock()
	g.value = v
	g.acquired = true
	g.mu.Unlock()
}

// Trigger acquires a new value.
func (g *SynGauss) Trigger(ctx context.Context) (ports.Status, error) {
	v, err := g.compute(ctx)
	if err != nil {
		return nil, err
	}
	if g.exposure <= 0 {
		g.store(v)
		return Finished(nil), nil
	}
	st := NewStatus()
	time.AfterFunc(g.exposure, func() {
		g.store(v)
		st.Finish(nil)
	})
	return st, nil
}

func (g *SynGauss) Read(ctx context.Context) (map[string]domain.Reading, error) {
	g.mu.Lock()
	v, ok := g.value, g.acquired
	g.mu.Unlock()
	if !ok {
		var err error
		if v, err = g.compute(ctx); err != nil {
			return nil, err
		}
		g.store(v)
	}
	return map[string]domain.Reading{g.name: {Value: v, Timestamp: time.Now()}}, nil
}
