package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/spf13/cast"
)

// MotorOption configures a Motor.
type MotorOption func(*Motor)

// WithMoveTime makes every move take d before it completes.
func WithMoveTime(d time.Duration) MotorOption {
	return func(m *Motor) { m.moveTime = d }
}

// WithSettleTime adds a settling delay after each move, applied through Settle.
func WithSettleTime(d time.Duration) MotorOption {
	return func(m *Motor) { m.settleTime = d }
}

// WithLimits rejects setpoints outside [lo, hi].
func WithLimits(lo, hi float64) MotorOption {
	return func(m *Motor) {
		m.lo, m.hi = lo, hi
		m.limited = true
	}
}

// WithPosition sets the initial position.
func WithPosition(p float64) MotorOption {
	return func(m *Motor) { m.position = p }
}

// Motor is a simulated positioner. Its position is reported under its own name.
type Motor struct {
	name       string
	moveTime   time.Duration
	settleTime time.Duration
	limited    bool
	lo, hi     float64

	mu       sync.Mutex
	position float64
	moving   *Status
}

// NewMotor creates a motor at position zero unless told otherwise.
func NewMotor(name string, opts ...MotorOption) *Motor {
	m := &Motor{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Motor) Name() string { return m.name }

// Position returns the current position without going through a read.
func (m *Motor) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Motor) Read(ctx context.Context) (map[string]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]domain.Reading{
		m.name: {Value: m.position, Timestamp: time.Now()},
	}, nil
}

// Set starts a move to value. A move issued while another is in flight
// supersedes it; the earlier status still completes.
func (m *Motor) Set(ctx context.Context, value any) (ports.Status, error) {
	target, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, fmt.Errorf("motor %s: setpoint %v: %w", m.name, value, err)
	}
	if m.limited && (target < m.lo || target > m.hi) {
		return nil, fmt.Errorf("motor %s: setpoint %g outside limits [%g, %g]", m.name, target, m.lo, m.hi)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := NewStatus()
	if m.moveTime <= 0 {
		m.mu.Lock()
		m.position = target
		m.mu.Unlock()
		st.Finish(nil)
		return st, nil
	}

	m.mu.Lock()
	if prev := m.moving; prev != nil {
		prev.Finish(nil)
	}
	m.moving = st
	m.mu.Unlock()

	time.AfterFunc(m.moveTime, func() {
		m.mu.Lock()
		if m.moving == st {
			m.position = target
			m.moving = nil
		}
		m.mu.Unlock()
		st.Finish(nil)
	})
	return st, nil
}

// Settle waits out the settling time.
func (m *Motor) Settle(ctx context.Context) error {
	if m.settleTime <= 0 {
		return nil
	}
	t := time.NewTimer(m.settleTime)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
