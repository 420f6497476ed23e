package plan

import (
	"context"
	"fmt"
	"math"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// DefaultBackstepThreshold is the fraction of the current step below which a
// newly proposed step makes the scan step back.
const DefaultBackstepThreshold = 0.8

// AdaptiveParams configures an AdaptiveScan.
type AdaptiveParams struct {
	// Field is the reading whose variation drives the step size.
	Field       string  `mapstructure:"target_field" json:"target_field"`
	Start       float64 `mapstructure:"start" json:"start"`
	Stop        float64 `mapstructure:"stop" json:"stop"`
	MinStep     float64 `mapstructure:"min_step" json:"min_step"`
	MaxStep     float64 `mapstructure:"max_step" json:"max_step"`
	TargetDelta float64 `mapstructure:"target_delta" json:"target_delta"`
	Backstep    bool    `mapstructure:"backstep" json:"backstep"`
	// Threshold is the backstep sensitivity, in (0, 1].
	Threshold     float64 `mapstructure:"threshold" json:"threshold"`
	ReturnToStart bool    `mapstructure:"return_to_start" json:"return_to_start"`
}

// AdaptiveScan moves one motor from Start towards Stop with a step that
// shrinks where Field changes quickly and grows where it is flat.
//
// After each event the step is proposed as TargetDelta divided by the observed
// slope, clipped to [MinStep, MaxStep] (or grown by 10% when the field did not
// change). With Backstep enabled, a proposal smaller than Threshold times the
// current step discards the last advance: the next point is placed the new,
// smaller step away from the previous accepted point. Otherwise the step is
// smoothed (20% new, 80% old) and the scan advances, so positions are strictly
// monotonic in the scan direction.
type AdaptiveScan struct {
	HookSet
	settings[AdaptiveParams]
	name      string
	detectors []ports.Readable
	motor     ports.Movable
	relative  bool
}

// NewAdaptiveScan creates an adaptive scan over absolute positions.
func NewAdaptiveScan(dets []ports.Readable, field string, motor ports.Movable, start, stop, minStep, maxStep, targetDelta float64, backstep bool) *AdaptiveScan {
	return newAdaptive("adaptive", dets, field, motor, start, stop, minStep, maxStep, targetDelta, backstep, false)
}

// NewDeltaAdaptiveScan creates an adaptive scan relative to the motor's position at plan start.
func NewDeltaAdaptiveScan(dets []ports.Readable, field string, motor ports.Movable, start, stop, minStep, maxStep, targetDelta float64, backstep bool) *AdaptiveScan {
	return newAdaptive("delta_adaptive", dets, field, motor, start, stop, minStep, maxStep, targetDelta, backstep, true)
}

func newAdaptive(name string, dets []ports.Readable, field string, motor ports.Movable, start, stop, minStep, maxStep, targetDelta float64, backstep, relative bool) *AdaptiveScan {
	s := &AdaptiveScan{name: name, detectors: dets, motor: motor, relative: relative}
	s.init(AdaptiveParams{
		Field:         field,
		Start:         start,
		Stop:          stop,
		MinStep:       minStep,
		MaxStep:       maxStep,
		TargetDelta:   targetDelta,
		Backstep:      backstep,
		Threshold:     DefaultBackstepThreshold,
		ReturnToStart: true,
	}, checkAdaptive)
	return s
}

func checkAdaptive(p AdaptiveParams) error {
	if p.Field == "" {
		return domain.Invalid("target_field", "must name a reading")
	}
	if !(0 < p.MinStep && p.MinStep < p.MaxStep) {
		return domain.Invalid("min_step", "need 0 < min_step < max_step, got %g and %g", p.MinStep, p.MaxStep)
	}
	if p.TargetDelta <= 0 {
		return domain.Invalid("target_delta", "must be positive, got %g", p.TargetDelta)
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return domain.Invalid("threshold", "must be in (0, 1], got %g", p.Threshold)
	}
	return nil
}

func (s *AdaptiveScan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *AdaptiveScan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *AdaptiveScan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *AdaptiveScan) generate(p AdaptiveParams) (Generator, error) {
	if err := checkAdaptive(p); err != nil {
		return nil, err
	}
	motors := []ports.Movable{s.motor}
	if err := requireMotors(motors); err != nil {
		return nil, err
	}
	if s.relative {
		if err := requireReadable(motors); err != nil {
			return nil, err
		}
	}
	dets := s.detectors
	relative := s.relative

	return newCoroutine(func(_ context.Context, yield Yield) error {
		start, stop := p.Start, p.Stop
		var origin []float64
		if relative {
			var err error
			if origin, err = positions(yield, motors); err != nil {
				return err
			}
			start += origin[0]
			stop += origin[0]
		}

		dir := 1.0
		if stop < start {
			dir = -1.0
		}

		next := start
		step := p.MinStep
		var past float64
		first := true
		for dir*(next-stop) <= 0 {
			if err := moveTo(yield, motors, []float64{next}); err != nil {
				return err
			}
			readings, err := measure(yield, motors, dets)
			if err != nil {
				return err
			}
			r, ok := readings[p.Field]
			if !ok {
				return fmt.Errorf("adaptive scan: no reading named %q", p.Field)
			}
			cur, ok := AsFloat(r.Value)
			if !ok {
				return fmt.Errorf("adaptive scan: reading %q is not numeric: %v", p.Field, r.Value)
			}

			if first {
				first = false
				past = cur
				step = p.MinStep
				next += dir * step
				continue
			}

			slope := math.Abs(cur-past) / step
			var proposed float64
			if slope != 0 {
				proposed = math.Min(math.Max(p.TargetDelta/slope, p.MinStep), p.MaxStep)
			} else {
				proposed = math.Min(step*1.1, p.MaxStep)
			}

			if p.Backstep && proposed < step*p.Threshold {
				next -= dir * step
				step = proposed
			} else {
				past = cur
				step = 0.2*proposed + 0.8*step
			}
			next += dir * step
		}

		if relative && p.ReturnToStart {
			return moveTo(yield, motors, origin)
		}
		return nil
	}), nil
}
