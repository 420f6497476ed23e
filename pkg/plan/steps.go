package plan

import (
	"context"
	"fmt"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

const (
	moveGroup    = "move"
	triggerGroup = "trigger"
)

// moveTo drives every motor to its coordinate at once and waits for all of them.
func moveTo(yield Yield, motors []ports.Movable, pos []float64) error {
	for i, m := range motors {
		if _, err := yield(domain.Set(m, pos[i]).With(domain.KeyGroup, moveGroup)); err != nil {
			return err
		}
	}
	if len(motors) == 0 {
		return nil
	}
	_, err := yield(domain.Wait(moveGroup))
	return err
}

// measure records one event holding the motor positions and the detector readings.
// Detectors that need an explicit acquisition are triggered together first.
func measure(yield Yield, motors []ports.Movable, dets []ports.Readable) (map[string]domain.Reading, error) {
	triggered := false
	for _, d := range dets {
		if t, ok := d.(ports.Triggerable); ok {
			if _, err := yield(domain.Trigger(t).With(domain.KeyGroup, triggerGroup)); err != nil {
				return nil, err
			}
			triggered = true
		}
	}
	if triggered {
		if _, err := yield(domain.Wait(triggerGroup)); err != nil {
			return nil, err
		}
	}

	if _, err := yield(domain.Create()); err != nil {
		return nil, err
	}
	merged := make(map[string]domain.Reading)
	read := func(r ports.Readable) error {
		res, err := yield(domain.Read(r))
		if err != nil {
			return err
		}
		if readings, ok := res.(map[string]domain.Reading); ok {
			for k, v := range readings {
				merged[k] = v
			}
		}
		return nil
	}
	for _, m := range motors {
		if r, ok := m.(ports.Readable); ok {
			if err := read(r); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range dets {
		if err := read(d); err != nil {
			return nil, err
		}
	}
	if _, err := yield(domain.Save()); err != nil {
		return nil, err
	}
	return merged, nil
}

// positions reads the current coordinate of every motor through the engine.
func positions(yield Yield, motors []ports.Movable) ([]float64, error) {
	out := make([]float64, len(motors))
	for i, m := range motors {
		res, err := yield(domain.Read(m.(ports.Readable)))
		if err != nil {
			return nil, err
		}
		readings, _ := res.(map[string]domain.Reading)
		r, ok := readings[m.Name()]
		if !ok {
			return nil, fmt.Errorf("no reading named %q while capturing start position", m.Name())
		}
		v, ok := AsFloat(r.Value)
		if !ok {
			return nil, fmt.Errorf("position of %q is not numeric: %v", m.Name(), r.Value)
		}
		out[i] = v
	}
	return out, nil
}

// requireReadable checks that relative plans can capture their starting positions.
func requireReadable(motors []ports.Movable) error {
	for _, m := range motors {
		if m == nil {
			return domain.Invalid("motor", "missing motor")
		}
		if _, ok := m.(ports.Readable); !ok {
			return domain.Invalid("motor", "%q cannot be read, relative scans need its position", m.Name())
		}
	}
	return nil
}

func requireMotors(motors []ports.Movable) error {
	for _, m := range motors {
		if m == nil {
			return domain.Invalid("motor", "missing motor")
		}
	}
	return nil
}

// trajectoryBody visits every position of traj and records one event at each.
// Relative bodies shift traj by the positions captured before any motion and,
// if asked to, bring the motors back there once done.
func trajectoryBody(motors []ports.Movable, dets []ports.Readable, traj [][]float64, relative, returnToStart bool) Body {
	return func(_ context.Context, yield Yield) error {
		var origin []float64
		if relative {
			var err error
			if origin, err = positions(yield, motors); err != nil {
				return err
			}
			traj = Offset(traj, origin)
		}
		for _, pt := range traj {
			if err := moveTo(yield, motors, pt); err != nil {
				return err
			}
			if _, err := measure(yield, motors, dets); err != nil {
				return err
			}
		}
		if relative && returnToStart {
			return moveTo(yield, motors, origin)
		}
		return nil
	}
}
