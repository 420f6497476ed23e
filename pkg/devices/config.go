package devices

import (
	"fmt"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Device kinds understood by New.
const (
	KindMotor    = "motor"
	KindGauss    = "gauss"
	KindConstant = "constant"
)

// Config declares one simulated device.
type Config struct {
	Name   string         `yaml:"name" json:"name" mapstructure:"name"`
	Kind   string         `yaml:"kind" json:"kind" mapstructure:"kind"`
	Params map[string]any `yaml:"params" json:"params" mapstructure:"params"`
}

type motorParams struct {
	Position   float64       `mapstructure:"position"`
	MoveTime   time.Duration `mapstructure:"move_time"`
	SettleTime time.Duration `mapstructure:"settle_time"`
	Limits     []float64     `mapstructure:"limits"`
}

type gaussParams struct {
	Motor    string        `mapstructure:"motor"`
	Center   float64       `mapstructure:"center"`
	Amp      float64       `mapstructure:"amp"`
	Sigma    float64       `mapstructure:"sigma"`
	Noise    float64       `mapstructure:"noise"`
	Exposure time.Duration `mapstructure:"exposure"`
}

type constantParams struct {
	Value any `mapstructure:"value"`
}

// Lookup resolves a device that another one depends on.
type Lookup func(name string) (ports.Readable, error)

// New builds the device described by cfg.
func New(cfg Config, lookup Lookup) (domain.Target, error) {
	if cfg.Name == "" {
		return nil, domain.Invalid("name", "device name is required")
	}
	switch cfg.Kind {
	case KindMotor:
		var p motorParams
		if err := decode(cfg, &p); err != nil {
			return nil, err
		}
		opts := []MotorOption{WithPosition(p.Position), WithMoveTime(p.MoveTime), WithSettleTime(p.SettleTime)}
		if len(p.Limits) > 0 {
			if len(p.Limits) != 2 || p.Limits[0] > p.Limits[1] {
				return nil, domain.Invalid(cfg.Name+".limits", "want [low, high], got %v", p.Limits)
			}
			opts = append(opts, WithLimits(p.Limits[0], p.Limits[1]))
		}
		return NewMotor(cfg.Name, opts...), nil

	case KindGauss:
		p := gaussParams{Amp: 1, Sigma: 1}
		if err := decode(cfg, &p); err != nil {
			return nil, err
		}
		if p.Sigma <= 0 {
			return nil, domain.Invalid(cfg.Name+".sigma", "must be positive, got %g", p.Sigma)
		}
		if p.Motor == "" {
			return nil, domain.Invalid(cfg.Name+".motor", "required")
		}
		motor, err := lookup(p.Motor)
		if err != nil {
			return nil, err
		}
		return NewSynGauss(cfg.Name, motor, p.Center, p.Amp, p.Sigma, WithNoise(p.Noise), WithExposure(p.Exposure)), nil

	case KindConstant:
		p := constantParams{Value: 1.0}
		if err := decode(cfg, &p); err != nil {
			return nil, err
		}
		return NewConstant(cfg.Name, p.Value), nil
	}
	return nil, domain.Invalid(cfg.Name+".kind", "unknown device kind %q", cfg.Kind)
}

func decode(cfg Config, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(cfg.Params); err != nil {
		return domain.Invalid(cfg.Name, "%v", err)
	}
	return nil
}
