package plan

import (
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// ScanParams configures a single-axis sweep.
type ScanParams struct {
	Start float64 `mapstructure:"start" json:"start"`
	Stop  float64 `mapstructure:"stop" json:"stop"`
	Num   int     `mapstructure:"num" json:"num"`
	// ReturnToStart brings the motor back after a relative scan. Ignored by absolute scans.
	ReturnToStart bool `mapstructure:"return_to_start" json:"return_to_start"`
}

// Scan sweeps one motor over Num points between Start and Stop, both included,
// recording one event per point.
type Scan struct {
	HookSet
	settings[ScanParams]
	name      string
	detectors []ports.Readable
	motor     ports.Movable
	relative  bool
	log       bool
}

// NewScan creates a linear sweep over absolute positions.
func NewScan(dets []ports.Readable, motor ports.Movable, start, stop float64, num int) *Scan {
	return newScan("scan", dets, motor, start, stop, num, false, false)
}

// NewDeltaScan creates a linear sweep relative to the motor's position when the plan starts.
func NewDeltaScan(dets []ports.Readable, motor ports.Movable, start, stop float64, num int) *Scan {
	return newScan("delta_scan", dets, motor, start, stop, num, true, false)
}

// NewLogScan creates a sweep from 10^start to 10^stop, evenly spaced on a log scale.
func NewLogScan(dets []ports.Readable, motor ports.Movable, start, stop float64, num int) *Scan {
	return newScan("log_scan", dets, motor, start, stop, num, false, true)
}

// NewLogDeltaScan is the relative version of NewLogScan.
func NewLogDeltaScan(dets []ports.Readable, motor ports.Movable, start, stop float64, num int) *Scan {
	return newScan("log_delta_scan", dets, motor, start, stop, num, true, true)
}

func newScan(name string, dets []ports.Readable, motor ports.Movable, start, stop float64, num int, relative, log bool) *Scan {
	s := &Scan{name: name, detectors: dets, motor: motor, relative: relative, log: log}
	s.init(ScanParams{Start: start, Stop: stop, Num: num, ReturnToStart: true}, checkScan)
	return s
}

func checkScan(p ScanParams) error {
	if p.Num < 1 {
		return domain.Invalid("num", "must be positive, got %d", p.Num)
	}
	return nil
}

func (s *Scan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *Scan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *Scan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *Scan) generate(p ScanParams) (Generator, error) {
	if err := checkScan(p); err != nil {
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
	points := Linspace(p.Start, p.Stop, p.Num)
	if s.log {
		points = Logspace(p.Start, p.Stop, p.Num)
	}
	return newCoroutine(trajectoryBody(motors, s.detectors, column(points), s.relative, p.ReturnToStart)), nil
}
