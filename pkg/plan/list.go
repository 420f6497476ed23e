package plan

import (
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// ListParams configures a ListScan.
type ListParams struct {
	Points        []float64 `mapstructure:"points" json:"points"`
	ReturnToStart bool      `mapstructure:"return_to_start" json:"return_to_start"`
}

// ListScan replays an explicit sequence of positions (or offsets, when relative).
type ListScan struct {
	HookSet
	settings[ListParams]
	name      string
	detectors []ports.Readable
	motor     ports.Movable
	relative  bool
}

// NewListScan visits the given absolute positions in order.
func NewListScan[T Number](dets []ports.Readable, motor ports.Movable, points []T) *ListScan {
	return newListScan("list_scan", dets, motor, Floats(points), false)
}

// NewDeltaListScan visits the given offsets from the motor's position at plan start.
func NewDeltaListScan[T Number](dets []ports.Readable, motor ports.Movable, offsets []T) *ListScan {
	return newListScan("delta_list_scan", dets, motor, Floats(offsets), true)
}

func newListScan(name string, dets []ports.Readable, motor ports.Movable, points []float64, relative bool) *ListScan {
	s := &ListScan{name: name, detectors: dets, motor: motor, relative: relative}
	s.init(ListParams{Points: points, ReturnToStart: true}, checkList)
	return s
}

func checkList(p ListParams) error {
	if len(p.Points) == 0 {
		return domain.Invalid("points", "at least one position is required")
	}
	return nil
}

func (s *ListScan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *ListScan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *ListScan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *ListScan) generate(p ListParams) (Generator, error) {
	if err := checkList(p); err != nil {
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
	points := append([]float64(nil), p.Points...)
	return newCoroutine(trajectoryBody(motors, s.detectors, column(points), s.relative, p.ReturnToStart)), nil
}
