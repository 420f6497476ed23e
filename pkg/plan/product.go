package plan

import (
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// AxisRange is the sweep of one axis of an outer product.
type AxisRange struct {
	Start float64 `mapstructure:"start" json:"start"`
	Stop  float64 `mapstructure:"stop" json:"stop"`
	Num   int     `mapstructure:"num" json:"num"`
	// Snake reverses this axis on every other pass of the previous one.
	Snake bool `mapstructure:"snake" json:"snake"`
}

// OuterAxis binds a motor to its sweep.
type OuterAxis struct {
	Motor ports.Movable
	Start float64
	Stop  float64
	Num   int
	Snake bool
}

// OuterParams configures an OuterProductScan. Axes are ordered slowest first.
type OuterParams struct {
	Axes          []AxisRange `mapstructure:"axes" json:"axes"`
	ReturnToStart bool        `mapstructure:"return_to_start" json:"return_to_start"`
}

// OuterProductScan records one event at every node of a grid.
// The first axis is the slowest: all positions of the last axis are visited
// before the one before it advances.
type OuterProductScan struct {
	HookSet
	settings[OuterParams]
	name      string
	detectors []ports.Readable
	motors    []ports.Movable
	relative  bool
}

// NewOuterProductScan creates a grid scan over absolute positions.
func NewOuterProductScan(dets []ports.Readable, axes ...OuterAxis) *OuterProductScan {
	return newOuterProduct("outer_product", dets, axes, false)
}

// NewDeltaOuterProductScan creates a grid scan relative to the motors' positions at plan start.
func NewDeltaOuterProductScan(dets []ports.Readable, axes ...OuterAxis) *OuterProductScan {
	return newOuterProduct("delta_outer_product", dets, axes, true)
}

func newOuterProduct(name string, dets []ports.Readable, axes []OuterAxis, relative bool) *OuterProductScan {
	s := &OuterProductScan{name: name, detectors: dets, relative: relative}
	ranges := make([]AxisRange, len(axes))
	for i, a := range axes {
		s.motors = append(s.motors, a.Motor)
		ranges[i] = AxisRange{Start: a.Start, Stop: a.Stop, Num: a.Num, Snake: a.Snake}
	}
	s.init(OuterParams{Axes: ranges, ReturnToStart: true}, s.check)
	return s
}

func (s *OuterProductScan) check(p OuterParams) error {
	if len(p.Axes) == 0 {
		return domain.Invalid("axes", "at least one axis is required")
	}
	if len(p.Axes) != len(s.motors) {
		return domain.Invalid("axes", "%d ranges for %d motors", len(p.Axes), len(s.motors))
	}
	for i, a := range p.Axes {
		if a.Num < 1 {
			return domain.Invalid("axes", "axis %d: num must be positive, got %d", i, a.Num)
		}
	}
	return nil
}

func (s *OuterProductScan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *OuterProductScan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *OuterProductScan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *OuterProductScan) generate(p OuterParams) (Generator, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	if err := requireMotors(s.motors); err != nil {
		return nil, err
	}
	if s.relative {
		if err := requireReadable(s.motors); err != nil {
			return nil, err
		}
	}
	axes := make([][]float64, len(p.Axes))
	snake := make([]bool, len(p.Axes))
	for i, a := range p.Axes {
		axes[i] = Linspace(a.Start, a.Stop, a.Num)
		snake[i] = a.Snake
	}
	traj := OuterProduct(axes, snake)
	return newCoroutine(trajectoryBody(s.motors, s.detectors, traj, s.relative, p.ReturnToStart)), nil
}

// Span is the extent of one axis of an inner product.
type Span struct {
	Start float64 `mapstructure:"start" json:"start"`
	Stop  float64 `mapstructure:"stop" json:"stop"`
}

// InnerAxis binds a motor to its span.
type InnerAxis struct {
	Motor ports.Movable
	Start float64
	Stop  float64
}

// InnerParams configures an InnerProductScan.
type InnerParams struct {
	Num           int    `mapstructure:"num" json:"num"`
	Axes          []Span `mapstructure:"axes" json:"axes"`
	ReturnToStart bool   `mapstructure:"return_to_start" json:"return_to_start"`
}

// InnerProductScan moves every motor together in lock-step over Num points.
type InnerProductScan struct {
	HookSet
	settings[InnerParams]
	name      string
	detectors []ports.Readable
	motors    []ports.Movable
	relative  bool
}

// NewInnerProductScan creates a simultaneous sweep over absolute positions.
func NewInnerProductScan(dets []ports.Readable, num int, axes ...InnerAxis) *InnerProductScan {
	return newInnerProduct("inner_product", dets, num, axes, false)
}

// NewDeltaInnerProductScan creates a simultaneous sweep relative to the motors' positions at plan start.
func NewDeltaInnerProductScan(dets []ports.Readable, num int, axes ...InnerAxis) *InnerProductScan {
	return newInnerProduct("delta_inner_product", dets, num, axes, true)
}

func newInnerProduct(name string, dets []ports.Readable, num int, axes []InnerAxis, relative bool) *InnerProductScan {
	s := &InnerProductScan{name: name, detectors: dets, relative: relative}
	spans := make([]Span, len(axes))
	for i, a := range axes {
		s.motors = append(s.motors, a.Motor)
		spans[i] = Span{Start: a.Start, Stop: a.Stop}
	}
	s.init(InnerParams{Num: num, Axes: spans, ReturnToStart: true}, s.check)
	return s
}

func (s *InnerProductScan) check(p InnerParams) error {
	if p.Num < 1 {
		return domain.Invalid("num", "must be positive, got %d", p.Num)
	}
	if len(p.Axes) == 0 {
		return domain.Invalid("axes", "at least one axis is required")
	}
	if len(p.Axes) != len(s.motors) {
		return domain.Invalid("axes", "%d spans for %d motors", len(p.Axes), len(s.motors))
	}
	return nil
}

func (s *InnerProductScan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *InnerProductScan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *InnerProductScan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *InnerProductScan) generate(p InnerParams) (Generator, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	if err := requireMotors(s.motors); err != nil {
		return nil, err
	}
	if s.relative {
		if err := requireReadable(s.motors); err != nil {
			return nil, err
		}
	}
	axes := make([][]float64, len(p.Axes))
	for i, a := range p.Axes {
		axes[i] = Linspace(a.Start, a.Stop, p.Num)
	}
	traj, err := InnerProduct(axes)
	if err != nil {
		return nil, err
	}
	return newCoroutine(trajectoryBody(s.motors, s.detectors, traj, s.relative, p.ReturnToStart)), nil
}

// ListAxis binds a motor to an explicit list of positions.
type ListAxis struct {
	Motor  ports.Movable
	Points []float64
}

// InnerListParams configures an InnerListScan: one list of points per motor.
type InnerListParams struct {
	Points        [][]float64 `mapstructure:"points" json:"points"`
	ReturnToStart bool        `mapstructure:"return_to_start" json:"return_to_start"`
}

// InnerListScan zips explicit per-motor position lists. Every list must have
// the same length; a mismatch is reported before any message is produced.
type InnerListScan struct {
	HookSet
	settings[InnerListParams]
	name      string
	detectors []ports.Readable
	motors    []ports.Movable
	relative  bool
}

// NewInnerListScan creates a lock-step scan over absolute position lists.
func NewInnerListScan(dets []ports.Readable, axes ...ListAxis) *InnerListScan {
	return newInnerList("inner_list", dets, axes, false)
}

// NewDeltaInnerListScan creates a lock-step scan over offsets from the positions at plan start.
func NewDeltaInnerListScan(dets []ports.Readable, axes ...ListAxis) *InnerListScan {
	return newInnerList("delta_inner_list", dets, axes, true)
}

func newInnerList(name string, dets []ports.Readable, axes []ListAxis, relative bool) *InnerListScan {
	s := &InnerListScan{name: name, detectors: dets, relative: relative}
	points := make([][]float64, len(axes))
	for i, a := range axes {
		s.motors = append(s.motors, a.Motor)
		points[i] = append([]float64(nil), a.Points...)
	}
	s.init(InnerListParams{Points: points, ReturnToStart: true}, s.check)
	return s
}

func (s *InnerListScan) check(p InnerListParams) error {
	if len(p.Points) == 0 {
		return domain.Invalid("points", "at least one axis is required")
	}
	if len(p.Points) != len(s.motors) {
		return domain.Invalid("points", "%d lists for %d motors", len(p.Points), len(s.motors))
	}
	if len(p.Points[0]) == 0 {
		return domain.Invalid("points", "at least one position is required")
	}
	_, err := InnerProduct(p.Points)
	return err
}

func (s *InnerListScan) Name() string { return s.name }

// Generate implements Plan using the stored parameters.
func (s *InnerListScan) Generate() (Generator, error) {
	return s.generate(s.Params())
}

// With returns a one-shot plan using overrides on top of the stored parameters.
func (s *InnerListScan) With(overrides map[string]any) (Plan, error) {
	p, err := s.merge(overrides)
	if err != nil {
		return nil, err
	}
	return &invocation{parent: s, generate: func() (Generator, error) { return s.generate(p) }}, nil
}

func (s *InnerListScan) generate(p InnerListParams) (Generator, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	if err := requireMotors(s.motors); err != nil {
		return nil, err
	}
	if s.relative {
		if err := requireReadable(s.motors); err != nil {
			return nil, err
		}
	}
	traj, err := InnerProduct(p.Points)
	if err != nil {
		return nil, err
	}
	return newCoroutine(trajectoryBody(s.motors, s.detectors, traj, s.relative, p.ReturnToStart)), nil
}
