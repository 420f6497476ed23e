package plan

import (
	"fmt"
	"sort"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// Resolver looks devices up by name.
type Resolver interface {
	Readable(name string) (ports.Readable, error)
	Movable(name string) (ports.Movable, error)
}

// Settable is implemented by every built-in plan.
type Settable interface {
	Plan
	// Set updates the stored parameters named in values.
	Set(values map[string]any) error
	// With returns a one-shot plan with values applied on top of the stored parameters.
	With(values map[string]any) (Plan, error)
}

// Spec is the declarative form of a built-in plan, as found in experiment files
// and API requests.
type Spec struct {
	Kind      string         `yaml:"kind" json:"kind" mapstructure:"kind"`
	Detectors []string       `yaml:"detectors" json:"detectors" mapstructure:"detectors"`
	Args      map[string]any `yaml:"args" json:"args" mapstructure:"args"`
}

type builder func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error)

var builders = map[string]builder{
	"count":               buildCount,
	"scan":                buildScan(NewScan),
	"delta_scan":          buildScan(NewDeltaScan),
	"log_scan":            buildScan(NewLogScan),
	"log_delta_scan":      buildScan(NewLogDeltaScan),
	"list_scan":           buildList(false),
	"delta_list_scan":     buildList(true),
	"outer_product":       buildOuter(NewOuterProductScan),
	"delta_outer_product": buildOuter(NewDeltaOuterProductScan),
	"inner_product":       buildInner(NewInnerProductScan),
	"delta_inner_product": buildInner(NewDeltaInnerProductScan),
	"inner_list":          buildInnerList(NewInnerListScan),
	"delta_inner_list":    buildInnerList(NewDeltaInnerListScan),
	"adaptive":            buildAdaptive(NewAdaptiveScan),
	"delta_adaptive":      buildAdaptive(NewDeltaAdaptiveScan),
}

// Kinds lists the plan kinds understood by Build.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build instantiates the plan described by spec, resolving device names
// through r. The resulting plan is fully validated.
func Build(spec Spec, r Resolver) (Settable, error) {
	b, ok := builders[spec.Kind]
	if !ok {
		return nil, domain.Invalid("kind", "unknown plan kind %q", spec.Kind)
	}
	dets := make([]ports.Readable, 0, len(spec.Detectors))
	for _, name := range spec.Detectors {
		d, err := r.Readable(name)
		if err != nil {
			return nil, err
		}
		dets = append(dets, d)
	}
	if spec.Kind == "count" && len(dets) == 0 {
		return nil, domain.Invalid("detectors", "count needs at least one detector")
	}

	args := make(map[string]any, len(spec.Args))
	for k, v := range spec.Args {
		args[k] = v
	}
	p, rest, err := b(dets, args, r)
	if err != nil {
		return nil, err
	}
	// Set validates the whole parameter set even when rest is empty.
	if err := p.Set(rest); err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Kind, err)
	}
	return p, nil
}

// take removes key from args and returns its value.
func take(args map[string]any, key string) (any, bool) {
	v, ok := args[key]
	delete(args, key)
	return v, ok
}

func motorArg(args map[string]any, r Resolver) (ports.Movable, error) {
	v, ok := take(args, "motor")
	if !ok {
		return nil, domain.Invalid("motor", "required")
	}
	name, ok := v.(string)
	if !ok {
		return nil, domain.Invalid("motor", "must be a device name, got %T", v)
	}
	return r.Movable(name)
}

func decodeAxes(args map[string]any, out any) error {
	v, ok := take(args, "axes")
	if !ok {
		return domain.Invalid("axes", "required")
	}
	return Decode(map[string]any{"axes": v}, out)
}

func buildCount(dets []ports.Readable, args map[string]any, _ Resolver) (Settable, map[string]any, error) {
	return NewCount(dets, CountParams{}), args, nil
}

func buildScan(ctor func([]ports.Readable, ports.Movable, float64, float64, int) *Scan) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		m, err := motorArg(args, r)
		if err != nil {
			return nil, nil, err
		}
		return ctor(dets, m, 0, 0, 0), args, nil
	}
}

func buildList(relative bool) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		m, err := motorArg(args, r)
		if err != nil {
			return nil, nil, err
		}
		if relative {
			return NewDeltaListScan[float64](dets, m, nil), args, nil
		}
		return NewListScan[float64](dets, m, nil), args, nil
	}
}

func buildOuter(ctor func([]ports.Readable, ...OuterAxis) *OuterProductScan) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		var in struct {
			Axes []struct {
				Motor string `mapstructure:"motor"`
				Start float64
				Stop  float64
				Num   int
				Snake bool
			}
		}
		if err := decodeAxes(args, &in); err != nil {
			return nil, nil, err
		}
		axes := make([]OuterAxis, 0, len(in.Axes))
		for _, a := range in.Axes {
			m, err := r.Movable(a.Motor)
			if err != nil {
				return nil, nil, err
			}
			axes = append(axes, OuterAxis{Motor: m, Start: a.Start, Stop: a.Stop, Num: a.Num, Snake: a.Snake})
		}
		return ctor(dets, axes...), args, nil
	}
}

func buildInner(ctor func([]ports.Readable, int, ...InnerAxis) *InnerProductScan) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		var in struct {
			Axes []struct {
				Motor string `mapstructure:"motor"`
				Start float64
				Stop  float64
			}
		}
		if err := decodeAxes(args, &in); err != nil {
			return nil, nil, err
		}
		axes := make([]InnerAxis, 0, len(in.Axes))
		for _, a := range in.Axes {
			m, err := r.Movable(a.Motor)
			if err != nil {
				return nil, nil, err
			}
			axes = append(axes, InnerAxis{Motor: m, Start: a.Start, Stop: a.Stop})
		}
		return ctor(dets, 0, axes...), args, nil
	}
}

func buildInnerList(ctor func([]ports.Readable, ...ListAxis) *InnerListScan) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		var in struct {
			Axes []struct {
				Motor  string `mapstructure:"motor"`
				Points []float64
			}
		}
		if err := decodeAxes(args, &in); err != nil {
			return nil, nil, err
		}
		axes := make([]ListAxis, 0, len(in.Axes))
		for _, a := range in.Axes {
			m, err := r.Movable(a.Motor)
			if err != nil {
				return nil, nil, err
			}
			axes = append(axes, ListAxis{Motor: m, Points: a.Points})
		}
		return ctor(dets, axes...), args, nil
	}
}

func buildAdaptive(ctor func([]ports.Readable, string, ports.Movable, float64, float64, float64, float64, float64, bool) *AdaptiveScan) builder {
	return func(dets []ports.Readable, args map[string]any, r Resolver) (Settable, map[string]any, error) {
		m, err := motorArg(args, r)
		if err != nil {
			return nil, nil, err
		}
		return ctor(dets, "", m, 0, 0, 0, 0, 0, false), args, nil
	}
}
