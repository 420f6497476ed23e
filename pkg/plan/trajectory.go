package plan

import (
	"math"

	"github.com/aretw0/beamline/pkg/domain"
)

// Linspace returns num evenly spaced values over [start, stop], both inclusive.
func Linspace(start, stop float64, num int) []float64 {
	if num <= 0 {
		return nil
	}
	if num == 1 {
		return []float64{start}
	}
	out := make([]float64, num)
	delta := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + float64(i)*delta
	}
	out[num-1] = stop
	return out
}

// Logspace returns num values spaced evenly on a log scale.
// start and stop are base-10 exponents: the sequence runs from 10^start to 10^stop.
func Logspace(start, stop float64, num int) []float64 {
	exps := Linspace(start, stop, num)
	for i, e := range exps {
		exps[i] = math.Pow(10, e)
	}
	return exps
}

// OuterProduct returns the nested grid over axes. The first axis varies slowest.
// snake[i] reverses axis i on every other pass over it, counted across the
// whole grid, so a snaked axis never jumps back to its start; snake[0] is ignored.
func OuterProduct(axes [][]float64, snake []bool) [][]float64 {
	if len(axes) == 0 {
		return nil
	}
	total := 1
	for _, a := range axes {
		total *= len(a)
	}
	g := &grid{
		axes:   axes,
		snake:  snake,
		passes: make([]int, len(axes)),
		out:    make([][]float64, 0, total),
	}
	g.walk(0, make([]float64, 0, len(axes)))
	return g.out
}

type grid struct {
	axes   [][]float64
	snake  []bool
	passes []int
	out    [][]float64
}

func (g *grid) walk(depth int, prefix []float64) {
	if depth == len(g.axes) {
		g.out = append(g.out, append([]float64(nil), prefix...))
		return
	}
	values := g.axes[depth]
	reverse := depth > 0 && depth < len(g.snake) && g.snake[depth] && g.passes[depth]%2 == 1
	g.passes[depth]++
	for i := range values {
		v := values[i]
		if reverse {
			v = values[len(values)-1-i]
		}
		g.walk(depth+1, append(prefix, v))
	}
}

// InnerProduct zips per-axis trajectories into simultaneous positions.
// Every axis must have the same length.
func InnerProduct(axes [][]float64) ([][]float64, error) {
	if len(axes) == 0 {
		return nil, nil
	}
	n := len(axes[0])
	for i, a := range axes[1:] {
		if len(a) != n {
			return nil, domain.Invalid("points", "axis %d has %d points, axis 0 has %d", i+1, len(a), n)
		}
	}
	out := make([][]float64, n)
	for i := range out {
		pt := make([]float64, len(axes))
		for j, a := range axes {
			pt[j] = a[i]
		}
		out[i] = pt
	}
	return out, nil
}

// Offset shifts every position of traj by origin, axis by axis.
func Offset(traj [][]float64, origin []float64) [][]float64 {
	out := make([][]float64, len(traj))
	for i, pt := range traj {
		shifted := make([]float64, len(pt))
		for j, v := range pt {
			shifted[j] = v + origin[j]
		}
		out[i] = shifted
	}
	return out
}

// column turns a single-axis trajectory into positions.
func column(values []float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, v := range values {
		out[i] = []float64{v}
	}
	return out
}
