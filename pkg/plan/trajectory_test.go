package plan_test

import (
	"testing"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		name        string
		start, stop float64
		num         int
		want        []float64
	}{
		{"ascending", -1, 1, 5, []float64{-1, -0.5, 0, 0.5, 1}},
		{"descending", 2, 0, 3, []float64{2, 1, 0}},
		{"single point", 4, 9, 1, []float64{4}},
		{"empty", 0, 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, plan.Linspace(tt.start, tt.stop, tt.num), 1e-12)
		})
	}
}

func TestLogspace(t *testing.T) {
	got := plan.Logspace(0, 2, 3)
	assert.InDeltaSlice(t, []float64{1, 10, 100}, got, 1e-9)
}

func TestOuterProduct(t *testing.T) {
	axes := [][]float64{{1, 2, 3}, {10, 20}}

	t.Run("Plain", func(t *testing.T) {
		got := plan.OuterProduct(axes, nil)
		assert.Equal(t, [][]float64{{1, 10}, {1, 20}, {2, 10}, {2, 20}, {3, 10}, {3, 20}}, got)
	})

	t.Run("Snake", func(t *testing.T) {
		got := plan.OuterProduct(axes, []bool{false, true})
		assert.Equal(t, [][]float64{{1, 10}, {1, 20}, {2, 20}, {2, 10}, {3, 10}, {3, 20}}, got)
	})

	t.Run("Three Axes", func(t *testing.T) {
		got := plan.OuterProduct([][]float64{{0, 1}, {0, 1}, {0, 1}}, []bool{false, false, true})
		require.Len(t, got, 8)
		assert.Equal(t, []float64{0, 0, 0}, got[0])
		assert.Equal(t, []float64{0, 1, 1}, got[2])
		assert.Equal(t, []float64{0, 1, 0}, got[3])
	})

	t.Run("Snake Across Odd Middle Axis", func(t *testing.T) {
		got := plan.OuterProduct([][]float64{{0, 1}, {0, 1, 2}, {0, 1}}, []bool{false, false, true})
		require.Len(t, got, 12)
		fast := make([]float64, len(got))
		for i, pt := range got {
			fast[i] = pt[2]
		}
		assert.Equal(t, []float64{0, 1, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0}, fast)
		for i := 1; i < len(got); i++ {
			if got[i][1] != got[i-1][1] {
				assert.Equal(t, got[i-1][2], got[i][2], "fast axis jumped at point %d", i)
			}
		}
	})

	t.Run("Snake Middle And Fast", func(t *testing.T) {
		got := plan.OuterProduct([][]float64{{0, 1}, {0, 1}, {0, 1}}, []bool{false, true, true})
		assert.Equal(t, [][]float64{
			{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0},
			{1, 1, 0}, {1, 1, 1}, {1, 0, 1}, {1, 0, 0},
		}, got)
	})
}

func TestInnerProduct(t *testing.T) {
	got, err := plan.InnerProduct([][]float64{{1, 2}, {10, 20}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 10}, {2, 20}}, got)

	_, err = plan.InnerProduct([][]float64{{1, 2}, {10}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOffset(t *testing.T) {
	got := plan.Offset([][]float64{{1, 10}, {2, 20}}, []float64{5, 8})
	assert.Equal(t, [][]float64{{6, 18}, {7, 28}}, got)
}
