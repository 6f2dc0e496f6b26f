package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/kernel/sdfx"
	"github.com/chazu/phantom/pkg/volume"
)

// aabb is an axis-aligned box solid, inclusive on its faces.
type aabb struct {
	min, max [3]float64
}

func (b aabb) BoundingBox() (min, max [3]float64) { return b.min, b.max }

func (b aabb) Contains(p [3]float64) bool {
	for i := range p {
		if p[i] < b.min[i] || p[i] > b.max[i] {
			return false
		}
	}
	return true
}

func newGrid(t *testing.T, n int, size float64) *volume.Grid {
	t.Helper()
	g := volume.NewGrid()
	require.NoError(t, g.Initialize(volume.Params{
		Dimensions:         [3]int{n, n, n},
		ElementSize:        [3]float64{size, size, size},
		DataType:           volume.UShort,
		BackgroundMaterial: "Air",
	}))
	return g
}

func count(g *volume.Grid, label volume.Label) int {
	n := 0
	for _, v := range g.Labels() {
		if v == label {
			n++
		}
	}
	return n
}

func TestRasterizeBox(t *testing.T) {
	t.Parallel()

	// 10 voxels of 1mm: centres at -4.5 .. 4.5.
	g := newGrid(t, 10, 1)
	n, err := Rasterize(g, aabb{[3]float64{-2, -2, -2}, [3]float64{2, 2, 2}}, 3)
	require.NoError(t, err)
	assert.Equal(t, 64, n) // centres -1.5 .. 1.5 on each axis
	assert.Equal(t, 64, count(g, 3))

	v, err := g.Label(volume.Index{X: 3, Y: 3, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, volume.Label(3), v)
	v, err = g.Label(volume.Index{X: 2, Y: 3, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, volume.BackgroundLabel, v)
}

func TestRasterizeClampsToGrid(t *testing.T) {
	t.Parallel()

	g := newGrid(t, 4, 1)
	n, err := Rasterize(g, aabb{[3]float64{-100, -100, -100}, [3]float64{100, 100, 100}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	inf := math.Inf(1)
	n, err = Rasterize(g, aabb{[3]float64{-inf, -inf, 0}, [3]float64{inf, inf, inf}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

func TestRasterizeOutsideGrid(t *testing.T) {
	t.Parallel()

	g := newGrid(t, 8, 1)
	before := g.Labels()
	for _, s := range []Solid{
		aabb{[3]float64{10, 10, 10}, [3]float64{20, 20, 20}},
		aabb{[3]float64{-20, 0, 0}, [3]float64{-5, 1, 1}},
		aabb{[3]float64{0.1, 0.1, 0.1}, [3]float64{0.4, 0.4, 0.4}}, // between centres
	} {
		n, err := Rasterize(g, s, 5)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, before, g.Labels())
}

func TestOverlapPrecedence(t *testing.T) {
	t.Parallel()

	small := aabb{[3]float64{-1, -1, -1}, [3]float64{1, 1, 1}}
	large := aabb{[3]float64{-3, -3, -3}, [3]float64{3, 3, 3}}

	tests := []struct {
		name          string
		first, second Solid
	}{
		{"large then small", large, small},
		{"small then large", small, large},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := newGrid(t, 10, 1)
			_, err := Rasterize(g, tt.first, 1)
			require.NoError(t, err)
			_, err = Rasterize(g, tt.second, 2)
			require.NoError(t, err)

			// Every voxel in the intersection (the small box) holds the
			// second label.
			for z := 0; z < 10; z++ {
				for y := 0; y < 10; y++ {
					for x := 0; x < 10; x++ {
						idx := volume.Index{X: x, Y: y, Z: z}
						p := g.ToPhysical(idx)
						if small.Contains(p) && large.Contains(p) {
							v, err := g.Label(idx)
							require.NoError(t, err)
							assert.Equal(t, volume.Label(2), v, "voxel %v", idx)
						}
					}
				}
			}
		})
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	t.Parallel()

	k := sdfx.New()
	tube, err := k.Tube(9, 4, kernel.AxisX)
	require.NoError(t, err)
	sphere, err := k.Sphere(5)
	require.NoError(t, err)
	shell := k.Difference(sphere, k.Translate(tube, 1, 1, 0))

	draw := func(workers int) []volume.Label {
		g := newGrid(t, 24, 0.5)
		for i, s := range []Solid{sphere, k.Rotate(tube, 0, 30, 0), shell} {
			_, err := RasterizeWith(g, s, volume.Label(i+1), Options{Workers: workers})
			require.NoError(t, err)
		}
		return g.Labels()
	}

	serial := draw(1)
	assert.Equal(t, serial, draw(8))
	assert.Equal(t, serial, draw(0))
}

func TestBounds(t *testing.T) {
	t.Parallel()

	g := newGrid(t, 10, 1)
	lo, hi, ok := Bounds(g, aabb{[3]float64{-2, -2, -2}, [3]float64{2, 2, 2}})
	require.True(t, ok)
	assert.Equal(t, volume.Index{X: 3, Y: 3, Z: 3}, lo)
	assert.Equal(t, volume.Index{X: 6, Y: 6, Z: 6}, hi)
}
