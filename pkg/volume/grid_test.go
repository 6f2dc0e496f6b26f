package volume

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T, nx, ny, nz int, size float64) *Grid {
	t.Helper()
	g := NewGrid()
	require.NoError(t, g.Initialize(Params{
		Dimensions:         [3]int{nx, ny, nz},
		ElementSize:        [3]float64{size, size, size},
		DataType:           UShort,
		BackgroundMaterial: "Air",
	}))
	return g
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 4, 3, 2, 0.5)
	assert.True(t, g.Initialized())
	assert.Equal(t, [3]int{4, 3, 2}, g.Dimensions())
	assert.Equal(t, 24, g.Len())
	assert.Equal(t, [3]float64{-1, -0.75, -0.5}, g.Offset())
	for _, v := range g.Labels() {
		assert.Equal(t, BackgroundLabel, v)
	}

	want := []Entry{{Label: 0, Material: "Air"}}
	if diff := cmp.Diff(want, g.Table().Export()); diff != "" {
		t.Errorf("range table mismatch (-want +got):\n%s", diff)
	}
}

func TestInitializeDefaultsAndOffset(t *testing.T) {
	t.Parallel()

	g := NewGrid()
	off := [3]float64{0, 0, 0}
	require.NoError(t, g.Initialize(Params{
		Dimensions:         [3]int{2, 2, 2},
		ElementSize:        [3]float64{1, 2, 3},
		Offset:             &off,
		BackgroundMaterial: "Water",
	}))
	assert.Equal(t, DefaultDataType, g.DataType())
	assert.Equal(t, [3]float64{0, 0, 0}, g.Offset())
	assert.Equal(t, [3]float64{0.5, 3, 4.5}, g.ToPhysical(Index{0, 1, 1}))
}

func TestInitializeErrors(t *testing.T) {
	t.Parallel()

	valid := func() Params {
		return Params{
			Dimensions:         [3]int{2, 2, 2},
			ElementSize:        [3]float64{1, 1, 1},
			BackgroundMaterial: "Air",
		}
	}
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero dimension", func(p *Params) { p.Dimensions[1] = 0 }},
		{"negative dimension", func(p *Params) { p.Dimensions[2] = -3 }},
		{"zero element size", func(p *Params) { p.ElementSize[0] = 0 }},
		{"negative element size", func(p *Params) { p.ElementSize[1] = -1 }},
		{"NaN element size", func(p *Params) { p.ElementSize[2] = math.NaN() }},
		{"infinite element size", func(p *Params) { p.ElementSize[2] = math.Inf(1) }},
		{"invalid data type", func(p *Params) { p.DataType = DataType(42) }},
		{"empty material", func(p *Params) { p.BackgroundMaterial = "" }},
		{"material with space", func(p *Params) { p.BackgroundMaterial = "G4 Air" }},
		{"too many voxels", func(p *Params) { p.Dimensions = [3]int{1 << 12, 1 << 12, 1 << 12} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid()
			tt.mutate(&p)
			g := NewGrid()
			err := g.Initialize(p)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.False(t, g.Initialized())
			assert.Equal(t, 0, g.Table().Len())
		})
	}
}

func TestInitializeTwice(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 2, 2, 2, 1)
	err := g.Initialize(Params{
		Dimensions:         [3]int{3, 3, 3},
		ElementSize:        [3]float64{1, 1, 1},
		BackgroundMaterial: "Water",
	})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, [3]int{2, 2, 2}, g.Dimensions())
	m, _ := g.Table().Material(BackgroundLabel)
	assert.Equal(t, "Air", m)
}

func TestSetLabel(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 3, 3, 3, 1)
	require.NoError(t, g.SetLabel(Index{2, 1, 0}, 7))
	v, err := g.Label(Index{2, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, Label(7), v)
	assert.Equal(t, Label(7), g.Labels()[2+3*1])

	for _, idx := range []Index{{-1, 0, 0}, {3, 0, 0}, {0, 3, 0}, {0, 0, 3}, {0, 0, -1}} {
		err := g.SetLabel(idx, 1)
		assert.ErrorIs(t, err, ErrOutOfBounds, "index %v", idx)
		var be *BoundsError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, idx, be.Index)
	}
}

func TestSetLabelTooLargeForDataType(t *testing.T) {
	t.Parallel()

	g := NewGrid()
	require.NoError(t, g.Initialize(Params{
		Dimensions:         [3]int{2, 1, 1},
		ElementSize:        [3]float64{1, 1, 1},
		DataType:           UChar,
		BackgroundMaterial: "Air",
	}))
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 255))
	err := g.SetLabel(Index{1, 0, 0}, 300)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "MET_UCHAR")
	assert.Equal(t, []Label{255, 0}, g.Labels())
}

func TestSetLabelUninitialized(t *testing.T) {
	t.Parallel()

	g := NewGrid()
	assert.ErrorIs(t, g.SetLabel(Index{}, 1), ErrConfiguration)
	_, err := g.Label(Index{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCoordinateMapping(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 200, 200, 200, 0.25)
	assert.Equal(t, [3]float64{-25, -25, -25}, g.Offset())

	p := g.ToPhysical(Index{0, 0, 0})
	assert.InDelta(t, -24.875, p[0], 1e-12)

	for _, idx := range []Index{{0, 0, 0}, {100, 50, 199}, {199, 199, 199}} {
		back, ok := g.ToIndex(g.ToPhysical(idx))
		assert.True(t, ok)
		assert.Equal(t, idx, back)
	}

	_, ok := g.ToIndex([3]float64{25.01, 0, 0})
	assert.False(t, ok)
	idx, ok := g.ToIndex([3]float64{-25, -25, -25})
	assert.True(t, ok)
	assert.Equal(t, Index{0, 0, 0}, idx)
}

func TestIndexRange(t *testing.T) {
	t.Parallel()

	// 10 voxels of 1mm centred on the origin: centres at -4.5 .. 4.5.
	g := newTestGrid(t, 10, 10, 10, 1)

	tests := []struct {
		name     string
		min, max [3]float64
		lo, hi   Index
		ok       bool
	}{
		{"whole grid", [3]float64{-100, -100, -100}, [3]float64{100, 100, 100}, Index{0, 0, 0}, Index{9, 9, 9}, true},
		{"centred box", [3]float64{-1, -1, -1}, [3]float64{1, 1, 1}, Index{4, 4, 4}, Index{5, 5, 5}, true},
		{"centre on boundary", [3]float64{-0.5, -0.5, -0.5}, [3]float64{0.5, 0.5, 0.5}, Index{4, 4, 4}, Index{5, 5, 5}, true},
		{"between centres", [3]float64{0.1, 0.1, 0.1}, [3]float64{0.4, 0.4, 0.4}, Index{}, Index{}, false},
		{"outside", [3]float64{20, 20, 20}, [3]float64{30, 30, 30}, Index{}, Index{}, false},
		{"inverted", [3]float64{1, 1, 1}, [3]float64{-1, -1, -1}, Index{}, Index{}, false},
		{"NaN", [3]float64{math.NaN(), 0, 0}, [3]float64{1, 1, 1}, Index{}, Index{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lo, hi, ok := g.IndexRange(tt.min, tt.max)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.lo, lo)
				assert.Equal(t, tt.hi, hi)
			}
		})
	}
}

func TestDataTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want DataType
		size int
		max  Label
	}{
		{"MET_CHAR", Char, 1, 127},
		{"met_uchar", UChar, 1, 255},
		{"MET_SHORT", Short, 2, 32767},
		{"ushort", UShort, 2, 65535},
		{"MET_INT", Int, 4, math.MaxInt32},
		{"MET_UINT", UInt, 4, math.MaxUint32},
		{" MET_FLOAT ", Float, 4, 1 << 24},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			dt, err := ParseDataType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dt)
			assert.Equal(t, tt.size, dt.Size())
			assert.Equal(t, tt.max, dt.MaxLabel())
			assert.True(t, dt.CanHold(tt.max))
			if tt.max < math.MaxUint32 {
				assert.False(t, dt.CanHold(tt.max+1))
			}

			buf := make([]byte, dt.Size())
			dt.put(buf, tt.max)
			got, err := dt.get(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.max, got)
		})
	}

	_, err := ParseDataType("MET_DOUBLE")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "MET_USHORT", UShort.String())
	assert.Equal(t, "DataType(0)", DataType(0).String())
}

func TestDataTypeRejectsNonLabels(t *testing.T) {
	t.Parallel()

	_, err := Char.get([]byte{0xff})
	assert.ErrorIs(t, err, ErrConfiguration)

	buf := make([]byte, 4)
	Float.put(buf, 3)
	buf[0] = 0x01 // perturb mantissa: 3.0000002
	_, err = Float.get(buf)
	assert.ErrorIs(t, err, ErrConfiguration)
}
