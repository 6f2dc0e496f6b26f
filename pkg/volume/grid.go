// Package volume owns the labelled voxel grid of a phantom, the label to
// material range table, and their MetaImage/text serialization.
//
// Voxels are stored x fastest, then y, then z. Physical positions are in
// millimetres and refer to voxel centres: voxel (i, j, k) spans
// [offset + i*size, offset + (i+1)*size) on x and is represented by
// offset + (i+0.5)*size.
package volume

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/phantom/pkg/logging"
)

// Label is the integer tag stored in each voxel.
type Label uint32

// BackgroundLabel is reserved for the background material.
const BackgroundLabel Label = 0

// maxVoxels caps allocations at 2 Gi elements.
const maxVoxels = math.MaxInt32

// Index addresses a voxel.
type Index struct {
	X, Y, Z int
}

// Params fixes the geometry of a grid at initialization.
type Params struct {
	Dimensions  [3]int     // voxel counts per axis
	ElementSize [3]float64 // voxel size per axis in mm
	// Offset is the physical position of the grid's minimum corner in mm.
	// Nil centres the grid on the origin.
	Offset             *[3]float64
	DataType           DataType // zero means DefaultDataType
	BackgroundMaterial string
}

// Grid is a dense 3D array of labels plus its geometric metadata.
// A Grid is owned by one construction sequence and is not safe for
// concurrent mutation, except for disjoint SetLabel calls during a single
// shape's scan.
type Grid struct {
	dims        [3]int
	spacing     [3]float64
	offset      [3]float64
	dataType    DataType
	labels      []Label
	table       *RangeTable
	initialized bool
}

// NewGrid returns an uninitialized grid.
func NewGrid() *Grid {
	return &Grid{table: NewRangeTable()}
}

// Initialize allocates the label array, fills it with BackgroundLabel and
// records the background material in the range table. Dimensions and
// element size are immutable afterwards.
func (g *Grid) Initialize(p Params) error {
	if g.initialized {
		return configErrorf("grid already initialized")
	}
	total := 1
	for axis, n := range p.Dimensions {
		if n <= 0 {
			return configErrorf("dimension %c must be > 0, got %d", "xyz"[axis], n)
		}
		if total > maxVoxels/n {
			return configErrorf("grid %dx%dx%d exceeds %d voxels", p.Dimensions[0], p.Dimensions[1], p.Dimensions[2], maxVoxels)
		}
		total *= n
	}
	for axis, s := range p.ElementSize {
		if !(s > 0) || math.IsInf(s, 0) {
			return configErrorf("element size %c must be > 0, got %v", "xyz"[axis], s)
		}
	}
	dt := p.DataType
	if dt == 0 {
		dt = DefaultDataType
	}
	if !dt.Valid() {
		return configErrorf("invalid data type %s", dt)
	}
	if err := checkMaterial(p.BackgroundMaterial); err != nil {
		return err
	}

	g.dims = p.Dimensions
	g.spacing = p.ElementSize
	if p.Offset != nil {
		g.offset = *p.Offset
	} else {
		for i := range g.offset {
			g.offset[i] = -float64(g.dims[i]) * g.spacing[i] / 2
		}
	}
	g.dataType = dt
	// make zero-fills, which is BackgroundLabel.
	g.labels = make([]Label, total)
	if g.table == nil {
		g.table = NewRangeTable()
	}
	if err := g.table.Record(BackgroundLabel, p.BackgroundMaterial); err != nil {
		return err
	}
	g.initialized = true

	logging.Logger().Info("grid initialized",
		"dimensions", g.dims, "element_size_mm", g.spacing,
		"offset_mm", g.offset, "data_type", g.dataType.String(),
		"background", p.BackgroundMaterial)
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (g *Grid) Initialized() bool { return g.initialized }

// Dimensions returns the voxel counts per axis.
func (g *Grid) Dimensions() [3]int { return g.dims }

// ElementSize returns the voxel size per axis in mm.
func (g *Grid) ElementSize() [3]float64 { return g.spacing }

// Offset returns the physical position of the grid's minimum corner.
func (g *Grid) Offset() [3]float64 { return g.offset }

// DataType returns the export element type.
func (g *Grid) DataType() DataType { return g.dataType }

// Table returns the grid's range table.
func (g *Grid) Table() *RangeTable { return g.table }

// Len returns the number of voxels.
func (g *Grid) Len() int { return len(g.labels) }

// Labels returns a copy of the label array in x-fastest order.
func (g *Grid) Labels() []Label {
	out := make([]Label, len(g.labels))
	copy(out, g.labels)
	return out
}

// InBounds reports whether i addresses a voxel of the grid.
func (g *Grid) InBounds(i Index) bool {
	return i.X >= 0 && i.X < g.dims[0] &&
		i.Y >= 0 && i.Y < g.dims[1] &&
		i.Z >= 0 && i.Z < g.dims[2]
}

func (g *Grid) linear(i Index) int {
	return i.X + g.dims[0]*(i.Y+g.dims[1]*i.Z)
}

// SetLabel writes v at i. v must fit the grid's data type.
func (g *Grid) SetLabel(i Index, v Label) error {
	if !g.initialized {
		return configErrorf("grid not initialized")
	}
	if !g.InBounds(i) {
		return outOfBounds(i, g.dims)
	}
	if !g.dataType.CanHold(v) {
		return configErrorf("label %d exceeds %s maximum %d", v, g.dataType, g.dataType.MaxLabel())
	}
	g.labels[g.linear(i)] = v
	return nil
}

// Label reads the label at i.
func (g *Grid) Label(i Index) (Label, error) {
	if !g.initialized {
		return 0, configErrorf("grid not initialized")
	}
	if !g.InBounds(i) {
		return 0, outOfBounds(i, g.dims)
	}
	return g.labels[g.linear(i)], nil
}

// ToPhysical returns the centre of voxel i in mm. i need not be in bounds.
func (g *Grid) ToPhysical(i Index) [3]float64 {
	idx := [3]int{i.X, i.Y, i.Z}
	var p [3]float64
	for a := range p {
		p[a] = g.offset[a] + (float64(idx[a])+0.5)*g.spacing[a]
	}
	return p
}

// ToIndex returns the voxel containing physical point p. ok is false when
// p lies outside the grid.
func (g *Grid) ToIndex(p [3]float64) (i Index, ok bool) {
	var idx [3]int
	for a := range idx {
		idx[a] = int(math.Floor((p[a] - g.offset[a]) / g.spacing[a]))
	}
	i = Index{idx[0], idx[1], idx[2]}
	return i, g.InBounds(i)
}

// IndexRange returns the inclusive range of voxels whose centres fall in
// the physical box [min, max], clamped to the grid. ok is false when no
// voxel centre lies inside the box.
func (g *Grid) IndexRange(min, max [3]float64) (lo, hi Index, ok bool) {
	var l, h [3]int
	for a := range l {
		if math.IsNaN(min[a]) || math.IsNaN(max[a]) || min[a] > max[a] {
			return Index{}, Index{}, false
		}
		// centre(i) >= min  <=>  i >= (min-offset)/size - 0.5
		fl := math.Ceil((min[a]-g.offset[a])/g.spacing[a] - 0.5)
		fh := math.Floor((max[a]-g.offset[a])/g.spacing[a] - 0.5)
		fl = math.Max(fl, 0)
		fh = math.Min(fh, float64(g.dims[a]-1))
		if fl > fh {
			return Index{}, Index{}, false
		}
		l[a], h[a] = int(fl), int(fh)
	}
	return Index{l[0], l[1], l[2]}, Index{h[0], h[1], h[2]}, true
}

func checkMaterial(name string) error {
	if strings.TrimSpace(name) == "" {
		return configErrorf("material name must not be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return configErrorf("material name %q must not contain whitespace", name)
	}
	return nil
}

func outOfBounds(i Index, dims [3]int) error {
	return &BoundsError{Index: i, Dimensions: dims}
}

// BoundsError describes an index outside the grid. It matches
// ErrOutOfBounds under errors.Is.
type BoundsError struct {
	Index      Index
	Dimensions [3]int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: (%d, %d, %d) outside [0,%d)x[0,%d)x[0,%d)", ErrOutOfBounds,
		e.Index.X, e.Index.Y, e.Index.Z, e.Dimensions[0], e.Dimensions[1], e.Dimensions[2])
}

// Is lets errors.Is(err, ErrOutOfBounds) match.
func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }
