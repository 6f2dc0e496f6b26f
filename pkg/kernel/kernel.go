// Package kernel defines the abstract geometry kernel interface used to
// describe phantom shapes. A Solid answers two questions for the rasterizer:
// where it is (an axis-aligned bounding box) and whether a point lies inside
// it. Implementations provide primitives, boolean operations and rigid
// transforms behind this interface so the rest of the system never depends
// on a particular geometry backend.
//
// All lengths are millimetres. Primitives are centred on the origin.
package kernel

import (
	"fmt"
	"strings"
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box. It may be larger
	// than the solid but never smaller.
	BoundingBox() (min, max [3]float64)

	// Contains reports whether p lies inside the solid or on its surface.
	Contains(p [3]float64) bool
}

// Axis selects a grid axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts "x", "y" or "z" in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q (want x, y or z)", s)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives. Each fails on non-positive or non-finite dimensions.
	Box(x, y, z float64) (Solid, error)
	Tube(height, radius float64, axis Axis) (Solid, error)
	Sphere(radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees, applied X then Y then Z

	// Mesh output. cells is the number of marching cells along the longest
	// side of the bounding box.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
