package plan

import "fmt"

// Vec3 is an (x, y, z) triple.
type Vec3 [3]float64

// Axis names a grid axis: "x", "y" or "z". Empty means "z".
type Axis string

// ---------------------------------------------------------------------------
// Volume
// ---------------------------------------------------------------------------

// Volume holds the grid parameters and output paths.
type Volume struct {
	Dimensions  [3]int
	ElementSize Vec3 // mm
	// Offset is the physical position of the grid's minimum corner.
	// Nil centres the grid on the origin.
	Offset      *Vec3
	Material    string // background material
	DataType    string // MET_* name, empty means MET_FLOAT
	Output      string
	RangeOutput string
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// ShapeKind distinguishes shape variants.
type ShapeKind int

const (
	KindTube ShapeKind = iota
	KindBox
	KindSphere
	KindUnion
	KindDifference
	KindIntersection
	KindPlace
)

func (k ShapeKind) String() string {
	switch k {
	case KindTube:
		return "tube"
	case KindBox:
		return "box"
	case KindSphere:
		return "sphere"
	case KindUnion:
		return "csg-union"
	case KindDifference:
		return "csg-difference"
	case KindIntersection:
		return "csg-intersection"
	case KindPlace:
		return "place"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape is one node of a shape tree.
type Shape interface {
	Kind() ShapeKind
}

// Placement positions a primitive: rotation about its centre, then
// translation of the centre.
type Placement struct {
	Position Vec3
	Rotation Vec3 // Euler angles, degrees
}

// TubeData is a solid cylinder.
type TubeData struct {
	Height float64
	Radius float64
	Axis   Axis
	Placement
}

func (TubeData) Kind() ShapeKind { return KindTube }

// BoxData is a rectangular block with edge lengths Size.
type BoxData struct {
	Size Vec3
	Placement
}

func (BoxData) Kind() ShapeKind { return KindBox }

// SphereData is a ball.
type SphereData struct {
	Radius float64
	Placement
}

func (SphereData) Kind() ShapeKind { return KindSphere }

// CSGData combines two or more children. Difference subtracts every child
// after the first from the first.
type CSGData struct {
	Op       ShapeKind // KindUnion, KindDifference or KindIntersection
	Children []Shape
}

func (d CSGData) Kind() ShapeKind { return d.Op }

// PlaceData rotates then translates a child shape.
type PlaceData struct {
	Child       Shape
	Translation *Vec3
	Rotation    *Vec3 // Euler angles, degrees
}

func (PlaceData) Kind() ShapeKind { return KindPlace }

// ---------------------------------------------------------------------------
// Plan
// ---------------------------------------------------------------------------

// Draw paints one shape with a label. Draws apply in slice order; a later
// draw overwrites earlier ones where they overlap.
type Draw struct {
	Shape    Shape
	Label    uint32
	Material string
}

// Plan is a complete phantom description.
type Plan struct {
	Volume Volume
	Draws  []Draw
}
