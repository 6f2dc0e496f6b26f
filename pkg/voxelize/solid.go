package voxelize

import (
	"fmt"

	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/plan"
)

// Solid converts a plan shape tree into a placed kernel solid. Each node is
// built in its own frame: a primitive is rotated about its centre then
// moved to its position, and a place node rotates then translates its
// child's finished solid.
func Solid(k kernel.Kernel, s plan.Shape) (kernel.Solid, error) {
	switch d := s.(type) {
	case plan.TubeData:
		axis := kernel.AxisZ
		if d.Axis != "" {
			a, err := kernel.ParseAxis(string(d.Axis))
			if err != nil {
				return nil, configErrorf("tube: %v", err)
			}
			axis = a
		}
		solid, err := k.Tube(d.Height, d.Radius, axis)
		if err != nil {
			return nil, configErrorf("tube: %v", err)
		}
		return place(k, solid, d.Rotation, d.Position), nil

	case plan.BoxData:
		solid, err := k.Box(d.Size[0], d.Size[1], d.Size[2])
		if err != nil {
			return nil, configErrorf("box: %v", err)
		}
		return place(k, solid, d.Rotation, d.Position), nil

	case plan.SphereData:
		solid, err := k.Sphere(d.Radius)
		if err != nil {
			return nil, configErrorf("sphere: %v", err)
		}
		return place(k, solid, d.Rotation, d.Position), nil

	case plan.CSGData:
		return csgSolid(k, d)

	case plan.PlaceData:
		child, err := Solid(k, d.Child)
		if err != nil {
			return nil, fmt.Errorf("place: %w", err)
		}
		var rot, tr plan.Vec3
		if d.Rotation != nil {
			rot = *d.Rotation
		}
		if d.Translation != nil {
			tr = *d.Translation
		}
		return place(k, child, rot, tr), nil

	case nil:
		return nil, configErrorf("no shape")
	}
	return nil, configErrorf("unsupported shape %T", s)
}

func csgSolid(k kernel.Kernel, d plan.CSGData) (kernel.Solid, error) {
	if len(d.Children) < 2 {
		return nil, configErrorf("%s needs at least 2 shapes, got %d", d.Op, len(d.Children))
	}
	var combine func(a, b kernel.Solid) kernel.Solid
	switch d.Op {
	case plan.KindUnion:
		combine = k.Union
	case plan.KindDifference:
		combine = k.Difference
	case plan.KindIntersection:
		combine = k.Intersection
	default:
		return nil, configErrorf("%s is not a boolean operation", d.Op)
	}

	var acc kernel.Solid
	for i, c := range d.Children {
		solid, err := Solid(k, c)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", d.Op, i, err)
		}
		if acc == nil {
			acc = solid
			continue
		}
		acc = combine(acc, solid)
	}
	return acc, nil
}

// place applies a rotation in degrees then a translation, skipping identity
// steps.
func place(k kernel.Kernel, s kernel.Solid, rot, tr plan.Vec3) kernel.Solid {
	if rot != (plan.Vec3{}) {
		s = k.Rotate(s, rot[0], rot[1], rot[2])
	}
	if tr != (plan.Vec3{}) {
		s = k.Translate(s, tr[0], tr[1], tr[2])
	}
	return s
}
